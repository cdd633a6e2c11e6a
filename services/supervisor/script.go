package supervisor

import (
	"bytes"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/prodiguer/hermes/internal/models"
)

// submitCommands maps a computing centre to its batch submission command.
var submitCommands = map[string]string{
	"tgcc":  "ccc_msub",
	"idris": "sbatch",
	"ipsl":  "qsub",
}

const defaultSubmitCommand = "sbatch"

var scriptTemplate = template.Must(template.New("supervision").Parse(`#!/bin/bash
# HERMES supervision {{.ID}}
# simulation: {{.Simulation}} ({{.SimulationUID}})
# job: {{.JobUID}}
# trigger: {{.TriggerCode}} at {{.TriggerDate}}
{{- if .SubmissionDir}}
cd {{.SubmissionDir}} || exit 1
{{.Submit}} {{.SubmissionFile}}
{{- else}}
echo "job {{.JobUID}} has no submission path, resubmit by hand" >&2
exit 1
{{- end}}
`))

type scriptData struct {
	ID             uint
	Simulation     string
	SimulationUID  string
	JobUID         string
	TriggerCode    string
	TriggerDate    string
	Submit         string
	SubmissionDir  string
	SubmissionFile string
}

// Script renders the corrective shell script resubmitting the failed job.
// simulation and job may be nil when they are unknown.
func Script(supervision *models.Supervision, simulation *models.Simulation, job *models.Job) (string, error) {
	data := scriptData{
		ID:            supervision.ID,
		SimulationUID: supervision.SimulationUID,
		JobUID:        supervision.JobUID,
		TriggerCode:   supervision.TriggerCode,
		TriggerDate:   supervision.TriggerDate.UTC().Format(time.RFC3339),
		Submit:        defaultSubmitCommand,
	}
	if simulation != nil {
		data.Simulation = simulation.Name
		if command, ok := submitCommands[strings.ToLower(simulation.ComputeNode)]; ok {
			data.Submit = command
		}
	}
	if job != nil && job.SubmissionPath != "" {
		data.SubmissionDir, data.SubmissionFile = path.Split(job.SubmissionPath)
		data.SubmissionDir = strings.TrimSuffix(data.SubmissionDir, "/")
		if data.SubmissionDir == "" {
			data.SubmissionDir = "."
		}
	}

	var buffer bytes.Buffer
	if err := scriptTemplate.Execute(&buffer, data); err != nil {
		return "", err
	}
	return buffer.String(), nil
}
