package alerts

import (
	"bytes"
	"text/template"

	"github.com/prodiguer/hermes/internal/enum"
)

type alertTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(trigger enum.AlertTrigger, subject, body string) *alertTemplate {
	return &alertTemplate{
		subject: template.Must(template.New(trigger.String() + "-subject").Parse(subject)),
		body:    template.Must(template.New(trigger.String() + "-body").Parse(body)),
	}
}

var templates = map[enum.AlertTrigger]*alertTemplate{
	enum.AlertSMTPCheckerCount: mustTemplate(enum.AlertSMTPCheckerCount,
		"HERMES :: SMTP CHECKER :: {{.count}} emails awaiting processing",
		`The mailbox monitored by HERMES holds {{.count}} unprocessed emails, the limit is {{.limit}}.

Check that the internal-smtp and smtp-realtime agents are running.
`),
	enum.AlertSMTPCheckerLatency: mustTemplate(enum.AlertSMTPCheckerLatency,
		"HERMES :: SMTP CHECKER :: email processing latency",
		`The oldest unprocessed email arrived {{.latency}} seconds ago, the limit is {{.limit}} seconds.
`),
	enum.AlertConsoInactiveAllocation: mustTemplate(enum.AlertConsoInactiveAllocation,
		"HERMES :: CONSO :: inactive allocation {{.project}}",
		`The allocation of project {{.project}} on {{.machine}} ({{.centre}}) starting {{.start_date}} is inactive.
`),
	enum.AlertConsoNewAllocation: mustTemplate(enum.AlertConsoNewAllocation,
		"HERMES :: CONSO :: new allocation {{.project}}",
		`A new allocation of {{.budget}} hours was granted to project {{.project}} on {{.machine}} ({{.centre}}) from {{.start_date}} to {{.end_date}}.
`),
}

func (t *alertTemplate) render(payload map[string]interface{}) (subject string, body string, err error) {
	var buffer bytes.Buffer
	if err = t.subject.Execute(&buffer, payload); err != nil {
		return "", "", err
	}
	subject = buffer.String()

	buffer.Reset()
	if err = t.body.Execute(&buffer, payload); err != nil {
		return "", "", err
	}
	return subject, buffer.String(), nil
}
