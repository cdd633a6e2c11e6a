package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/prodiguer/hermes/config"
	"github.com/prodiguer/hermes/internal/database"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/repository"
	"github.com/prodiguer/hermes/server"
)

func main() {
	app := &cli.App{
		Name:  "hermes",
		Usage: "simulation monitoring message processing agents",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:      "launch",
				Usage:     "Start an agent",
				ArgsUsage: "<agent_type>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "agent_limit",
						Usage: "stop after handling this many messages, 0 for no limit",
					},
				},
				Action: launch,
			},
			{
				Name:      "purge-simulation",
				Usage:     "Delete a simulation with its jobs and supervisions",
				ArgsUsage: "<uid>",
				Action:    purgeSimulation,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrate(c *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	db, err := database.InitHermesDatabase(cfg.HermesDatabase())
	if err != nil {
		return err
	}

	if err := repository.MigrateHermesDB(cfg.HermesDatabase(), db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func launch(c *cli.Context) error {
	agent, ok := enum.ParseAgentType(c.Args().First())
	if !ok {
		names := make([]string, 0, len(enum.Agents))
		for _, a := range enum.Agents {
			names = append(names, a.String())
		}
		return cli.Exit(fmt.Sprintf("unknown agent type %q, expected one of: %s", c.Args().First(), strings.Join(names, ", ")), 2)
	}
	limit := c.Int("agent_limit")
	if limit < 0 {
		return cli.Exit("agent_limit cannot be negative", 2)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	srv, err := server.NewServer(c.Context, cfg, agent, limit)
	if err != nil {
		return fmt.Errorf("agent setup failed: %w", err)
	}
	if err := srv.Run(); err != nil {
		return fmt.Errorf("agent stopped with error: %w", err)
	}
	log.Println("Shutdown complete")
	return nil
}

func purgeSimulation(c *cli.Context) error {
	uid := c.Args().First()
	if uid == "" {
		return cli.Exit("a simulation uid is required", 2)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	db, err := database.InitHermesDatabase(cfg.HermesDatabase())
	if err != nil {
		return err
	}

	repos := repository.InitRepositories(db, nil)
	if err := repos.SimulationRepository.DeleteSimulation(c.Context, uid); err != nil {
		return fmt.Errorf("failed to purge simulation %s: %w", uid, err)
	}
	log.Printf("Simulation %s purged", uid)
	return nil
}
