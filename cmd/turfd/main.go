package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	EnvFile []string `help:"Dotenv files to load before reading the environment." default:".env" name:"env-file" type:"path"`

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API." default:"1"`
	Migrate MigrateCmd `cmd:"" help:"Apply database migrations and exit."`
	Consume ConsumeCmd `cmd:"" help:"Append booking and maintenance events to the audit log."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("turfd"),
		kong.Description("Turf slot reservation service"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := config.LoadDotEnv(CLI.EnvFile...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logger: %v\n", err)
		os.Exit(1)
	}

	if err := ctx.Run(&cfg); err != nil {
		logger.Error("command failed", "command", ctx.Command(), "err", err)
		os.Exit(1)
	}
}
