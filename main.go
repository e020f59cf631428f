package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/fieldguide/fieldguide-go/cmd"
	"github.com/fieldguide/fieldguide-go/internal/conf"
	"github.com/fieldguide/fieldguide-go/internal/logging"
	"github.com/fieldguide/fieldguide-go/internal/runtime"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	settings, err := conf.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	ctx, err := runtime.Build(settings)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() { _ = ctx.Close() }()

	rootCmd := cmd.RootCommand(ctx)
	rootCmd.SetArgs(flag.Args())
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
