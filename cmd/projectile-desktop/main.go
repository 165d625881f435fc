package main

import (
	"log/slog"
	"os"

	"fyne.io/fyne/v2/app"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/config"
	"github.com/CedoySch/PhysicsLT2.2/internal/desktop"
)

func main() {
	level := slog.LevelInfo
	if v := os.Getenv("PROJECTILE_LOG_LEVEL"); v != "" {
		l, err := config.ParseLevel(v)
		if err == nil {
			level = l
		}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a := app.NewWithID("io.github.cedoysch.projectile")
	w, err := desktop.NewWindow(a, chart.NewRenderer(chart.DefaultConfig()), logger)
	if err != nil {
		logger.Error("could not create window", "error", err)
		os.Exit(1)
	}
	w.ShowAndRun()
}
