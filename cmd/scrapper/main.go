package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shafqat-a/scrapper/cmd/scrapper/commands"
	"github.com/shafqat-a/scrapper/lib/telemetry"
)

func main() {
	telemetry.InitSlog(false)

	ctx := context.Background()
	// Telemetry is optional for the CLI: without a telemetry.json5 up the
	// tree it runs without exporters.
	tel, err := telemetry.SetupFromEnv(ctx, "scrapper")
	if err == nil {
		defer tel.Shutdown(ctx)
		telemetry.InstrumentPerfStats(ctx)
	} else if !os.IsNotExist(err) {
		slog.Warn("failed to set up telemetry", "err", err)
	}

	commands.ExecuteContext(ctx)
}
