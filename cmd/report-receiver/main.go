// Command report-receiver archives the final diagnostic reports sent by the
// companion. It listens on loopback only; the companion reaches it through
// a reverse tunnel.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sctest/station/internal/config"
	"github.com/sctest/station/internal/diag"
	"github.com/sctest/station/internal/station"
)

func main() {
	logLevel := parseLogLevel(envStr("SCTEST_LOG_LEVEL", "info"))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	store := config.NewMemoryStore()
	if dataDir := os.Getenv("SCTEST_DATA_DIR"); dataDir != "" {
		s, err := config.NewStore(dataDir)
		if err != nil {
			slog.Error("failed to open settings", "dir", dataDir, "err", err)
			os.Exit(1)
		}
		store = s
	}
	settings := store.Get()
	addr := envStr("SCTEST_RECEIVER_ADDR", settings.ReceiverAddr)
	reportDir := envStr("SCTEST_REPORT_DIR", settings.ReportDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	archive, err := station.NewArchive(reportDir)
	if err != nil {
		slog.Error("report archive unavailable", "err", err)
		os.Exit(1)
	}
	link, err := diag.Listen(addr)
	if err != nil {
		slog.Error("receiver listener failed", "err", err)
		os.Exit(1)
	}
	slog.Info("report receiver listening", "addr", link.Addr().String(), "reports", archive.Dir())

	rcv := station.NewReceiver(archive, func(path string) {
		slog.Info("report archived", "path", path)
	})
	if err := link.Serve(ctx, rcv); err != nil {
		slog.Error("receiver failed", "err", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
