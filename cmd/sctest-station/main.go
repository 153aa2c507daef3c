package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sctest/station/internal/config"
	"github.com/sctest/station/internal/console"
	"github.com/sctest/station/internal/diag"
	"github.com/sctest/station/internal/mirror"
	"github.com/sctest/station/internal/station"
	"github.com/sctest/station/internal/webui"
)

func main() {
	logLevel := parseLogLevel(envStr("SCTEST_LOG_LEVEL", "info"))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Persisted settings, overridden by the environment
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
	settings.ListenAddr = envStr("SCTEST_LISTEN_ADDR", settings.ListenAddr)
	settings.ReportDir = envStr("SCTEST_REPORT_DIR", settings.ReportDir)
	settings.HTTPAddr = envStr("SCTEST_HTTP_ADDR", settings.HTTPAddr)
	settings.MQTT.BrokerURL = envStr("SCTEST_MQTT_BROKER", settings.MQTT.BrokerURL)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	catalog := diag.DefaultCatalog()
	link, err := diag.Listen(settings.ListenAddr)
	if err != nil {
		slog.Error("link listener failed", "err", err)
		os.Exit(1)
	}
	archive, err := station.NewArchive(settings.ReportDir)
	if err != nil {
		link.Close()
		slog.Error("report archive unavailable", "err", err)
		os.Exit(1)
	}
	st := station.New(link, catalog, archive)

	port := link.Addr().(*net.TCPAddr).Port
	slog.Info("waiting for companion",
		"addr", net.JoinHostPort(diag.LocalIP(), strconv.Itoa(port)),
		"tests", catalog.Len(),
		"reports", archive.Dir(),
	)

	// Start mDNS advertisement
	var ann *diag.Announcement
	if settings.AdvertiseName != "" {
		ann, err = diag.Announce(settings.AdvertiseName, port, catalog)
		if err != nil {
			slog.Warn("mDNS advertisement disabled", "err", err)
		}
	}

	var mir *mirror.Mirror
	if settings.MQTT.BrokerURL != "" {
		mir, err = mirror.Connect(settings.MQTT)
		if err != nil {
			slog.Warn("result mirror disabled", "err", err)
		}
	}

	var httpServer *http.Server
	if settings.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr:    settings.HTTPAddr,
			Handler: logMiddleware(webui.NewHandler(st, store)),
		}
		go func() {
			slog.Info("status API starting", "addr", settings.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				slog.Error("HTTP server error", "err", err)
				cancel()
			}
		}()
	}

	con := console.New(os.Stdout)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range st.Events() {
			con.Show(ev)
			if mir == nil {
				continue
			}
			if err := mir.Publish(ev); err != nil {
				slog.Warn("mirror publish failed", "event", ev.Kind.String(), "err", err)
			}
		}
	}()

	if console.Interactive(os.Stdin) {
		con.Exec(st, "help")
		go func() {
			if err := con.ReadCommands(ctx, os.Stdin, st); err != nil {
				slog.Warn("operator input closed", "err", err)
			}
			cancel()
		}()
	}

	runErr := st.Run(ctx)
	<-drained
	slog.Info("shutting down...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown error", "err", err)
		}
		shutdownCancel()
	}
	if mir != nil {
		mir.Close()
	}
	ann.Stop()

	if runErr != nil {
		slog.Error("link failed", "err", runErr)
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

// responseRecorder captures the status code for logging.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
