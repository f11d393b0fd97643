package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"

	"payflow/internal/config"
	"payflow/internal/logcontext"
)

const serviceName = "payflow"

// GetLogger ships logs to Loki when cfg.URL is set and writes JSON lines to
// cfg.File (or stdout) otherwise.
func GetLogger(cfg config.Logs) *slog.Logger {
	if cfg.URL == "" {
		return localLogger(cfg.File, level(cfg.Level))
	}

	logger, err := remoteLogger(cfg.URL, level(cfg.Level))
	if err != nil {
		fallback := localLogger(cfg.File, level(cfg.Level))
		fallback.Error("Error creating loki client, logging locally", "error", err)
		return fallback
	}
	return logger
}

func localLogger(file string, lvl slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(output(file), &slog.HandlerOptions{Level: lvl})
	return slog.New(logcontext.ContextHandler{Handler: handler}).With("service", serviceName)
}

func output(file string) io.Writer {
	if file == "" {
		return os.Stdout
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout
	}
	return f
}

func remoteLogger(url string, lvl slog.Level) (*slog.Logger, error) {
	lokiConfig, err := loki.NewDefaultConfig(url)
	if err != nil {
		return nil, err
	}
	client, err := loki.New(lokiConfig)
	if err != nil {
		return nil, err
	}

	return slog.New(slogloki.Option{
		Level:  lvl,
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			logcontext.Attrs,
		},
	}.NewLokiHandler()).With("service", serviceName), nil
}

func level(name string) slog.Level {
	switch strings.ToLower(name) {
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
