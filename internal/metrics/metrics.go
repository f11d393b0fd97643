package metrics

import (
	"io"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"payflow/internal/config"
)

// Setup starts pushing metrics to cfg.URL. Without a URL metrics are only
// kept in process and can be dumped with Write.
func Setup(cfg config.Metrics, logger *slog.Logger) {
	if cfg.URL == "" {
		return
	}

	err := metrics.InitPush(cfg.URL, time.Duration(cfg.IntervalMs)*time.Millisecond, cfg.CommonLabels, true)
	if err != nil {
		logger.Error("Error initializing metrics push", "error", err)
	}
}

func Write(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
