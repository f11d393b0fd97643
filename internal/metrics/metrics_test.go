package metrics

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"

	"payflow/internal/config"
)

func TestWrite(t *testing.T) {
	c := metrics.GetOrCreateCounter(`payflow_metrics_test_total{result="ok"}`)
	before := c.Get()
	c.Add(3)

	var buf bytes.Buffer
	Write(&buf)

	assert.Contains(t, buf.String(), fmt.Sprintf(`payflow_metrics_test_total{result="ok"} %d`, before+3))
}

func TestSetup_WithoutURLIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NotPanics(t, func() {
		Setup(config.Metrics{}, logger)
	})
}
