package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "PAYFLOW"

type API struct {
	BaseURL   string `mapstructure:"base-url"`
	TimeoutMs int    `mapstructure:"timeout-ms"`
}

func (a API) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

type Auth struct {
	Token string `mapstructure:"token"`
}

type Payment struct {
	WindowMinutes    int    `mapstructure:"window-minutes"`
	TickIntervalMs   int    `mapstructure:"tick-interval-ms"`
	RedirectDelayMs  int    `mapstructure:"redirect-delay-ms"`
	LandingRoute     string `mapstructure:"landing-route"`
	OrderDetailRoute string `mapstructure:"order-detail-route"`
	CancelReason     string `mapstructure:"cancel-reason"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	PaymentFlowEvents string `mapstructure:"payment-flow-events"`
}

type Kafka struct {
	Writer KafkaWriter `mapstructure:"writer"`
	Broker KafkaBroker `mapstructure:"broker"`
	Topic  KafkaTopic  `mapstructure:"topic"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL   string `mapstructure:"url"`
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type Config struct {
	API     API     `mapstructure:"api"`
	Auth    Auth    `mapstructure:"auth"`
	Payment Payment `mapstructure:"payment"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Metrics Metrics `mapstructure:"metrics"`
	Logs    Logs    `mapstructure:"logs"`
}

var defaults = map[string]interface{}{
	"api.base-url":                    "http://localhost:8085/api",
	"api.timeout-ms":                  10_000,
	"auth.token":                      "",
	"payment.window-minutes":          15,
	"payment.tick-interval-ms":        1_000,
	"payment.redirect-delay-ms":       2_000,
	"payment.landing-route":           "/",
	"payment.order-detail-route":      "/orders/%s",
	"payment.cancel-reason":           "Payment window expired",
	"kafka.writer.batch-size":         1,
	"kafka.writer.batch-timeout-ms":   100,
	"kafka.broker.url":                "",
	"kafka.topic.payment-flow-events": "payment-flow-events",
	"metrics.url":                     "",
	"metrics.interval-ms":             10_000,
	"metrics.common-labels":           `service="payflow"`,
	"logs.url":                        "",
	"logs.file":                       "",
	"logs.level":                      "info",
}

// LoadConfig reads config.yaml from path, falling back to defaults when the
// file is absent. Every key can be overridden with PAYFLOW_<SECTION>_<KEY>.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	return &config, nil
}
