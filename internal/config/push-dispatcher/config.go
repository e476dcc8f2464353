package push_dispatcher_config

import (
	"time"

	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/push"
	pg "github.com/NordCoder/Gorev/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	Partitions    int      `mapstructure:"partitions"`
	FromBeginning bool     `mapstructure:"from_beginning"`
	// Concurrency caps records handled at once; 1 keeps strict fetch order.
	Concurrency   int           `mapstructure:"concurrency"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBase     time.Duration `mapstructure:"retry_base"`
	RetryMax      time.Duration `mapstructure:"retry_max"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	DB       pg.Config   `mapstructure:"db"`
	In       KafkaIn     `mapstructure:"kafka_in"`
	Push     push.Config `mapstructure:"push"`
	Server   Server      `mapstructure:"server"`
	OTEL     OTEL        `mapstructure:"otel"`
	LogLevel string      `mapstructure:"log_level"`
}

func (c *Config) OTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		ServiceName: c.OTEL.ServiceName,
		SampleRatio: c.OTEL.SampleRatio,
	}
}
