package notify_api_config

import (
	"time"

	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/outbox"
	"github.com/NordCoder/Gorev/internal/push"
	pg "github.com/NordCoder/Gorev/internal/repository/postgres"
	"github.com/NordCoder/Gorev/internal/services/notify-api/httpapi"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (c *Config) LoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    "gorev/" + c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type Config struct {
	App    App                `mapstructure:"app"`
	Server Server             `mapstructure:"server"`
	DB     pg.Config          `mapstructure:"db"`
	Kafka  Kafka              `mapstructure:"kafka"`
	Outbox outbox.Config      `mapstructure:"outbox"`
	Push   push.Config        `mapstructure:"push"`
	Auth   httpapi.AuthConfig `mapstructure:"auth"`
	OTEL   OTEL               `mapstructure:"otel"`
	Log    Log                `mapstructure:"log"`
}
