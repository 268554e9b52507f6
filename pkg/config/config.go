package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       Server     `mapstructure:"server"`
	Postgres     Postgres   `mapstructure:"postgres"`
	Redis        Redis      `mapstructure:"redis"`
	Broker       Broker     `mapstructure:"broker"`
	Cron         Cron       `mapstructure:"cron"`
	Relay        Relay      `mapstructure:"relay"`
	Notify       Notify     `mapstructure:"notify"`
	Presence     Presence   `mapstructure:"presence"`
	HTTPClient   HTTPClient `mapstructure:"httpClient"`
	LoggingLevel string     `mapstructure:"logging-level"`
}

type Server struct {
	Port      string `mapstructure:"port"`
	BodyLimit int    `mapstructure:"body_limit"`
}

type Postgres struct {
	ConnString     string `mapstructure:"conn_string"`
	MaxConnections int32  `mapstructure:"max_connections"`
}

type Redis struct {
	URL string `mapstructure:"url"`
}

type Broker struct {
	Kafka Kafka `mapstructure:"kafka"`
}

type Kafka struct {
	Brokers        string `mapstructure:"brokers"`
	MessageTopic   string `mapstructure:"messageTopic"`   // inbound message-created events
	BroadcastTopic string `mapstructure:"broadcastTopic"` // realtime UI fan-out
	PushTopic      string `mapstructure:"pushTopic"`      // device push fan-out
	ReaderUsr      string `mapstructure:"readerUsr"`
	ReaderUsrPwd   string `mapstructure:"readerUsrPwd"`
	WriterUsr      string `mapstructure:"writerUsr"`
	WriterUsrPwd   string `mapstructure:"writerUsrPwd"`
	MaxAttempts    int    `mapstructure:"maxAttempts"`
}

type Cron struct {
	// Schedule in cron format ("0 * * * * *") takes priority over Interval
	// ("@every 30s") when both are set.
	Schedule string `mapstructure:"schedule"`
	Interval string `mapstructure:"interval"`
}

// Relay drives the outbox delivery loop. BackoffSchedule is a comma-separated
// duration list ("1s,5s,30s,2m,5m,10m"); attempts beyond its length reuse the
// last entry.
type Relay struct {
	Workers         int           `mapstructure:"workers"`
	BatchSize       int           `mapstructure:"batchSize"`
	Lease           time.Duration `mapstructure:"lease"`
	PollPeriod      time.Duration `mapstructure:"pollPeriod"`
	MaxAttempts     int           `mapstructure:"maxAttempts"`
	BackoffSchedule string        `mapstructure:"backoffSchedule"`
	DeliveryTimeout time.Duration `mapstructure:"deliveryTimeout"`
}

type Notify struct {
	PreviewLength int `mapstructure:"previewLength"`
}

type Presence struct {
	OnlineTTL time.Duration `mapstructure:"onlineTTL"`
	TypingTTL time.Duration `mapstructure:"typingTTL"`
}

type HTTPClient struct {
	ConnectTimeout        time.Duration `mapstructure:"connectTimeout"`
	TLSHandshakeTimeout   time.Duration `mapstructure:"TLSHandshakeTimeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"responseHeaderTimeout"`
	ExpectContinueTimeout time.Duration `mapstructure:"expectContinueTimeout"`

	IdleConnTimeout     time.Duration `mapstructure:"idleConnTimeout"`
	MaxIdleConns        int           `mapstructure:"maxIdleConns"`
	MaxIdleConnsPerHost int           `mapstructure:"maxIdleConnsPerHost"`
	MaxConnsPerHost     int           `mapstructure:"maxConnsPerHost"`
	KeepAlives          bool          `mapstructure:"keepAlives"`

	// Overall client timeout. 0 means the caller controls it via context.
	ClientTimeout time.Duration `mapstructure:"clientTimeout"`

	UserAgent  string `mapstructure:"userAgent"`
	MaxRetries int    `mapstructure:"maxRetries"`

	InsecureSkipVerify bool `mapstructure:"insecureSkipVerify"`
}

func NewConfig() (Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	var conf Config
	err := viper.ReadInConfig()
	// A missing .env is fine, env vars alone may carry the config.
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return conf, err
		}
	}

	err = viper.Unmarshal(&conf)

	return conf, err
}
