package config

import "time"

// Config holds application configuration.
type Config struct {
	DatabaseURL    string        `env:"DATABASE_URL"`
	APIAddr        string        `env:"API_ADDR" envDefault:":8080"`
	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	ScanInterval   time.Duration `env:"SCAN_INTERVAL" envDefault:"30m"`
	ScanWorkers    int           `env:"SCAN_WORKERS" envDefault:"4"`
	AdapterTimeout time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"2m"`
	FetchInterval  time.Duration `env:"FETCH_INTERVAL" envDefault:"2s"`
	EnabledSources []string      `env:"ENABLED_SOURCES" envSeparator:"," envDefault:"bijdevaate,klipenvw,ooms,rozenburg"`

	Filter   Filter
	Notify   Notify
	Telegram Telegram
	RabbitMQ RabbitMQ
}

// Filter holds the notification filter configuration.
type Filter struct {
	MinPrice      int      `env:"FILTER_MIN_PRICE" envDefault:"0"`
	MaxPrice      int      `env:"FILTER_MAX_PRICE" envDefault:"0"`
	MinArea       int      `env:"FILTER_MIN_AREA" envDefault:"0"`
	Cities        []string `env:"FILTER_CITIES" envSeparator:","`
	PropertyTypes []string `env:"FILTER_PROPERTY_TYPES" envSeparator:","`
}

// Notify holds the dispatch flags shared by every channel.
type Notify struct {
	New           bool `env:"NOTIFY_NEW" envDefault:"true"`
	Updated       bool `env:"NOTIFY_UPDATED" envDefault:"true"`
	Removed       bool `env:"NOTIFY_REMOVED" envDefault:"true"`
	SendSummary   bool `env:"SEND_SUMMARY" envDefault:"true"`
	RetryAttempts int  `env:"NOTIFY_RETRY_ATTEMPTS" envDefault:"3"`
}

// Telegram holds Telegram channel configuration. The channel is
// disabled when Token or ChatID is empty.
type Telegram struct {
	Token  string `env:"TELEGRAM_TOKEN"`
	ChatID string `env:"TELEGRAM_CHAT_ID"`
}

// RabbitMQ holds the AMQP channel configuration. The channel is
// disabled when URL is empty.
type RabbitMQ struct {
	URL      string `env:"RABBITMQ_URL"`
	Exchange string `env:"RABBITMQ_EXCHANGE" envDefault:"huizen-zoeker"`
}
