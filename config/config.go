package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Storage  StorageConfig  `yaml:"storage"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Mail     MailConfig     `yaml:"mail"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

type HTTPConfig struct {
	Address             string   `yaml:"address"`
	SwaggerDir          string   `yaml:"swagger_dir"`
	CORSOrigins         []string `yaml:"cors_origins"`
	CreateRatePerMinute int      `yaml:"create_rate_per_minute"`
	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is honoured.
	// Empty trusts none.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type StorageConfig struct {
	BookingsFile    string `yaml:"bookings_file"`
	MirrorTimeoutMS int    `yaml:"mirror_timeout_ms"`
}

func (s StorageConfig) MirrorTimeout() time.Duration {
	return time.Duration(s.MirrorTimeoutMS) * time.Millisecond
}

// MongoConfig describes the document-store mirror. An empty URI disables it.
type MongoConfig struct {
	URI               string `yaml:"uri"`
	Database          string `yaml:"database"`
	Collection        string `yaml:"collection"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_seconds"`
}

// DatabaseConfig describes the optional Postgres JSONB mirror.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	GroupID            string   `yaml:"group_id"`
	PublishTimeoutMS   int      `yaml:"publish_timeout_ms"`
}

func (k KafkaConfig) PublishTimeout() time.Duration {
	return time.Duration(k.PublishTimeoutMS) * time.Millisecond
}

// MailConfig configures the SMTP transport. Without a host the service runs
// notifications in dummy mode.
type MailConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	From           string `yaml:"from"`
	PreviewBaseURL string `yaml:"preview_base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (m MailConfig) Enabled() bool { return m.Host != "" }

func (m MailConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

type BookingConfig struct {
	PaymentPrefix  string `yaml:"payment_prefix"`
	PaymentPath    string `yaml:"payment_path"`
	DetailsBaseURL string `yaml:"details_base_url"`
}

type WorkerConfig struct {
	ResyncMinutes int `yaml:"resync_minutes"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LoadConfig reads an optional .env file, expands ${VAR} references in the
// YAML document and fills defaults for everything left empty.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hotelbooking"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":5001"
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.HTTP.CreateRatePerMinute == 0 {
		c.HTTP.CreateRatePerMinute = 60
	}
	if c.Storage.BookingsFile == "" {
		c.Storage.BookingsFile = "data/bookings.json"
	}
	if c.Storage.MirrorTimeoutMS == 0 {
		c.Storage.MirrorTimeoutMS = 2000
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "hotelBookingSystem"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "bookings"
	}
	if c.Mongo.ConnectTimeoutSec == 0 {
		c.Mongo.ConnectTimeoutSec = 10
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.LockTTLSeconds == 0 {
		c.Redis.LockTTLSeconds = 30
	}
	if c.Kafka.BookingEventsTopic == "" {
		c.Kafka.BookingEventsTopic = "booking-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "hotelbooking-mirror-sync"
	}
	if c.Kafka.PublishTimeoutMS == 0 {
		c.Kafka.PublishTimeoutMS = 2000
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.From == "" {
		c.Mail.From = "hotel@example.com"
	}
	if c.Mail.TimeoutSeconds == 0 {
		c.Mail.TimeoutSeconds = 10
	}
	if c.Booking.PaymentPrefix == "" {
		c.Booking.PaymentPrefix = "PAY-"
	}
	if c.Booking.PaymentPath == "" {
		c.Booking.PaymentPath = "/process-payment"
	}
	if c.Booking.DetailsBaseURL == "" {
		c.Booking.DetailsBaseURL = "http://localhost:3000/booking/details/"
	}
	if c.Worker.ResyncMinutes == 0 {
		c.Worker.ResyncMinutes = 15
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
