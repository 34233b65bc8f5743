package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.)
// - default: Values common across all environments (timeouts, policy knobs, etc.)
// -----------------------------------------------------------------------------

type Config struct {
	Server      ServerConfig
	DB          DBConfig
	CORS        CORSConfig
	Log         LogConfig
	Circulation CirculationConfig
	Notifier    NotifierConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,X-User-ID,X-User-Role"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

// CirculationConfig carries the hold/loan policy knobs.
type CirculationConfig struct {
	// PickupWindow is how long a confirmed hold stays claimable.
	PickupWindow time.Duration `envconfig:"HOLD_PICKUP_WINDOW" default:"72h"`
	// RequestExpiry is how long a pending hold may wait for staff action.
	RequestExpiry time.Duration `envconfig:"HOLD_REQUEST_EXPIRY" default:"168h"`
	// PendingLimit caps a user's simultaneous pending holds system-wide.
	PendingLimit int `envconfig:"HOLD_PENDING_LIMIT" default:"2"`
	// LoanDurationDays is the default borrowing period.
	LoanDurationDays int `envconfig:"LOAN_DURATION_DAYS" default:"14"`
	// SweepInterval drives the expiration sweeper.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	// PickupReminderLead is how far before the pickup deadline a reminder goes out.
	PickupReminderLead time.Duration `envconfig:"HOLD_PICKUP_REMINDER_LEAD" default:"24h"`
}

type NotifierConfig struct {
	Kind         string   `envconfig:"NOTIFIER_KIND" default:"log"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"circulation.notifications"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889",
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433",
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:      "error",
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		Circulation: CirculationConfig{
			PickupWindow:       72 * time.Hour,
			RequestExpiry:      168 * time.Hour,
			PendingLimit:       2,
			LoanDurationDays:   14,
			SweepInterval:      time.Hour,
			PickupReminderLead: 24 * time.Hour,
		},
		Notifier: NotifierConfig{Kind: "log"},
	}
}
