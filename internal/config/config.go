package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"production"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`
	RunMigrations      bool   `envconfig:"RUN_MIGRATIONS" default:"false"`

	// Shared secret expected in X-Cron-Secret on internal endpoints
	CronSecret string `envconfig:"CRON_SECRET"`

	// Subscription event settings
	EventsTransport    string `envconfig:"EVENTS_TRANSPORT" default:"none"`
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubEventsTopic  string `envconfig:"PUBSUB_EVENTS_TOPIC" default:"subscription-events"`
	PGMQEventsQueue    string `envconfig:"PGMQ_EVENTS_QUEUE" default:"subscription_events"`
	PGMQEventsDLQ      string `envconfig:"PGMQ_EVENTS_DLQ" default:"subscription_events_dlq"`

	// OIDC checks on the Pub/Sub dead-letter push endpoint
	PubSubPushAudience       string `envconfig:"PUBSUB_PUSH_AUDIENCE"`
	PubSubPushServiceAccount string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT"`

	// pgmq to Pub/Sub relay settings
	RelayPollTimeoutSec   int `envconfig:"RELAY_POLL_TIMEOUT_SEC" default:"5"`
	RelayVisibilitySec    int `envconfig:"RELAY_VISIBILITY_SEC" default:"30"`
	RelayPollMaxMsg       int `envconfig:"RELAY_POLL_MAX_MSG" default:"10"`
	RelayMaxRetries       int `envconfig:"RELAY_MAX_RETRIES" default:"3"`
	RelayBackoffInitialMs int `envconfig:"RELAY_BACKOFF_INITIAL_MS" default:"500"`
	RelayBackoffMaxSec    int `envconfig:"RELAY_BACKOFF_MAX_SEC" default:"10"`

	// Expiry sweep orchestrator settings
	RedisAddr       string `envconfig:"REDIS_ADDR"`
	SweepSchedule   string `envconfig:"SWEEP_SCHEDULE" default:"0 */15 * * * *"`
	SweepTimeoutSec int    `envconfig:"SWEEP_TIMEOUT_SEC" default:"300"`
	SweepLockKey    string `envconfig:"SWEEP_LOCK_KEY" default:"studybuddy:expiry-sweep"`
}

// SweepTimeout bounds a single expiry sweep run.
func (c *Config) SweepTimeout() time.Duration {
	return time.Duration(c.SweepTimeoutSec) * time.Second
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
