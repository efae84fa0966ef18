package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string `env:"APP_PORT" envDefault:"3000"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "text" | "json"

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables

	JWTPublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`

	EmailProvider        string `env:"EMAIL_PROVIDER" envDefault:"smtp"` // "smtp" | "postmark" | "none"
	SMTPHost             string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort             string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom             string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername         string `env:"SMTP_USERNAME"`
	SMTPPassword         string `env:"SMTP_PASSWORD"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	ExpoPushURL     string  `env:"EXPO_PUSH_URL" envDefault:"https://exp.host/--/api/v2/push/send"`
	ExpoAccessToken string  `env:"EXPO_ACCESS_TOKEN"`
	ExpoRatePerSec  float64 `env:"EXPO_RATE_PER_SEC" envDefault:"6"`

	RealtimeBackend string `env:"REALTIME_BACKEND" envDefault:"memory"` // "memory" | "redis"
	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	SNSRegion          string `env:"SNS_REGION" envDefault:"us-east-1"`
	SNSEventsTopicARN  string `env:"SNS_EVENTS_TOPIC_ARN"` // empty disables event publication
	TranslationsBucket string `env:"TRANSLATIONS_S3_BUCKET"`
	TranslationsKey    string `env:"TRANSLATIONS_S3_KEY"` // empty disables the S3 catalog overlay
	DefaultLanguage    string `env:"DEFAULT_LANGUAGE" envDefault:"en"`

	ChannelTimeout time.Duration `env:"CHANNEL_TIMEOUT" envDefault:"10s"`
	DeliveryLogTTL time.Duration `env:"DELIVERY_LOG_TTL" envDefault:"720h"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
	Notifications string `env:"DYNAMO_TABLE_NOTIFICATIONS" envDefault:"notifications"`
	DeviceTokens  string `env:"DYNAMO_TABLE_DEVICE_TOKENS" envDefault:"device_tokens"`
	Preferences   string `env:"DYNAMO_TABLE_NOTIFICATION_PREFERENCES" envDefault:"notification_preferences"`
	DeliveryLogs  string `env:"DYNAMO_TABLE_DELIVERY_LOGS" envDefault:"notification_delivery_logs"`
	Posts         string `env:"DYNAMO_TABLE_POSTS" envDefault:"posts"`
	Programs      string `env:"DYNAMO_TABLE_PROGRAMS" envDefault:"programs"`
	Workouts      string `env:"DYNAMO_TABLE_WORKOUTS" envDefault:"workouts"`
	Gyms          string `env:"DYNAMO_TABLE_GYMS" envDefault:"gyms"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
