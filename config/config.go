package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Environment   string
	Port          string
	DatabaseURL   string
	RedisURL      string
	JWTSecret     string
	PublicBaseURL string // Prefix of share links sent to contacts

	// Comma separated; empty allows any origin
	AllowedOrigins []string

	// Tracking
	DefaultCheckInInterval int // minutes
	ShareLinkTTLHours      int
	SweepIntervalSeconds   int
	AlertReminderMinutes   int
	NotificationWorkers    int

	// Public endpoint throttling
	RateLimitRequest int
	RateLimitWindow  int // minutes

	// Monitoring center recipients
	MonitoringCenterName      string
	MonitoringCenterPhone     string
	MonitoringCenterEmail     string
	MonitoringCenterPushTopic string

	// Firebase Config
	FirebaseCredentials string

	// Twilio Config
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// Resend Config
	ResendAPIKey string
	EmailFrom    string
	EmailName    string
}

func Load() *Config {
	return &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "mongodb://localhost:27017/visitguard"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:     getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),

		DefaultCheckInInterval: getEnvAsInt("DEFAULT_CHECKIN_INTERVAL_MINUTES", 30),
		ShareLinkTTLHours:      getEnvAsInt("SHARE_LINK_TTL_HOURS", 24),
		SweepIntervalSeconds:   getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60),
		AlertReminderMinutes:   getEnvAsInt("ALERT_REMINDER_MINUTES", 5),
		NotificationWorkers:    getEnvAsInt("NOTIFICATION_WORKERS", 3),

		RateLimitRequest: getEnvAsInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:  getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 1),

		MonitoringCenterName:      getEnv("MONITORING_CENTER_NAME", "Monitoring Center"),
		MonitoringCenterPhone:     getEnv("MONITORING_CENTER_PHONE", ""),
		MonitoringCenterEmail:     getEnv("MONITORING_CENTER_EMAIL", ""),
		MonitoringCenterPushTopic: getEnv("MONITORING_CENTER_PUSH_TOPIC", "monitoring-center"),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "alerts@visitguard.app"),
		EmailName:    getEnv("EMAIL_FROM_NAME", "VisitGuard"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesMemoryStore reports whether sessions live in process memory instead of
// MongoDB. Only meant for local runs.
func (c *Config) UsesMemoryStore() bool {
	return strings.HasPrefix(c.DatabaseURL, "memory://")
}

func (c *Config) RateLimitPeriod() time.Duration {
	return time.Duration(c.RateLimitWindow) * time.Minute
}

func (c *Config) ShareLinkTTL() time.Duration {
	return time.Duration(c.ShareLinkTTLHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) AlertReminderInterval() time.Duration {
	return time.Duration(c.AlertReminderMinutes) * time.Minute
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	client := redis.NewClient(opt)
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(key), ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}
