package config

import (
	"fmt"
	"os"
	"regexp"
	"slotwise/pkg/client"
	"slotwise/pkg/logger"
	"strconv"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	LinkTokenSecret string
	LinkTokenTTL    time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ProposalExpiry time.Duration

	DefaultBufferMinutes  int
	DefaultJobDurationMin int
	DefaultDayStart       string
	DefaultDayEnd         string
	DefaultWorkingDays    []Weekday

	SmallJobHours  float64
	MediumJobHours float64
	LargeJobHours  float64

	AvailabilityWindowDays int

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		LinkTokenSecret: getEnvStr(EnvLinkTokenSecret, ""),
		LinkTokenTTL:    getEnvDuration(EnvLinkTokenTTL, DefaultLinkTokenTTL),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ProposalExpiry: getEnvDuration(EnvProposalExpiry, DefaultProposalExpiry),

		DefaultBufferMinutes:  getEnvNum(EnvDefaultBufferMinutes, DefaultDefaultBufferMinutes),
		DefaultJobDurationMin: getEnvNum(EnvDefaultJobDurationMin, DefaultDefaultJobDurationMin),
		DefaultDayStart:       getEnvStr(EnvDefaultDayStart, DefaultDefaultDayStart),
		DefaultDayEnd:         getEnvStr(EnvDefaultDayEnd, DefaultDefaultDayEnd),
		DefaultWorkingDays:    DefaultDefaultWorkingDays,

		SmallJobHours:  getEnvFloat(EnvSmallJobHours, DefaultSmallJobHours),
		MediumJobHours: getEnvFloat(EnvMediumJobHours, DefaultMediumJobHours),
		LargeJobHours:  getEnvFloat(EnvLargeJobHours, DefaultLargeJobHours),

		AvailabilityWindowDays: getEnvNum(EnvAvailabilityWindowDays, DefaultAvailabilityWindowDays),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.LinkTokenSecret == "" {
		errors = append(errors, fmt.Sprintf("%s must be set", EnvLinkTokenSecret))
	} else if len(cfg.LinkTokenSecret) < 16 {
		errors = append(errors, fmt.Sprintf("%s must be at least 16 characters", EnvLinkTokenSecret))
	}
	if cfg.LinkTokenTTL < 0 {
		errors = append(errors, fmt.Sprintf("LinkTokenTTL cannot be negative, got: %s", cfg.LinkTokenTTL))
	}

	timeRegex := regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	if !timeRegex.MatchString(cfg.DefaultDayStart) {
		errors = append(errors, fmt.Sprintf("DefaultDayStart must be in HH:MM format (00:00-23:59), got: %s", cfg.DefaultDayStart))
	}
	if !timeRegex.MatchString(cfg.DefaultDayEnd) {
		errors = append(errors, fmt.Sprintf("DefaultDayEnd must be in HH:MM format (00:00-23:59), got: %s", cfg.DefaultDayEnd))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.ProposalExpiry <= 0 {
		errors = append(errors, fmt.Sprintf("ProposalExpiry must be positive, got: %s", cfg.ProposalExpiry))
	}

	if cfg.DefaultBufferMinutes < 0 {
		errors = append(errors, fmt.Sprintf("DefaultBufferMinutes cannot be negative, got: %d", cfg.DefaultBufferMinutes))
	}
	if cfg.DefaultJobDurationMin <= 0 {
		errors = append(errors, fmt.Sprintf("DefaultJobDurationMin must be positive, got: %d", cfg.DefaultJobDurationMin))
	}

	if cfg.SmallJobHours <= 0 || cfg.MediumJobHours <= 0 || cfg.LargeJobHours <= 0 {
		errors = append(errors, fmt.Sprintf("job size hours must all be positive, got: %.1f/%.1f/%.1f",
			cfg.SmallJobHours, cfg.MediumJobHours, cfg.LargeJobHours))
	}
	if cfg.SmallJobHours > cfg.MediumJobHours || cfg.MediumJobHours > cfg.LargeJobHours {
		errors = append(errors, fmt.Sprintf("job size hours must be non-decreasing, got: %.1f/%.1f/%.1f",
			cfg.SmallJobHours, cfg.MediumJobHours, cfg.LargeJobHours))
	}

	if cfg.AvailabilityWindowDays <= 0 {
		errors = append(errors, fmt.Sprintf("AvailabilityWindowDays must be positive, got: %d", cfg.AvailabilityWindowDays))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"link_token_secret_set", cfg.LinkTokenSecret != "",
		"link_token_ttl", cfg.LinkTokenTTL,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"proposal_expiry", cfg.ProposalExpiry,
		"default_buffer_minutes", cfg.DefaultBufferMinutes,
		"default_job_duration_min", cfg.DefaultJobDurationMin,
		"default_day_start", cfg.DefaultDayStart,
		"default_day_end", cfg.DefaultDayEnd,
		"small_job_hours", cfg.SmallJobHours,
		"medium_job_hours", cfg.MediumJobHours,
		"large_job_hours", cfg.LargeJobHours,
		"availability_window_days", cfg.AvailabilityWindowDays,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
