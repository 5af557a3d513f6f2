package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"haulbid/pkg/client"
	"haulbid/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	// Finalizer knobs. LockTTL must comfortably exceed the expected
	// duration of one finalization transaction; the lock collection's
	// TTL-based expiry is the safety net if it doesn't.
	FinalizeInterval  time.Duration
	FinalizeLockTTL   time.Duration
	FinalizeBatchSize int

	// NoBidsTerminal selects the zero-bid policy: true moves the booking
	// to the terminal NO_BIDS status, false re-opens bidding by pushing
	// auto_finalize_at forward by RebidWindow.
	NoBidsTerminal      bool
	RebidWindow         time.Duration
	MaxFinalizeFailures int

	NotificationsTopic    string
	NotificationsDLQTopic string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		FinalizeInterval:  getEnvDuration(EnvFinalizeInterval, DefaultFinalizeInterval),
		FinalizeLockTTL:   getEnvDuration(EnvFinalizeLockTTL, DefaultFinalizeLockTTL),
		FinalizeBatchSize: getEnvNum(EnvFinalizeBatchSize, DefaultFinalizeBatchSize),

		NoBidsTerminal:      getEnvBool(EnvNoBidsTerminal, DefaultNoBidsTerminal),
		RebidWindow:         getEnvDuration(EnvRebidWindow, DefaultRebidWindow),
		MaxFinalizeFailures: getEnvNum(EnvMaxFinalizeFailures, DefaultMaxFinalizeFailures),

		NotificationsTopic:    getEnvStr(EnvNotificationsTopic, DefaultNotificationsTopic),
		NotificationsDLQTopic: getEnvStr(EnvNotificationsDLQTopic, DefaultNotificationsDLQTopic),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errs = append(errs, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errs = append(errs, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if cfg.FinalizeInterval <= 0 {
		errs = append(errs, fmt.Sprintf("FinalizeInterval must be positive, got: %s", cfg.FinalizeInterval))
	}
	if cfg.FinalizeLockTTL <= 0 {
		errs = append(errs, fmt.Sprintf("FinalizeLockTTL must be positive, got: %s", cfg.FinalizeLockTTL))
	}
	if cfg.FinalizeLockTTL <= cfg.WriteTimeout {
		errs = append(errs, fmt.Sprintf("FinalizeLockTTL (%s) must exceed WriteTimeout (%s)", cfg.FinalizeLockTTL, cfg.WriteTimeout))
	}
	if cfg.FinalizeBatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("FinalizeBatchSize must be positive, got: %d", cfg.FinalizeBatchSize))
	}
	if !cfg.NoBidsTerminal && cfg.RebidWindow <= 0 {
		errs = append(errs, fmt.Sprintf("RebidWindow must be positive when NoBidsTerminal is false, got: %s", cfg.RebidWindow))
	}
	if cfg.MaxFinalizeFailures <= 0 {
		errs = append(errs, fmt.Sprintf("MaxFinalizeFailures must be positive, got: %d", cfg.MaxFinalizeFailures))
	}

	if cfg.NotificationsTopic == "" {
		errs = append(errs, "NotificationsTopic cannot be empty")
	}

	if cfg.ReadTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, e := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, e)
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
		"finalize_interval", cfg.FinalizeInterval,
		"finalize_lock_ttl", cfg.FinalizeLockTTL,
		"finalize_batch_size", cfg.FinalizeBatchSize,
		"no_bids_terminal", cfg.NoBidsTerminal,
		"rebid_window", cfg.RebidWindow,
		"max_finalize_failures", cfg.MaxFinalizeFailures,
		"notifications_topic", cfg.NotificationsTopic,
		"notifications_dlq_topic", cfg.NotificationsDLQTopic,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
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

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
