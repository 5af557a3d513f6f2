package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "haulbid"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultFinalizeInterval  = 30 * time.Second
	DefaultFinalizeLockTTL   = 60 * time.Second
	DefaultFinalizeBatchSize = 50

	DefaultNoBidsTerminal      = true
	DefaultRebidWindow         = 2 * time.Hour
	DefaultMaxFinalizeFailures = 5

	DefaultNotificationsTopic    = "haulbid.notifications"
	DefaultNotificationsDLQTopic = "haulbid.notifications.dlq"

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
