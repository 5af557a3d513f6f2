package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvFinalizeInterval  = "FINALIZE_INTERVAL"
	EnvFinalizeLockTTL   = "FINALIZE_LOCK_TTL"
	EnvFinalizeBatchSize = "FINALIZE_BATCH_SIZE"

	EnvNoBidsTerminal      = "NO_BIDS_TERMINAL"
	EnvRebidWindow         = "REBID_WINDOW"
	EnvMaxFinalizeFailures = "MAX_FINALIZE_FAILURES"

	EnvNotificationsTopic    = "NOTIFICATIONS_TOPIC"
	EnvNotificationsDLQTopic = "NOTIFICATIONS_DLQ_TOPIC"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
