package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvLinkTokenSecret = "LINK_TOKEN_SECRET"
	EnvLinkTokenTTL    = "LINK_TOKEN_TTL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvProposalExpiry = "PROPOSAL_EXPIRY"

	EnvDefaultBufferMinutes  = "DEFAULT_BUFFER_MINUTES"
	EnvDefaultJobDurationMin = "DEFAULT_JOB_DURATION_MIN"
	EnvDefaultDayStart       = "DEFAULT_DAY_START"
	EnvDefaultDayEnd         = "DEFAULT_DAY_END"

	EnvSmallJobHours  = "SMALL_JOB_HOURS"
	EnvMediumJobHours = "MEDIUM_JOB_HOURS"
	EnvLargeJobHours  = "LARGE_JOB_HOURS"

	EnvAvailabilityWindowDays = "AVAILABILITY_WINDOW_DAYS"
)
