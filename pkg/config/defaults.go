package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "slotwise"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultLinkTokenTTL = 30 * 24 * time.Hour

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultProposalExpiry = 48 * time.Hour

	DefaultDefaultBufferMinutes  = 30
	DefaultDefaultJobDurationMin = 150
	DefaultDefaultDayStart       = "09:00"
	DefaultDefaultDayEnd         = "17:00"

	DefaultSmallJobHours  = 2.0
	DefaultMediumJobHours = 3.0
	DefaultLargeJobHours  = 4.0

	DefaultAvailabilityWindowDays = 30

	DefaultPaginationLimit = 100
)

var DefaultDefaultWorkingDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}
