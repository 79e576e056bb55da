package constant

import "time"

const (
	DefaultOffset = int64(0)
	UnknownOffset = int64(-1)

	LastMessageReaderName = "SIDELINE_LAST_MESSAGE"

	DefaultProducerSendTimeout = 1 * time.Second
	DefaultMaxPendingMsg       = 100

	PartitionSuffixFormat = "-partition-%d"
)

const (
	DefaultMaxInFlight            = 10000
	DefaultFlushIntervalSeconds   = 30
	DefaultIdleSleep              = 5 * time.Millisecond
	DefaultFlushRetryAttempts     = 3
	DefaultFlushRetryBackoff      = 200 * time.Millisecond
	DefaultOutputBufferSize       = 1024
	DefaultReceiverQueueSize      = 1000
	DefaultReplayTimeoutMs        = 5000
	DefaultLatestMsgReadTimeoutMs = 500
)

const (
	ConsumerKeyPrefix = "consumer/"
	SidelineKeyPrefix = "sideline/"

	SidelineEndingSuffix = ":ending"

	MainSpoutIdPrefix     = "main"
	SidelineSpoutIdPrefix = "sideline"
)

const (
	DefaultRetryLimit        = 25
	DefaultRetryInitialDelay = 2 * time.Second
	DefaultRetryMultiplier   = 2.0
	DefaultRetryMaxDelay     = 15 * time.Minute
)
