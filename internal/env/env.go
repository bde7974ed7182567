package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ListenAddr         = "CHAT_LISTEN_ADDR"
	Storage            = "CHAT_STORAGE"
	AWSRegion          = "AWS_REGION"
	AWSID              = "AWS_ID"
	AWSSecret          = "AWS_SECRET"
	AWSToken           = "AWS_TOKEN"
	DynamoDBEndpoint   = "DYNAMODB_ENDPOINT"
	EnsureTables       = "DYNAMODB_ENSURE_TABLES"
	UserSecretKey      = "USER_SECRET"
	TokenTTL           = "TOKEN_TTL"
	Broker             = "CHAT_BROKER"
	ChatRedisURL       = "CHAT_REDIS_URL"
	ChatRedisPass      = "CHAT_REDIS_PASS"
	NATSURL            = "NATS_URL"
	NATSToken          = "NATS_TOKEN"
	CORSOrigins        = "CORS_ORIGINS"
	RateLimitRequests  = "RATE_LIMIT_REQUESTS"
	RateLimitWindow    = "RATE_LIMIT_WINDOW"
	QueueSize          = "REQUEST_QUEUE_SIZE"
	QueueWorkers       = "REQUEST_QUEUE_WORKERS"
	LogLevel           = "LOG_LEVEL"
	ChatAPIURL         = "CHAT_API_URL"
	ChatWSURL          = "CHAT_WS_URL"
	CredentialsFile    = "CHAT_CREDENTIALS_FILE"
	PollInterval       = "CHAT_POLL_INTERVAL"
	ListInterval       = "CHAT_LIST_INTERVAL"
	TypingTTL          = "CHAT_TYPING_TTL"
	Reconnect          = "CHAT_RECONNECT"
	PollStopAfter      = "CHAT_POLL_STOP_AFTER"
	HTTPRequestTimeout = "CHAT_HTTP_TIMEOUT"
)

// Required panics when any of the given variables is unset.
func Required(keys ...string) {
	for _, key := range keys {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

func GetInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func GetBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func GetDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// GetList splits a comma separated variable, dropping empty entries.
func GetList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	out := make([]string, 0)
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
