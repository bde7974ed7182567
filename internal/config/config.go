// Package config assembles server and client configuration from the environment.
package config

import (
	"time"

	"channah-support-chat/internal/env"
)

const (
	StorageDynamo = "dynamodb"
	StorageMemory = "memory"

	BrokerRedis = "redis"
	BrokerNATS  = "nats"
	BrokerLocal = "local"

	ReconnectBackoff = "backoff"
	ReconnectNone    = "none"
)

// Server holds configuration for cmd/chat-server.
type Server struct {
	ListenAddr string
	Storage    string
	LogLevel   string

	// DynamoDB
	AWSRegion        string
	AWSID            string
	AWSSecret        string
	AWSToken         string
	DynamoDBEndpoint string
	EnsureTables     bool

	// Auth
	UserSecret string
	TokenTTL   time.Duration

	// Push fan-out
	Broker    string
	RedisURL  string
	RedisPass string
	NATSURL   string
	NATSToken string

	// HTTP
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	QueueSize         int
	QueueWorkers      int
}

// LoadServer reads server configuration from environment variables.
func LoadServer() Server {
	return Server{
		ListenAddr: env.GetOrDefault(env.ListenAddr, ":8083"),
		Storage:    env.GetOrDefault(env.Storage, StorageDynamo),
		LogLevel:   env.GetOrDefault(env.LogLevel, "info"),

		AWSRegion:        env.GetOrDefault(env.AWSRegion, "eu-central-1"),
		AWSID:            env.Get(env.AWSID),
		AWSSecret:        env.Get(env.AWSSecret),
		AWSToken:         env.Get(env.AWSToken),
		DynamoDBEndpoint: env.Get(env.DynamoDBEndpoint),
		EnsureTables:     env.GetBool(env.EnsureTables, false),

		UserSecret: env.GetOrDefault(env.UserSecretKey, "development-secret-change-in-production"),
		TokenTTL:   env.GetDuration(env.TokenTTL, 24*time.Hour),

		Broker:    env.GetOrDefault(env.Broker, BrokerRedis),
		RedisURL:  env.GetOrDefault(env.ChatRedisURL, "localhost:6379"),
		RedisPass: env.Get(env.ChatRedisPass),
		NATSURL:   env.GetOrDefault(env.NATSURL, "nats://localhost:4222"),
		NATSToken: env.Get(env.NATSToken),

		CORSOrigins:       env.GetList(env.CORSOrigins, []string{"http://localhost:3000"}),
		RateLimitRequests: env.GetInt(env.RateLimitRequests, 120),
		RateLimitWindow:   env.GetDuration(env.RateLimitWindow, time.Minute),
		QueueSize:         env.GetInt(env.QueueSize, 10),
		QueueWorkers:      env.GetInt(env.QueueWorkers, 10),
	}
}

// Client holds configuration for cmd/chat-client.
type Client struct {
	APIURL          string
	WSURL           string
	CredentialsFile string
	LogLevel        string
	HTTPTimeout     time.Duration

	PollInterval  time.Duration
	ListInterval  time.Duration
	TypingTTL     time.Duration
	Reconnect     string
	PollStopAfter int
}

// LoadClient reads client configuration from environment variables.
func LoadClient() Client {
	return Client{
		APIURL:          env.GetOrDefault(env.ChatAPIURL, "http://localhost:8083/api/v1"),
		WSURL:           env.GetOrDefault(env.ChatWSURL, "ws://localhost:8083/api/v1/ws"),
		CredentialsFile: env.Get(env.CredentialsFile),
		LogLevel:        env.GetOrDefault(env.LogLevel, "warn"),
		HTTPTimeout:     env.GetDuration(env.HTTPRequestTimeout, 10*time.Second),

		PollInterval:  env.GetDuration(env.PollInterval, 5*time.Second),
		ListInterval:  env.GetDuration(env.ListInterval, 10*time.Second),
		TypingTTL:     env.GetDuration(env.TypingTTL, 3*time.Second),
		Reconnect:     env.GetOrDefault(env.Reconnect, ReconnectBackoff),
		PollStopAfter: env.GetInt(env.PollStopAfter, 0),
	}
}
