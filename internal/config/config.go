package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all tunables for the sync core.
type Config struct {
	API      APIConfig
	Socket   SocketConfig
	Retry    RetryConfig
	Presence PresenceConfig
}

type APIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
}

type SocketConfig struct {
	URL               string
	DialTimeout       time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	OfflinePause time.Duration
}

type PresenceConfig struct {
	PollInterval time.Duration
	TypingDecay  time.Duration
}

// New builds a Config from environment variables with sensible defaults.
func New() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       getEnv("CHAT_API_URL", "http://localhost:8083"),
			Timeout:       getDuration("CHAT_API_TIMEOUT", 15*time.Second),
			UploadTimeout: getDuration("CHAT_UPLOAD_TIMEOUT", 60*time.Second),
		},
		Socket: SocketConfig{
			URL:               getEnv("CHAT_SOCKET_URL", "ws://localhost:8083/ws"),
			DialTimeout:       getDuration("CHAT_SOCKET_DIAL_TIMEOUT", 10*time.Second),
			ReconnectAttempts: getInt("CHAT_SOCKET_RECONNECT_ATTEMPTS", 5),
			ReconnectDelay:    getDuration("CHAT_SOCKET_RECONNECT_DELAY", 3*time.Second),
		},
		Retry: RetryConfig{
			MaxRetries:   getInt("CHAT_HTTP_MAX_RETRIES", 3),
			BaseDelay:    getDuration("CHAT_HTTP_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:     getDuration("CHAT_HTTP_MAX_DELAY", 8*time.Second),
			OfflinePause: getDuration("CHAT_HTTP_OFFLINE_PAUSE", 2*time.Second),
		},
		Presence: PresenceConfig{
			PollInterval: getDuration("CHAT_PRESENCE_POLL_INTERVAL", 30*time.Second),
			TypingDecay:  getDuration("CHAT_TYPING_DECAY", 3*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
