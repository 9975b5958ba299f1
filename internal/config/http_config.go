package config

import "time"

const (
	requestTimeoutVar     = "REQUEST_TIMEOUT"
	defaultRequestTimeout = 15 * time.Second
)

type HTTP struct{}

var _ HTTPConfig = HTTP{}

// GetRequestTimeout is the hard ceiling for a single backend call.
// Unparseable values fall back to the default.
func (HTTP) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv(requestTimeoutVar, ""))
	if err != nil || d <= 0 {
		return defaultRequestTimeout
	}
	return d
}

func (HTTP) GetUserAgent() string {
	return GetEnv("USER_AGENT", "tramcan-session/1")
}
