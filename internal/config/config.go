package config

import "time"

type Config interface {
	EnvConfig
	HTTPConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetDataFolder() string
	GetLogLevel() string
	GetPort() string
}

type HTTPConfig interface {
	GetRequestTimeout() time.Duration
	GetUserAgent() string
}

type StorageConfig interface {
	GetStoreDriver() string
	GetStoreSecret() string
	GetStoreFile() string
}

type mainConfig struct {
	EnvVars
	HTTP
	Storage
}

func New() Config {
	return mainConfig{}
}
