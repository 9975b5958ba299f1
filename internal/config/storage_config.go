package config

import "path/filepath"

const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStoreDriver() string {
	switch d := GetEnv("STORE_DRIVER", StoreDriverFile); d {
	case StoreDriverFile, StoreDriverSQLite, StoreDriverMemory:
		return d
	default:
		return StoreDriverFile
	}
}

// GetStoreSecret returns the passphrase used to seal persisted values.
// Empty disables sealing.
func (Storage) GetStoreSecret() string {
	return GetEnv("STORE_SECRET", "")
}

// GetStoreFile returns the path of the store for the configured driver.
func (s Storage) GetStoreFile() string {
	folder := EnvVars{}.GetDataFolder()
	if s.GetStoreDriver() == StoreDriverSQLite {
		return GetEnv("STORE_FILE", filepath.Join(folder, "session.db"))
	}
	return GetEnv("STORE_FILE", filepath.Join(folder, "session"))
}
