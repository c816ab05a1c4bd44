package util

import (
	"os"
	"path/filepath"
)

// GetDataDir returns the data directory path
func GetDataDir() string {
	if envDir := os.Getenv("BLESM_DIR"); envDir != "" {
		return envDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".blesm-data")
}

// GetDeviceDir returns the event-log directory for a specific device
func GetDeviceDir(deviceUUID string) string {
	return filepath.Join(GetDataDir(), deviceUUID)
}
