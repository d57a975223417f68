package util

import (
	"os"
	"path/filepath"
)

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// LocforgeConfigPath returns the locforge configuration directory
func LocforgeConfigPath() string {
	return filepath.Join(HomeDir(), ".config", "locforge")
}

// LocforgeDataPath returns the directory for the server database and
// other durable state
func LocforgeDataPath() string {
	return filepath.Join(HomeDir(), ".local", "share", "locforge")
}

// ExpandPath expands a leading ~ to the home directory
func ExpandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}
