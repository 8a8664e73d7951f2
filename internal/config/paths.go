package config

import (
	"os"
	"path/filepath"
)

// Settings file names and the variable that points at an explicit file
const (
	EnvConfigPath  = "LIGHTSPEED_CONFIG"
	ConfigFileName = "lightspeed.yaml"
	ConfigDirName  = "lightspeed"
)

// searchPaths lists settings locations, most specific first. Locations whose
// base variable is unset are left out.
func searchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName)
	if dir := userConfigDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// userConfigDir is $XDG_CONFIG_HOME, or "" when unset
func userConfigDir() string {
	return os.Getenv("XDG_CONFIG_HOME")
}

// FindConfigPath returns the first settings file that exists, or "".
// A file found in the working directory is returned as an absolute path.
func FindConfigPath() string {
	for _, p := range searchPaths() {
		if !fileExists(p) {
			continue
		}
		if p == ConfigFileName {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
		}
		return p
	}
	return ""
}

// DefaultConfigPath is where `lightspeed init` writes new settings
func DefaultConfigPath() string {
	if dir := userConfigDir(); dir != "" {
		return filepath.Join(dir, ConfigDirName, "config.yaml")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName, "config.yaml")
	}
	return ConfigFileName
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
