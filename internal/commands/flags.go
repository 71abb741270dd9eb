package commands

import (
	"os"
	"path/filepath"

	"github.com/colonyops/workboard/internal/core/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	LogConsole bool
	ConfigPath string
	DataDir    string
	// Root overrides the configured backlog root when set.
	Root  string
	Theme string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// ProjectConfigFile is looked up in the working directory before the user
// config.
const ProjectConfigFile = "workboard.yaml"

// DefaultConfigPath returns ./workboard.yaml when present, otherwise the user
// config file under XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	if _, err := os.Stat(ProjectConfigFile); err == nil {
		return ProjectConfigFile
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "workboard", "config.yaml")
}

// DefaultDataDir returns the default data directory using XDG_DATA_HOME.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "workboard")
}
