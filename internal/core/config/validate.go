package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("root", c.Root, required),
		criterio.Run("work_dir", c.WorkDir, dirName),
		criterio.Run("data_dir", c.DataDir, required),
		criterio.Run("server.addr", c.Server.Addr, required),
		criterio.Run("server.max_body_bytes", c.Server.MaxBodyBytes, positive[int64]),
		criterio.Run("workers.log_lines", c.Workers.LogLines, positive[int]),
		criterio.Run("workers.poll_interval", int64(c.Workers.PollInterval), positive[int64]),
		criterio.Run("reservations.sweep_interval", int64(c.Reservations.SweepInterval), notNegative[int64]),
		criterio.Run("history.retention", int64(c.History.Retention), notNegative[int64]),
		criterio.Run("database.max_open_conns", c.Database.MaxOpenConns, positive[int]),
		c.validateIgnore(),
	)
}

// ValidateDeep performs Validate plus checks that touch the file system.
// The configPath argument specifies the config file location to validate
// (empty string skips the config file check).
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("root", c.Root, isDirectory),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("work_dir", c.WorkPath(), isDirectoryOrNotExist),
	)
}

func (c *Config) validateIgnore() error {
	var errs criterio.FieldErrorsBuilder
	for i, pattern := range c.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			errs = errs.Append(fmt.Sprintf("ignore[%d]", i), fmt.Errorf("invalid glob %q", pattern))
		}
	}
	return errs.ToError()
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

func dirName(s string) error {
	if err := required(s); err != nil {
		return err
	}
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
		return fmt.Errorf("must be a single directory name")
	}
	return nil
}

func positive[T int | int64](v T) error {
	if v <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func notNegative[T int | int64](v T) error {
	if v < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

func isDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
