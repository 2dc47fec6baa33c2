package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTaskScheduler()...)
	errors = append(errors, c.validateStatusHandler()...)
	errors = append(errors, c.validateCollaboratorType("data_provider", c.DataProvider)...)
	errors = append(errors, c.validateProcEnv()...)
	errors = append(errors, c.validateCollaboratorType("exporter", c.Exporter)...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL",
		})
	}

	return errors
}

func (c *Config) validateTaskScheduler() ValidationErrors {
	var errors ValidationErrors

	if c.TaskScheduler.BatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "task_scheduler.batch_size",
			Message: "batch_size must be positive",
		})
	}
	if c.TaskScheduler.BatchPrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "task_scheduler.batch_prefix",
			Message: "batch_prefix is required",
		})
	}

	return errors
}

func (c *Config) validateStatusHandler() ValidationErrors {
	var errors ValidationErrors

	if c.StatusHandler.Type == "" {
		errors = append(errors, ValidationError{
			Field:   "status_handler.type",
			Message: "type is required",
		})
	}
	if c.StatusHandler.Type == "sqlite" && c.StatusHandler.Config.DBFile == "" {
		errors = append(errors, ValidationError{
			Field:   "status_handler.config.db_file",
			Message: "db_file is required for the sqlite status handler",
		})
	}

	return errors
}

func (c *Config) validateCollaboratorType(prefix string, cc CollaboratorConfig) ValidationErrors {
	var errors ValidationErrors
	if cc.Type == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".type",
			Message: "type is required",
		})
	}
	return errors
}

func (c *Config) validateProcEnv() ValidationErrors {
	var errors ValidationErrors

	if c.ProcEnv.Type == "" {
		errors = append(errors, ValidationError{
			Field:   "proc_env.type",
			Message: "type is required",
		})
	}

	if c.ProcEnv.Type == "http" {
		if c.ProcEnv.Config.RemoteHost == "" {
			errors = append(errors, ValidationError{
				Field:   "proc_env.config.remote_host",
				Message: "remote_host is required for the http proc_env driver",
			})
		}
		if c.ProcEnv.Config.BatchPrefix == "" {
			errors = append(errors, ValidationError{
				Field:   "proc_env.config.batch_prefix",
				Message: "batch_prefix is required for the http proc_env driver",
			})
		}
		if c.ProcEnv.Config.MonitorInterval <= 0 {
			errors = append(errors, ValidationError{
				Field:   "proc_env.config.monitor_interval",
				Message: "monitor_interval must be positive",
			})
		}
		if c.ProcEnv.Config.PageSize <= 0 {
			errors = append(errors, ValidationError{
				Field:   "proc_env.config.page_size",
				Message: "page_size must be positive",
			})
		}
	}

	return errors
}
