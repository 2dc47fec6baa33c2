// Package config provides configuration structures and loading for pipelinectl.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging" mapstructure:"logging"`
	TaskScheduler TaskSchedulerConfig `yaml:"task_scheduler" mapstructure:"task_scheduler"`
	StatusHandler StatusHandlerConfig `yaml:"status_handler" mapstructure:"status_handler"`
	DataProvider  CollaboratorConfig  `yaml:"data_provider" mapstructure:"data_provider"`
	ProcEnv       ProcEnvConfig       `yaml:"proc_env" mapstructure:"proc_env"`
	Exporter      CollaboratorConfig  `yaml:"exporter" mapstructure:"exporter"`
	StatusMonitor CollaboratorConfig  `yaml:"status_monitor" mapstructure:"status_monitor"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Level string `yaml:"level" mapstructure:"level"` // DEBUG, INFO, WARNING, ERROR, CRITICAL
}

// TaskSchedulerConfig represents the scheduler's main-loop settings.
type TaskSchedulerConfig struct {
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchPrefix string `yaml:"batch_prefix" mapstructure:"batch_prefix"`
}

// StatusHandlerConfig selects and configures the Ledger implementation.
// TYPE is an opaque identifier the registry resolves to a concrete
// collaborator; CONFIG.DB_FILE is specific to the reference SQLite variant.
type StatusHandlerConfig struct {
	Type   string             `yaml:"type" mapstructure:"type"`
	Config StatusHandlerFiles `yaml:"config" mapstructure:"config"`
}

// StatusHandlerFiles holds the reference SQLite ledger's settings.
type StatusHandlerFiles struct {
	DBFile string `yaml:"db_file" mapstructure:"db_file"`
}

// CollaboratorConfig is the generic shape for a registry-resolved
// collaborator: an opaque TYPE identifier plus a free-form CONFIG blob the
// concrete factory interprets.
type CollaboratorConfig struct {
	Type   string                 `yaml:"type" mapstructure:"type"`
	Config map[string]interface{} `yaml:"config" mapstructure:"config"`
}

// ProcEnvConfig selects and configures the ProcessingDriver implementation.
type ProcEnvConfig struct {
	Type   string              `yaml:"type" mapstructure:"type"`
	Config ProcEnvDriverConfig `yaml:"config" mapstructure:"config"`
}

// ProcEnvDriverConfig holds the reference remote-service driver's settings.
type ProcEnvDriverConfig struct {
	RemoteHost      string        `yaml:"remote_host" mapstructure:"remote_host"`
	RemoteTaskID    string        `yaml:"remote_task_id" mapstructure:"remote_task_id"`
	StatusDir       string        `yaml:"status_dir" mapstructure:"status_dir"`
	MonitorInterval time.Duration `yaml:"monitor_interval" mapstructure:"monitor_interval"`
	IndexHost       string        `yaml:"index_host" mapstructure:"index_host"`
	IndexPort       int           `yaml:"index_port" mapstructure:"index_port"`
	IndexName       string        `yaml:"index_name" mapstructure:"index_name"`
	QueryTimeout    time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`
	BatchPrefix     string        `yaml:"batch_prefix" mapstructure:"batch_prefix"`
	PageSize        int           `yaml:"page_size" mapstructure:"page_size"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Name:  "pipelinectl",
			Dir:   "",
			Level: "INFO",
		},
		TaskScheduler: TaskSchedulerConfig{
			BatchSize:   100,
			BatchPrefix: "pipelinectl",
		},
		StatusHandler: StatusHandlerConfig{
			Type: "sqlite",
			Config: StatusHandlerFiles{
				DBFile: "pipelinectl.db",
			},
		},
		ProcEnv: ProcEnvConfig{
			Type: "http",
			Config: ProcEnvDriverConfig{
				MonitorInterval: 30 * time.Second,
				QueryTimeout:    10 * time.Second,
				BatchPrefix:     "pipelinectl",
				PageSize:        100,
			},
		},
	}
}
