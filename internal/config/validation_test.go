package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "INFO"},
		TaskScheduler: TaskSchedulerConfig{
			BatchSize:   100,
			BatchPrefix: "pipelinectl",
		},
		StatusHandler: StatusHandlerConfig{
			Type:   "sqlite",
			Config: StatusHandlerFiles{DBFile: "pipelinectl.db"},
		},
		DataProvider: CollaboratorConfig{Type: "mock"},
		ProcEnv: ProcEnvConfig{
			Type: "http",
			Config: ProcEnvDriverConfig{
				RemoteHost:      "http://remote.example",
				BatchPrefix:     "pipelinectl",
				MonitorInterval: 30 * time.Second,
				PageSize:        100,
			},
		},
		Exporter: CollaboratorConfig{Type: "mock"},
	}
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "VERBOSE"
	assertValidationField(t, cfg, "logging.level")
}

func TestValidate_RejectsNonPositiveBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.TaskScheduler.BatchSize = 0
	assertValidationField(t, cfg, "task_scheduler.batch_size")
}

func TestValidate_RejectsMissingBatchPrefix(t *testing.T) {
	cfg := validConfig()
	cfg.TaskScheduler.BatchPrefix = ""
	assertValidationField(t, cfg, "task_scheduler.batch_prefix")
}

func TestValidate_RejectsMissingStatusHandlerType(t *testing.T) {
	cfg := validConfig()
	cfg.StatusHandler.Type = ""
	assertValidationField(t, cfg, "status_handler.type")
}

func TestValidate_RejectsMissingDBFileForSQLite(t *testing.T) {
	cfg := validConfig()
	cfg.StatusHandler.Config.DBFile = ""
	assertValidationField(t, cfg, "status_handler.config.db_file")
}

func TestValidate_RejectsMissingRemoteHostForHTTPDriver(t *testing.T) {
	cfg := validConfig()
	cfg.ProcEnv.Config.RemoteHost = ""
	assertValidationField(t, cfg, "proc_env.config.remote_host")
}

func TestValidate_RejectsNonPositiveMonitorInterval(t *testing.T) {
	cfg := validConfig()
	cfg.ProcEnv.Config.MonitorInterval = 0
	assertValidationField(t, cfg, "proc_env.config.monitor_interval")
}

func TestValidate_RejectsMissingCollaboratorTypes(t *testing.T) {
	cfg := validConfig()
	cfg.DataProvider.Type = ""
	assertValidationField(t, cfg, "data_provider.type")
}

func TestValidationErrors_ErrorStringListsEveryField(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "VERBOSE"
	cfg.TaskScheduler.BatchSize = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "logging.level") || !strings.Contains(msg, "task_scheduler.batch_size") {
		t.Errorf("expected both failing fields in error message, got: %s", msg)
	}
}

func assertValidationField(t *testing.T, cfg *Config, field string) {
	t.Helper()
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error for field %s", field)
	}
	if !strings.Contains(err.Error(), field) {
		t.Errorf("expected error mentioning %q, got: %s", field, err.Error())
	}
}
