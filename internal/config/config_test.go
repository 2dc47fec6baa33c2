package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected logging level INFO, got %s", cfg.Logging.Level)
	}
	if cfg.TaskScheduler.BatchSize != 100 {
		t.Errorf("expected batch_size 100, got %d", cfg.TaskScheduler.BatchSize)
	}
	if cfg.TaskScheduler.BatchPrefix != "pipelinectl" {
		t.Errorf("expected batch_prefix 'pipelinectl', got %s", cfg.TaskScheduler.BatchPrefix)
	}
	if cfg.StatusHandler.Type != "sqlite" {
		t.Errorf("expected status_handler type 'sqlite', got %s", cfg.StatusHandler.Type)
	}
	if cfg.StatusHandler.Config.DBFile == "" {
		t.Errorf("expected a non-empty default db_file")
	}
	if cfg.ProcEnv.Config.MonitorInterval <= 0 {
		t.Errorf("expected a positive default monitor_interval")
	}
	if cfg.ProcEnv.Config.PageSize != 100 {
		t.Errorf("expected page_size 100, got %d", cfg.ProcEnv.Config.PageSize)
	}
}
