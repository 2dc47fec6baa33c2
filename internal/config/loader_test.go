package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeTestConfig(t, `
logging:
  name: pipelinectl-test
  level: DEBUG

task_scheduler:
  batch_size: 50
  batch_prefix: test-prefix

status_handler:
  type: sqlite
  config:
    db_file: /var/lib/pipelinectl/test.db

data_provider:
  type: mock

proc_env:
  type: http
  config:
    remote_host: http://remote.example
    remote_task_id: video-task
    status_dir: /var/lib/pipelinectl/status
    monitor_interval: 5s
    index_host: index.example
    index_port: 9200
    index_name: tasks
    query_timeout: 10s
    batch_prefix: test-prefix
    page_size: 200

exporter:
  type: mock
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected logging level DEBUG, got %s", cfg.Logging.Level)
	}
	if cfg.TaskScheduler.BatchSize != 50 {
		t.Errorf("expected batch_size 50, got %d", cfg.TaskScheduler.BatchSize)
	}
	if cfg.StatusHandler.Config.DBFile != "/var/lib/pipelinectl/test.db" {
		t.Errorf("unexpected db_file: %s", cfg.StatusHandler.Config.DBFile)
	}
	if cfg.ProcEnv.Config.RemoteHost != "http://remote.example" {
		t.Errorf("unexpected remote_host: %s", cfg.ProcEnv.Config.RemoteHost)
	}
	if cfg.ProcEnv.Config.IndexPort != 9200 {
		t.Errorf("expected index_port 9200, got %d", cfg.ProcEnv.Config.IndexPort)
	}
	if cfg.ProcEnv.Config.PageSize != 200 {
		t.Errorf("expected page_size 200, got %d", cfg.ProcEnv.Config.PageSize)
	}
	if cfg.Exporter.Type != "mock" {
		t.Errorf("expected exporter type 'mock', got %s", cfg.Exporter.Type)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("PIPELINECTL_REMOTE_HOST", "http://resolved.example")

	configPath := writeTestConfig(t, `
status_handler:
  type: sqlite
  config:
    db_file: test.db

proc_env:
  type: http
  config:
    remote_host: "${PIPELINECTL_REMOTE_HOST}"
    batch_prefix: test-prefix
    monitor_interval: 1s
    page_size: 10
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.ProcEnv.Config.RemoteHost != "http://resolved.example" {
		t.Errorf("expected expanded remote_host, got %s", cfg.ProcEnv.Config.RemoteHost)
	}
}

func TestExpandEnvVar_UnknownVariableIsLeftAsIs(t *testing.T) {
	got := expandEnvVar("${THIS_VAR_DOES_NOT_EXIST_IN_TESTS}")
	if got != "${THIS_VAR_DOES_NOT_EXIST_IN_TESTS}" {
		t.Errorf("expected unresolved placeholder to be left unchanged, got %s", got)
	}
}
