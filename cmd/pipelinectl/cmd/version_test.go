package cmd

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommandStructure(t *testing.T) {
	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
	assert.NotEmpty(t, versionCmd.Short)
	assert.NotNil(t, versionCmd.Run)
}

func TestRunVersion(t *testing.T) {
	originalVersion, originalCommit := Version, Commit
	defer func() { Version, Commit = originalVersion, originalCommit }()

	Version, Commit = "1.2.3", "abc123"

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	runVersion(versionCmd, []string{})

	output := buf.String()
	assert.Contains(t, output, "pipelinectl version 1.2.3")
	assert.Contains(t, output, "Commit: abc123")
	assert.Contains(t, output, "Go version:")
	assert.Contains(t, output, runtime.Version())
	assert.Contains(t, output, runtime.GOOS)
}

func TestVersionIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "version" {
			found = true
		}
	}
	assert.True(t, found, "version command should be registered on root")
}
