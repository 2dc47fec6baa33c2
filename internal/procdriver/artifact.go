package procdriver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// registrationArtifact is the on-disk envelope of the remote service's
// register reply. It is the driver's source of truth for which items were
// accepted into a proc batch, consulted on every subsequent call so a
// partially-registered batch never needs to be re-registered from scratch.
type registrationArtifact struct {
	ProcBatchID int64           `json:"proc_batch_id"`
	CreatorID   string          `json:"creator_id"`
	Response    registerResponse `json:"response"`
}

// batchFileName mirrors the remote creator id convention so the artifact is
// trivially greppable against the remote service's own batch naming.
func batchFileName(batchPrefix string, procBatchID int64) string {
	return fmt.Sprintf("%s_%d.json", batchPrefix, procBatchID)
}

func artifactPath(statusDir, batchPrefix string, procBatchID int64) string {
	return filepath.Join(statusDir, batchFileName(batchPrefix, procBatchID))
}

func writeArtifact(statusDir, batchPrefix string, procBatchID int64, resp registerResponse) error {
	if err := os.MkdirAll(statusDir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	artifact := registrationArtifact{
		ProcBatchID: procBatchID,
		CreatorID:   fmt.Sprintf("%s_%d", batchPrefix, procBatchID),
		Response:    resp,
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registration artifact: %w", err)
	}
	return os.WriteFile(artifactPath(statusDir, batchPrefix, procBatchID), data, 0o644)
}

// readArtifact returns the previously-persisted registration reply, or
// (nil, nil) if the batch was never registered.
func readArtifact(statusDir, batchPrefix string, procBatchID int64) (*registrationArtifact, error) {
	data, err := os.ReadFile(artifactPath(statusDir, batchPrefix, procBatchID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registration artifact: %w", err)
	}
	var artifact registrationArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("unmarshal registration artifact: %w", err)
	}
	return &artifact, nil
}
