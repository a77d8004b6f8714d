package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
)

// GetOrCreateInstanceID retrieves or creates a unique instance ID for this proxy.
// The ID is stored in a file so it persists across restarts; an empty path
// yields a fresh ID per process.
func GetOrCreateInstanceID(path string) (string, error) {
	if path == "" {
		instanceID := uuid.New().String()
		logging.Logger.Info("Generated ephemeral instance ID", zap.String("id", instanceID))
		return instanceID, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			logging.Logger.Info("Loaded existing instance ID", zap.String("id", id.String()))
			return id.String(), nil
		}
		logging.Logger.Warn("Ignoring malformed instance ID file", zap.String("path", path))
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to read instance ID: %w", err)
	}

	// Generate new instance ID
	instanceID := uuid.New().String()
	logging.Logger.Info("Generated new instance ID", zap.String("id", instanceID))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create instance ID directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(instanceID+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to save instance ID: %w", err)
	}

	logging.Logger.Info("Saved instance ID", zap.String("path", path))
	return instanceID, nil
}
