package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RunRecord remembers the last deployment so it can be torn down later
type RunRecord struct {
	RunID        string            `yaml:"run_id"`
	TagKey       string            `yaml:"tag_key"`
	Region       string            `yaml:"region,omitempty"`
	Profile      string            `yaml:"profile,omitempty"`
	LoadBalancer string            `yaml:"load_balancer,omitempty"`
	DNSName      string            `yaml:"dns_name,omitempty"`
	TargetGroups map[string]string `yaml:"target_groups,omitempty"` // cluster name -> ARN
	Instances    []string          `yaml:"instances,omitempty"`
	CreatedAt    time.Time         `yaml:"created_at"`
}

// GetStateDir returns the state directory path (~/.cbench)
func GetStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cbench"
	}
	return filepath.Join(home, ".cbench")
}

// GetRunRecordPath returns the run record path (~/.cbench/last-run.yaml)
func GetRunRecordPath() string {
	return filepath.Join(GetStateDir(), "last-run.yaml")
}

// LoadRunRecord reads a run record. A missing file returns nil and no error.
func LoadRunRecord(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}

	var rec RunRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse run record: %w", err)
	}

	return &rec, nil
}

// SaveRunRecord writes a run record, creating its directory if needed
func SaveRunRecord(path string, rec *RunRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}

	return nil
}

// ClearRunRecord removes the run record after a successful teardown
func ClearRunRecord(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove run record: %w", err)
	}
	return nil
}
