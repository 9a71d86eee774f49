// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
)

func LoadRegistry(path string) (*TaskRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TaskRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes reg as indented JSON, stamping LastUpdated.
func Save(reg *TaskRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks required fields and that IDs and task types are unique.
func (r *TaskRegistry) Validate() error {
	if len(r.Tasks) == 0 {
		return fmt.Errorf("registry contains no tasks")
	}

	ids := make(map[string]bool)
	types := make(map[string]bool)
	for _, task := range r.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task missing required field: ID")
		}
		if ids[task.ID] {
			return fmt.Errorf("duplicate task ID: %s", task.ID)
		}
		ids[task.ID] = true

		if task.DisplayName == "" {
			return fmt.Errorf("task %s missing required field: DisplayName", task.ID)
		}
		if task.TaskType == "" {
			return fmt.Errorf("task %s missing required field: TaskType", task.ID)
		}
		if types[task.TaskType] {
			return fmt.Errorf("duplicate task type: %s", task.TaskType)
		}
		types[task.TaskType] = true

		if task.Category == "" {
			return fmt.Errorf("task %s missing required field: Category", task.ID)
		}
	}
	return nil
}

// Find returns the task registered for taskType.
func (r *TaskRegistry) Find(taskType string) (Task, bool) {
	return lo.Find(r.Tasks, func(t Task) bool { return t.TaskType == taskType })
}

// CheckEnabled fails when an enabled task type is unregistered or not yet
// implemented.
func (r *TaskRegistry) CheckEnabled(taskTypes []string) error {
	for _, taskType := range taskTypes {
		task, ok := r.Find(taskType)
		if !ok {
			return fmt.Errorf("task type %s is not registered", taskType)
		}
		if task.ImplementationStatus != StatusImplemented {
			return fmt.Errorf("task type %s is %s, not %s", taskType, task.ImplementationStatus, StatusImplemented)
		}
	}
	return nil
}
