package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *TaskRegistry {
	return &TaskRegistry{
		Version: "1.0.0",
		Tasks: []Task{
			{ID: "generate-travel-plan", DisplayName: "Generate Travel Plan", Category: "travel", TaskType: "generate-travel-plan", ImplementationStatus: StatusImplemented},
			{ID: "generate-quiz", DisplayName: "Generate Quiz", Category: "quiz", TaskType: "generate-quiz", ImplementationStatus: "planned"},
		},
	}
}

func TestTaskRegistry_Validate(t *testing.T) {
	assert.NoError(t, testRegistry().Validate())

	tests := []struct {
		name   string
		mutate func(r *TaskRegistry)
		want   string
	}{
		{"empty", func(r *TaskRegistry) { r.Tasks = nil }, "no tasks"},
		{"duplicate id", func(r *TaskRegistry) { r.Tasks[1].ID = r.Tasks[0].ID }, "duplicate task ID"},
		{"duplicate type", func(r *TaskRegistry) { r.Tasks[1].TaskType = r.Tasks[0].TaskType }, "duplicate task type"},
		{"missing name", func(r *TaskRegistry) { r.Tasks[0].DisplayName = "" }, "DisplayName"},
		{"missing category", func(r *TaskRegistry) { r.Tasks[0].Category = "" }, "Category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testRegistry()
			tt.mutate(reg)
			err := reg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTaskRegistry_CheckEnabled(t *testing.T) {
	reg := testRegistry()

	assert.NoError(t, reg.CheckEnabled([]string{"generate-travel-plan"}))
	assert.ErrorContains(t, reg.CheckEnabled([]string{"generate-quiz"}), "planned")
	assert.ErrorContains(t, reg.CheckEnabled([]string{"fetch-travel-plan"}), "not registered")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "task-registry.json")

	require.NoError(t, Save(testRegistry(), path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Tasks, 2)
	assert.NotEmpty(t, loaded.LastUpdated)
}

func TestLoadRegistry_Shipped(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "task-registry.json"))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())
	assert.NoError(t, reg.CheckEnabled([]string{
		"generate-travel-plan", "generate-quiz", "fetch-travel-plan", "export-travel-plans",
	}))
}
