// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"travel-planner-workers/internal/common/config"
	"travel-planner-workers/pkg/registry"

	"github.com/samber/lo"
)

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	listPath := listCmd.String("path", "configs/task-registry.json", "Path to registry file")

	statusPath := statusCmd.String("path", "configs/task-registry.json", "Path to registry file")
	statusID := statusCmd.String("id", "", "Task ID to update")
	statusValue := statusCmd.String("value", "", "New implementation status (planned, in-progress, implemented)")

	validatePath := validateCmd.String("path", "configs/task-registry.json", "Path to registry file")
	configPath := validateCmd.String("config", "", "Worker config to cross-check enabled task types against")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		err = listTasks(*listPath)

	case "status":
		statusCmd.Parse(os.Args[2:])
		if *statusID == "" || *statusValue == "" {
			fmt.Println("Error: id and value are required for status.")
			statusCmd.Usage()
			os.Exit(1)
		}
		err = setStatus(*statusPath, *statusID, *statusValue)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateRegistry(*validatePath, *configPath)

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func listTasks(path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	for _, task := range reg.Tasks {
		fmt.Printf("%-24s %-12s %-12s %s\n", task.TaskType, task.Category, task.ImplementationStatus, task.DisplayName)
	}
	return nil
}

func setStatus(path, id, status string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	_, idx, found := lo.FindIndexOf(reg.Tasks, func(t registry.Task) bool { return t.ID == id })
	if !found {
		return fmt.Errorf("task with ID %s not found", id)
	}
	reg.Tasks[idx].ImplementationStatus = status

	if err := registry.Save(reg, path); err != nil {
		return err
	}
	fmt.Printf("Updated task %s status to %s\n", id, status)
	return nil
}

func validateRegistry(path, configPath string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := reg.CheckEnabled(config.EnabledWorkers(cfg)); err != nil {
			return err
		}
	}

	fmt.Printf("Registry validation passed. Found %d tasks.\n", len(reg.Tasks))
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  list      List registered task types
  status    Update a task's implementation status
  validate  Validate the registry file, optionally against a worker config
  help      Show this help message

Examples:
  registry-updater status -id generate-quiz -value implemented
  registry-updater validate -path configs/task-registry.json -config configs/config.yaml`)
}
