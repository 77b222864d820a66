package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/falconmesh/falconmesh/pkg/logger"
	"github.com/falconmesh/falconmesh/pkg/mission"
)

var missionCmd = &cobra.Command{
	Use:   "mission",
	Short: "Inspect or update the fleet mission",
}

var missionGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current mission",
	RunE:  getMission,
}

var missionSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Apply a mission update from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  setMission,
}

var missionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the mission geometry",
	RunE:  clearMission,
}

func init() {
	missionCmd.AddCommand(missionGetCmd)
	missionCmd.AddCommand(missionSetCmd)
	missionCmd.AddCommand(missionClearCmd)
}

func getMission(_ *cobra.Command, _ []string) error {
	c, err := hubClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := c.Mission(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch mission: %w", err)
	}

	printMission(m)
	return nil
}

func setMission(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read mission file: %w", err)
	}

	// YAML parses JSON too, so one decoder covers both formats.
	var patch mission.Patch
	if err := yaml.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("failed to parse mission file: %w", err)
	}

	c, err := hubClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := c.SetMission(ctx, patch)
	if err != nil {
		return fmt.Errorf("failed to set mission: %w", err)
	}

	logger.Successf("mission %s updated", m.ID)
	printMission(m)
	return nil
}

func clearMission(_ *cobra.Command, _ []string) error {
	c, err := hubClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.ClearMission(ctx); err != nil {
		return fmt.Errorf("failed to clear mission: %w", err)
	}

	logger.Success("mission cleared")
	return nil
}

func printMission(m *mission.Mission) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		logger.Errorf("failed to render mission: %v", err)
		return
	}
	fmt.Println(string(out))
}
