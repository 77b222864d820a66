package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/falconmesh/falconmesh/pkg/logger"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Show the fleet snapshot",
	Long:  `Fetch the last-known telemetry for every node the hub has seen.`,
	RunE:  showNodes,
}

func showNodes(_ *cobra.Command, _ []string) error {
	c, err := hubClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := c.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch nodes: %w", err)
	}

	if len(result.Nodes) == 0 {
		logger.Info("no nodes reporting")
		return nil
	}

	table := logger.NewTable("NODE", "STATE", "BATT", "POS", "SPEED", "GOAL", "MISSION")
	for _, n := range result.Nodes {
		table.AddRow(
			n.NodeID,
			stateColor(n.State),
			fmt.Sprintf("%.0f%%", n.BatteryPct),
			fmt.Sprintf("(%.0f, %.0f) @%.0fm", n.Pos.X, n.Pos.Y, n.Pos.Alt),
			fmt.Sprintf("%.1f m/s", n.Vel.SpeedMps),
			n.Nav.ActiveGoal,
			n.MissionID,
		)
	}
	table.Print()
	return nil
}

func stateColor(state string) string {
	if color.NoColor {
		return state
	}
	switch state {
	case "RTB", "LANDING":
		return color.YellowString(state)
	case "CHARGING":
		return color.CyanString(state)
	case "ON_TARGET":
		return color.GreenString(state)
	case "IDLE":
		return color.HiBlackString(state)
	default:
		return state
	}
}
