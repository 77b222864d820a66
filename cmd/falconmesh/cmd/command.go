package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/falconmesh/falconmesh/pkg/client"
	"github.com/falconmesh/falconmesh/pkg/hub"
	"github.com/falconmesh/falconmesh/pkg/logger"
)

var fleetCommands = []string{"HOLD", "RTB", "FORM_UP", "RESUME"}

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Dispatch a fleet command",
	Long:  `Send a command to one node or the whole fleet. Without flags, target and command are picked interactively.`,
	RunE:  dispatchCommand,
}

func init() {
	commandCmd.Flags().StringP("target", "t", "", `target node id or "all"`)
	commandCmd.Flags().StringP("command", "c", "", "command to send (HOLD, RTB, FORM_UP, RESUME)")
}

func dispatchCommand(cmd *cobra.Command, _ []string) error {
	c, err := hubClient()
	if err != nil {
		return err
	}

	target, _ := cmd.Flags().GetString("target")
	command, _ := cmd.Flags().GetString("command")

	if target == "" {
		if target, err = selectTarget(c); err != nil {
			return fmt.Errorf("failed to select target: %w", err)
		}
	}
	if !hub.ValidTarget(target) {
		return fmt.Errorf("invalid target %q", target)
	}

	if command == "" {
		prompt := &survey.Select{
			Message: "Select command:",
			Options: fleetCommands,
		}
		if err := survey.AskOne(prompt, &command); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.Command(ctx, client.CommandRequest{
		Target:  target,
		Command: command,
	})
	if err != nil {
		return fmt.Errorf("failed to dispatch command: %w", err)
	}

	logger.Successf("%s -> %s delivered to %d node(s)", command, target, resp.Delivered)
	return nil
}

// selectTarget offers the live fleet plus "all" as choices
func selectTarget(c *client.Hub) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := c.Nodes(ctx)
	if err != nil {
		return "", err
	}

	options := []string{"all"}
	for _, n := range result.Nodes {
		options = append(options, n.NodeID)
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select target:",
		Options: options,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}
