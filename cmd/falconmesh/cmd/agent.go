package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/falconmesh/falconmesh/pkg/agent"
	"github.com/falconmesh/falconmesh/pkg/autopilot"
	"github.com/falconmesh/falconmesh/pkg/client"
	"github.com/falconmesh/falconmesh/pkg/logger"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run autopilot node agents",
	Long:  `Run one or more autonomous node agents against the coordination hub.`,
	RunE:  runAgents,
}

func init() {
	agentCmd.Flags().IntP("count", "n", 0, "number of nodes to run (overrides config)")
	agentCmd.Flags().String("prefix", "", "node id prefix (overrides config)")
	agentCmd.Flags().String("role", "", "node role reported in telemetry")
}

func runAgents(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if count, _ := cmd.Flags().GetInt("count"); count > 0 {
		cfg.Agent.NodeCount = count
	}
	if prefix, _ := cmd.Flags().GetString("prefix"); prefix != "" {
		cfg.Agent.NodePrefix = prefix
	}
	if role, _ := cmd.Flags().GetString("role"); role != "" {
		cfg.Agent.Role = role
	}

	c, err := client.NewClient(client.Config{BaseURL: cfg.Agent.HubURL})
	if err != nil {
		return fmt.Errorf("failed to create hub client: %w", err)
	}

	if err := logger.WithSpinner("connecting to hub", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := c.Health(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("hub unreachable at %s: %w", cfg.Agent.HubURL, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("received interrupt, stopping agents")
		cancel()
	}()

	log := logger.Default()
	logger.LogSection(fmt.Sprintf("Launching %d node(s)", cfg.Agent.NodeCount))

	var wg sync.WaitGroup
	for i := 0; i < cfg.Agent.NodeCount; i++ {
		nodeID := fmt.Sprintf("%s%d", cfg.Agent.NodePrefix, i+1)
		engine := autopilot.New(nodeID, cfg.Agent.Role, time.Now().UnixNano()+int64(i))
		a := agent.New(nodeID, engine, c, cfg.Agent, log)

		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Run(ctx)
		}()
		logger.Progressf("%s launched", nodeID)
	}

	wg.Wait()
	logger.Success("all agents stopped")
	return nil
}
