package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/falconmesh/falconmesh/pkg/hub"
	"github.com/falconmesh/falconmesh/pkg/logger"
	"github.com/falconmesh/falconmesh/pkg/mission"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Run the coordination hub",
	Long:  `Serve the fleet coordination hub: telemetry ingest, mission control and command fan-out.`,
	RunE:  runHub,
}

func init() {
	hubCmd.Flags().String("listen", "", "listen address (overrides config)")
	hubCmd.Flags().String("mission-store", "", "mission persistence path (overrides config)")
}

func runHub(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Hub.ListenAddr = listen
	}
	if storePath, _ := cmd.Flags().GetString("mission-store"); storePath != "" {
		cfg.Hub.MissionStorePath = storePath
	}

	log := logger.Default().WithPrefix("hub")

	var store mission.Store
	if cfg.Hub.MissionStorePath != "" {
		store = mission.NewFileStore(cfg.Hub.MissionStorePath)
	}

	h := hub.New(store, log)
	server := &http.Server{
		Addr:    cfg.Hub.ListenAddr,
		Handler: hub.NewServer(h, log).Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Networkf("hub listening on %s", cfg.Hub.ListenAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("hub server failed: %w", err)
	case sig := <-sigChan:
		log.Warnf("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("hub shutdown failed: %w", err)
	}

	logger.Success("hub stopped")
	return nil
}
