package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/falconmesh/falconmesh/pkg/client"
	"github.com/falconmesh/falconmesh/pkg/config"
	"github.com/falconmesh/falconmesh/pkg/logger"
)

var (
	cfgFile  string
	hubURL   string
	logLevel string
	noColor  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "falconmesh",
	Short: "Drone fleet coordination",
	Long: `FalconMesh coordinates a fleet of autonomous drones: a central hub
fans out telemetry and commands over websockets while per-node agents
fly missions with a battery-aware autopilot.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./falconmesh.yaml)")
	rootCmd.PersistentFlags().StringVar(&hubURL, "hub", "", "hub URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add commands
	rootCmd.AddCommand(hubCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(missionCmd)
	rootCmd.AddCommand(commandCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig configures the logger and viper's env binding
func initConfig() {
	logger.SetLevel(logger.ParseLevel(logLevel))
	logger.SetNoColor(noColor)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("falconmesh")
	}

	viper.SetEnvPrefix("FALCONMESH")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// loadConfig resolves the process configuration from file, environment
// and flags, in increasing precedence.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if hubURL != "" {
		cfg.Agent.HubURL = hubURL
	}
	return cfg, nil
}

// hubClient builds a client for the configured hub
func hubClient() (*client.Hub, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.NewClient(client.Config{
		BaseURL: cfg.Agent.HubURL,
		Timeout: 5 * time.Second,
	})
}
