package config

import (
	"fmt"
	"strings"
	"time"
)

// HubConfig configures the coordination hub process
type HubConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	MissionStorePath string `yaml:"mission_store_path"`
	LogLevel         string `yaml:"log_level"`
}

// AgentConfig configures one or more node agents
type AgentConfig struct {
	HubURL       string        `yaml:"hub_url"`
	NodePrefix   string        `yaml:"node_prefix"`
	NodeCount    int           `yaml:"node_count"`
	Role         string        `yaml:"role"`
	TickInterval time.Duration `yaml:"tick_interval"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogLevel     string        `yaml:"log_level"`
}

// Config is the full process configuration
type Config struct {
	Hub   HubConfig   `yaml:"hub"`
	Agent AgentConfig `yaml:"agent"`
}

// GetDefaultConfig returns the built-in defaults
func GetDefaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			ListenAddr:       ":8080",
			MissionStorePath: "mission.json",
			LogLevel:         "info",
		},
		Agent: AgentConfig{
			HubURL:       "http://localhost:8080",
			NodePrefix:   "uav-",
			NodeCount:    3,
			Role:         "scout",
			TickInterval: time.Second,
			PollInterval: 3 * time.Second,
			LogLevel:     "info",
		},
	}
}

// Validate checks the configuration for obvious mistakes
func (c *Config) Validate() error {
	if c.Hub.ListenAddr == "" {
		return fmt.Errorf("hub listen address is required")
	}
	if c.Agent.HubURL == "" {
		return fmt.Errorf("agent hub URL is required")
	}
	if !strings.HasPrefix(c.Agent.HubURL, "http://") && !strings.HasPrefix(c.Agent.HubURL, "https://") {
		return fmt.Errorf("agent hub URL must be http or https")
	}
	if c.Agent.NodeCount <= 0 {
		return fmt.Errorf("node count must be positive")
	}
	if c.Agent.NodePrefix == "" {
		return fmt.Errorf("node prefix is required")
	}
	if c.Agent.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Agent.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}
