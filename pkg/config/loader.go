package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/falconmesh/falconmesh/pkg/logger"
)

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads config from file or returns defaults, with
// environment overrides applied either way
func LoadConfigOrDefault(path string) (*Config, error) {
	var config *Config
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			logger.Warnf("could not load config from %s: %v", path, err)
			config = nil
		}
	}

	if config == nil {
		defaultPaths := []string{
			"falconmesh.yaml",
			filepath.Join(".", "config.yaml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				if config, err = LoadConfig(p); err == nil {
					logger.Debugf("loaded config from %s", p)
					break
				}
			}
		}
	}

	if config == nil {
		config = GetDefaultConfig()
	}

	MergeWithEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// MergeWithEnvironment applies environment variable overrides
func MergeWithEnvironment(config *Config) {
	if addr := os.Getenv("FALCONMESH_LISTEN_ADDR"); addr != "" {
		config.Hub.ListenAddr = addr
	}
	if path := os.Getenv("FALCONMESH_MISSION_STORE"); path != "" {
		config.Hub.MissionStorePath = path
	}
	if hubURL := os.Getenv("FALCONMESH_HUB_URL"); hubURL != "" {
		config.Agent.HubURL = hubURL
	}
	if prefix := os.Getenv("FALCONMESH_NODE_PREFIX"); prefix != "" {
		config.Agent.NodePrefix = prefix
	}
	if count := os.Getenv("FALCONMESH_NODE_COUNT"); count != "" {
		if n, err := strconv.Atoi(count); err == nil && n > 0 {
			config.Agent.NodeCount = n
		}
	}
	if tick := os.Getenv("FALCONMESH_TICK_INTERVAL"); tick != "" {
		if d, err := time.ParseDuration(tick); err == nil && d > 0 {
			config.Agent.TickInterval = d
		}
	}
	if poll := os.Getenv("FALCONMESH_POLL_INTERVAL"); poll != "" {
		if d, err := time.ParseDuration(poll); err == nil && d > 0 {
			config.Agent.PollInterval = d
		}
	}
	if level := os.Getenv("FALCONMESH_LOG_LEVEL"); level != "" {
		config.Hub.LogLevel = level
		config.Agent.LogLevel = level
	}
}
