package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ader1990/adpreplic/internal/model"
)

// ServerConfig holds the client API and inter-DC RPC server configuration
type ServerConfig struct {
	DCID            string        `yaml:"dc_id"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PeersConfig holds peer discovery and RPC timeout configuration
type PeersConfig struct {
	DCListFile      string        `yaml:"dc_list_file"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	MutationTimeout time.Duration `yaml:"mutation_timeout"`
}

// StrategyConfig holds the default strategy parameters applied to keys
// created without explicit parameters
type StrategyConfig struct {
	DecayTime     time.Duration `yaml:"decay_time"`
	DecayFactor   float64       `yaml:"decay_factor"`
	ReplThreshold float64       `yaml:"repl_threshold"`
	RmvThreshold  float64       `yaml:"rmv_threshold"`
	MaxStrength   float64       `yaml:"max_strength"`
	RStrength     float64       `yaml:"rstrength"`
	WStrength     float64       `yaml:"wstrength"`
	MinDCsNumber  int           `yaml:"min_dcs_number"`
}

// GossipConfig holds memberlist discovery configuration
type GossipConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BindPort       int           `yaml:"bind_port"`
	SeedNodes      []string      `yaml:"seed_nodes"`
	GossipInterval time.Duration `yaml:"gossip_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	JoinRetries    int           `yaml:"join_retries"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Backend string `yaml:"backend"` // "memory" or "disk"
	DataDir string `yaml:"data_dir"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for one DC instance
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Peers    PeersConfig    `yaml:"peers"`
	Strategy StrategyConfig `yaml:"strategy"`
	Gossip   GossipConfig   `yaml:"gossip"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7420
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Peers.QueryTimeout == 0 {
		cfg.Peers.QueryTimeout = 1 * time.Second
	}
	if cfg.Peers.MutationTimeout == 0 {
		cfg.Peers.MutationTimeout = 5 * time.Second
	}

	if cfg.Strategy.DecayTime == 0 {
		cfg.Strategy.DecayTime = 1 * time.Second
	}
	if cfg.Strategy.DecayFactor == 0 {
		cfg.Strategy.DecayFactor = 50
	}
	if cfg.Strategy.ReplThreshold == 0 {
		cfg.Strategy.ReplThreshold = 100
	}
	if cfg.Strategy.RmvThreshold == 0 {
		cfg.Strategy.RmvThreshold = 20
	}
	if cfg.Strategy.MaxStrength == 0 {
		cfg.Strategy.MaxStrength = 1000
	}
	if cfg.Strategy.RStrength == 0 {
		cfg.Strategy.RStrength = 60
	}
	if cfg.Strategy.WStrength == 0 {
		cfg.Strategy.WStrength = 80
	}
	if cfg.Strategy.MinDCsNumber == 0 {
		cfg.Strategy.MinDCsNumber = 1
	}

	if cfg.Gossip.GossipInterval == 0 {
		cfg.Gossip.GossipInterval = 200 * time.Millisecond
	}
	if cfg.Gossip.ProbeTimeout == 0 {
		cfg.Gossip.ProbeTimeout = 500 * time.Millisecond
	}
	if cfg.Gossip.ProbeInterval == 0 {
		cfg.Gossip.ProbeInterval = 1 * time.Second
	}
	if cfg.Gossip.JoinRetries == 0 {
		cfg.Gossip.JoinRetries = 5
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/var/lib/adpreplic"
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9420
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.DCID == "" {
		return fmt.Errorf("server.dc_id is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Strategy.RmvThreshold > c.Strategy.ReplThreshold {
		return fmt.Errorf("strategy.rmv_threshold must not exceed strategy.repl_threshold")
	}
	if c.Strategy.MaxStrength < c.Strategy.ReplThreshold {
		return fmt.Errorf("strategy.max_strength must not be below strategy.repl_threshold")
	}
	if c.Strategy.MinDCsNumber < 1 {
		return fmt.Errorf("strategy.min_dcs_number must be at least 1")
	}
	if c.Storage.Backend != "memory" && c.Storage.Backend != "disk" {
		return fmt.Errorf("storage.backend must be \"memory\" or \"disk\"")
	}
	return nil
}

// Params converts the configured defaults into per-key strategy parameters
func (c *StrategyConfig) Params() model.StrategyParams {
	return model.StrategyParams{
		DecayTime:     c.DecayTime.Milliseconds(),
		DecayFactor:   c.DecayFactor,
		ReplThreshold: c.ReplThreshold,
		RmvThreshold:  c.RmvThreshold,
		MaxStrength:   c.MaxStrength,
		RStrength:     c.RStrength,
		WStrength:     c.WStrength,
		MinDCsNumber:  c.MinDCsNumber,
	}
}

// Peer is one entry of the DC list file
type Peer struct {
	ID   string
	Addr string
}

// LoadDCList parses the DC list file: one "id host:port" per line,
// blank lines and lines starting with # are skipped.
func LoadDCList(filePath string) ([]Peer, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dc list file: %w", err)
	}
	defer f.Close()

	var peers []Peer
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("dc list file line %d: expected \"id host:port\", got %q", line, text)
		}
		peers = append(peers, Peer{ID: fields[0], Addr: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dc list file: %w", err)
	}
	return peers, nil
}
