package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"RadNode/internal/rad"
	"RadNode/internal/radon"
	"RadNode/internal/retrieval"
)

// Config holds the node configuration. Fields map to flags and to keys of
// the optional YAML file; flags given on the command line win over the file.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string `yaml:"data"`

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string `yaml:"http"`

	// QUICAddress is the QUIC witness transport listen address.
	QUICAddress string `yaml:"quic"`

	// KeyPath is the path to the Ed25519 private key file.
	KeyPath string `yaml:"key"`

	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`

	// Timeout is the default retrieval timeout.
	Timeout time.Duration `yaml:"timeout"`

	// AllowedDomains restricts http-get sources, empty allows all.
	AllowedDomains []string `yaml:"allowed_domains"`

	// MaxResponseSize bounds http-get bodies in bytes.
	MaxResponseSize int64 `yaml:"max_response_size"`

	// ModulesPath is the directory of wasm source programs.
	ModulesPath string `yaml:"modules"`

	// MinConsensusRatio is the aggregation ratio default.
	MinConsensusRatio float64 `yaml:"min_consensus_ratio"`

	// Clustering groups source reports during aggregation ("by-type" or "by-value").
	Clustering string `yaml:"clustering"`

	// GasLimit bounds aggregation and tally scripts.
	GasLimit uint64 `yaml:"gas_limit"`

	// Witnesses lists the other witnesses as "<ed25519 hex>:<bls hex>@<host:port>".
	Witnesses []string `yaml:"witnesses"`

	// CommitteeSize is the number of witnesses asked per reveal collection.
	CommitteeSize int `yaml:"committee_size"`

	// Peers lists QUIC addresses to connect to at startup.
	Peers []string `yaml:"peers"`

	// BLSSeed is a hex seed for the BLS key, derived from the identity key when empty.
	BLSSeed string `yaml:"bls_seed"`

	// PrivateKey is the node's Ed25519 identity key.
	PrivateKey ed25519.PrivateKey `yaml:"-"`
}

// defaultConfig returns the configuration used when nothing is set.
func defaultConfig() *Config {
	return &Config{
		DataPath:          "./data",
		HTTPAddress:       ":8080",
		QUICAddress:       ":9100",
		LogLevel:          "info",
		Timeout:           rad.DefaultTimeout,
		MaxResponseSize:   retrieval.DefaultMaxResponseSize,
		MinConsensusRatio: rad.DefaultMinConsensusRatio,
		Clustering:        "by-type",
		GasLimit:          radon.DefaultGasLimit,
		CommitteeSize:     5,
	}
}

// newFlagSet binds the configuration fields to command-line flags.
func newFlagSet(cfg *Config, configPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet("radnode", flag.ContinueOnError)

	fs.StringVar(configPath, "config", "", "YAML config file (${VAR} is expanded from the environment)")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "Data directory path")
	fs.StringVar(&cfg.HTTPAddress, "http", cfg.HTTPAddress, "HTTP API address")
	fs.StringVar(&cfg.QUICAddress, "quic", cfg.QUICAddress, "QUIC witness address")
	fs.StringVar(&cfg.KeyPath, "key", cfg.KeyPath, "Ed25519 private key path (generates new if missing)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Default retrieval timeout")
	fs.Func("allowed-domains", "Comma-separated http-get domain allowlist", listSetter(&cfg.AllowedDomains))
	fs.Int64Var(&cfg.MaxResponseSize, "max-response-size", cfg.MaxResponseSize, "Maximum http-get body size in bytes")
	fs.StringVar(&cfg.ModulesPath, "modules", cfg.ModulesPath, "Directory of wasm source programs")
	fs.Float64Var(&cfg.MinConsensusRatio, "min-consensus-ratio", cfg.MinConsensusRatio, "Aggregation consensus ratio")
	fs.StringVar(&cfg.Clustering, "clustering", cfg.Clustering, "Aggregation clustering (by-type, by-value)")
	fs.Uint64Var(&cfg.GasLimit, "gas-limit", cfg.GasLimit, "Gas limit for aggregation and tally scripts")
	fs.Func("witnesses", "Comma-separated witnesses (<ed25519 hex>:<bls hex>@<host:port>)", listSetter(&cfg.Witnesses))
	fs.IntVar(&cfg.CommitteeSize, "committee-size", cfg.CommitteeSize, "Witnesses asked per reveal collection")
	fs.Func("peers", "Comma-separated QUIC peer addresses", listSetter(&cfg.Peers))
	fs.StringVar(&cfg.BLSSeed, "bls-seed", cfg.BLSSeed, "Hex BLS key seed (derived from the identity key if empty)")

	return fs
}

// listSetter returns a flag setter replacing a list with comma-separated values.
func listSetter(dst *[]string) func(string) error {
	return func(v string) error {
		*dst = nil

		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				*dst = append(*dst, item)
			}
		}

		return nil
	}
}

// loadConfig parses args, overlays the config file, then re-applies the
// flags given explicitly so that they take precedence.
func loadConfig(args []string) (*Config, error) {
	cfg := defaultConfig()

	var configPath string
	fs := newFlagSet(cfg, &configPath)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath == "" {
		return cfg, nil
	}

	if err := loadConfigFile(configPath, cfg); err != nil {
		return nil, err
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile reads a YAML file into cfg after environment expansion.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file:\n%w", err)
	}

	expanded := os.Expand(string(data), os.Getenv)

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config file %s:\n%w", path, err)
	}

	return nil
}

// loadOrGenerateKey loads the private key from file or generates a new one.
func loadOrGenerateKey(keyPath string) (ed25519.PrivateKey, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// generateNewKey creates a new Ed25519 private key.
func generateNewKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSaveKey creates a new key and saves it to the given path.
func generateAndSaveKey(path string) (ed25519.PrivateKey, error) {
	priv, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}
