package node

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the Consensus Engine node's full runtime configuration:
// ordinary transport/logging fields, plus the Aethel-specific fields
// (identity, stake, block size, round timeout, replica difficulty
// floor). Of these, only NodeID and ValidatorStake reach pbft.Engine;
// cmd/aethel-node uses BlockSize to size the mempool, and the engine
// applies its own BlockSize and RoundTimeout constants.
type Config struct {
	Network  string   `json:"network"`
	DataDir  string   `json:"data_dir"`
	BindAddr string   `json:"bind_addr"`
	LogLevel string   `json:"log_level"`
	Peers    []string `json:"peers"`
	MaxPeers int      `json:"max_peers"`

	NodeID         string `json:"node_id"`
	ValidatorStake int64  `json:"validator_stake"`

	BlockSize    int           `json:"block_size"`
	RoundTimeout time.Duration `json:"round_timeout"`

	// ReplicaDifficultyFloor is a fraction that ValidateConfig
	// requires to lie in [0, 1]; the default is 0. Neither Runtime nor
	// pbft.Engine reads it, so no proof is refused on its account.
	ReplicaDifficultyFloor float64 `json:"replica_difficulty_floor"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".aethel"
	}
	return filepath.Join(home, ".aethel")
}

func DefaultConfig() Config {
	return Config{
		Network:  "devnet",
		DataDir:  DefaultDataDir(),
		BindAddr: "0.0.0.0:19111",
		Peers:    nil,
		LogLevel: "info",
		MaxPeers: 64,

		ValidatorStake: 0,

		BlockSize:              100,
		RoundTimeout:           10 * time.Second,
		ReplicaDifficultyFloor: 0,
	}
}

func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxPeers <= 0 {
		return errors.New("max_peers must be > 0")
	}
	if cfg.MaxPeers > 4096 {
		return errors.New("max_peers must be <= 4096")
	}
	if strings.TrimSpace(cfg.NodeID) == "" {
		return errors.New("node_id is required")
	}
	if cfg.ValidatorStake < 0 {
		return errors.New("validator_stake must be >= 0")
	}
	if cfg.BlockSize <= 0 {
		return errors.New("block_size must be > 0")
	}
	if cfg.RoundTimeout <= 0 {
		return errors.New("round_timeout must be > 0")
	}
	if cfg.ReplicaDifficultyFloor < 0 || cfg.ReplicaDifficultyFloor > 1 {
		return errors.New("replica_difficulty_floor must be within [0, 1]")
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
