package main

import (
	"flag"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

func testContext(t *testing.T, args []string) *cli.Context {
	t.Helper()
	app := buildApp()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range app.Flags {
		if err := f.Apply(fs); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	return cli.NewContext(app, fs, nil)
}

func TestConfigFromFlagsDefaultsNodeIDAndPeers(t *testing.T) {
	c := testContext(t, nil)
	cfg := configFromFlags(c)
	if cfg.NodeID == "" {
		t.Fatalf("expected a generated node_id")
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0] != cfg.NodeID {
		t.Fatalf("expected single-node peer set defaulting to node_id, got %v", cfg.Peers)
	}
}

func TestConfigFromFlagsHonorsExplicitValues(t *testing.T) {
	c := testContext(t, []string{
		"--node-id", "node-0",
		"--peer", "node-0",
		"--peer", "node-1",
		"--stake", "5000",
		"--block-size", "50",
		"--round-timeout", "5s",
	})
	cfg := configFromFlags(c)
	if cfg.NodeID != "node-0" {
		t.Fatalf("node_id=%q, want node-0", cfg.NodeID)
	}
	if len(cfg.Peers) != 2 {
		t.Fatalf("expected 2 peers, got %v", cfg.Peers)
	}
	if cfg.ValidatorStake != 5000 {
		t.Fatalf("stake=%d, want 5000", cfg.ValidatorStake)
	}
	if cfg.BlockSize != 50 {
		t.Fatalf("block_size=%d, want 50", cfg.BlockSize)
	}
	if cfg.RoundTimeout != 5*time.Second {
		t.Fatalf("round_timeout=%v, want 5s", cfg.RoundTimeout)
	}
}
