package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"aethel.dev/node/mempool"
	"aethel.dev/node/node"
	"aethel.dev/node/pbft"
	"aethel.dev/node/proof"
	"aethel.dev/node/store"
)

func main() {
	app := buildApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildApp() *cli.App {
	defaults := node.DefaultConfig()
	return &cli.App{
		Name:  "aethel-node",
		Usage: "run an Aethel proof-of-proof consensus replica",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "node-id", Usage: "this replica's identity (defaults to a generated UUID)"},
			&cli.StringSliceFlag{Name: "peer", Usage: "cluster peer id, repeatable (must include every replica's node-id)"},
			&cli.Int64Flag{Name: "stake", Value: defaults.ValidatorStake, Usage: "this replica's stake"},
			&cli.StringFlag{Name: "datadir", Value: defaults.DataDir, Usage: "node data directory"},
			&cli.StringFlag{Name: "bind", Value: defaults.BindAddr, Usage: "bind address host:port"},
			&cli.StringFlag{Name: "log-level", Value: defaults.LogLevel, Usage: "log level: debug|info|warn|error"},
			&cli.IntFlag{Name: "max-peers", Value: defaults.MaxPeers, Usage: "max connected peers"},
			&cli.IntFlag{Name: "block-size", Value: defaults.BlockSize, Usage: "proof count that, times mempool-capacity-factor, sets the mempool capacity (proposals hold at most pbft.BlockSize proofs)"},
			&cli.DurationFlag{Name: "round-timeout", Value: defaults.RoundTimeout, Usage: "round timeout kept in the config (view changes use pbft.RoundTimeout)"},
			&cli.Float64Flag{Name: "mempool-capacity-factor", Value: 4, Usage: "mempool capacity as a multiple of block-size"},
		},
		Action: runNode,
	}
}

// configFromFlags assembles a node.Config from the parsed CLI flags,
// defaulting NodeID to a fresh UUID and Peers to a single-node cluster
// when neither is supplied. Split out from runNode so it can be
// exercised without starting the runtime loop.
func configFromFlags(c *cli.Context) node.Config {
	cfg := node.DefaultConfig()
	cfg.NodeID = c.String("node-id")
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	cfg.Peers = node.NormalizePeers(c.StringSlice("peer")...)
	cfg.ValidatorStake = c.Int64("stake")
	cfg.DataDir = c.String("datadir")
	cfg.BindAddr = c.String("bind")
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(c.String("log-level")))
	cfg.MaxPeers = c.Int("max-peers")
	cfg.BlockSize = c.Int("block-size")
	cfg.RoundTimeout = c.Duration("round-timeout")

	if len(cfg.Peers) == 0 {
		cfg.Peers = []string{cfg.NodeID}
	}
	return cfg
}

func runNode(c *cli.Context) error {
	cfg := configFromFlags(c)
	if err := node.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("datadir create failed: %w", err)
	}

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("store open failed: %w", err)
	}
	defer db.Close()

	leaves, err := db.LoadLeaves()
	if err != nil {
		return fmt.Errorf("load persisted state failed: %w", err)
	}
	st := store.New()
	if len(leaves) > 0 {
		st.Genesis(leaves)
	}

	capacity := int(float64(cfg.BlockSize) * c.Float64("mempool-capacity-factor"))
	mp := mempool.New(capacity)
	judge := proof.NewJudge(proof.DefaultLimits())
	engine := pbft.NewEngine(cfg.NodeID, cfg.ValidatorStake, cfg.Peers, st, mp, judge)
	rt := node.NewRuntime(cfg, engine, judge)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("aethel-node starting: node_id=%s peers=%d leader(0)=%s\n", cfg.NodeID, len(cfg.Peers), engine.Leader(0))

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			return err
		}
	}

	fmt.Println("aethel-node stopping, persisting state")
	if err := db.PersistLeaves(st.Materialize()); err != nil {
		return fmt.Errorf("persist state failed: %w", err)
	}
	return nil
}
