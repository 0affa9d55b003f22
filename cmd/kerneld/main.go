// Kernel Daemon - dev harness for the settlement kernel
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/duskline/withdraw/internal/circuit"
	"github.com/duskline/withdraw/internal/kernel"
	"github.com/duskline/withdraw/pkg/primitives"
)

const (
	version = "0.1.0"
	banner  = `
  _  _____ ____  _   _ ____ _
 | |/ / __|  _ \| \ | | ____| |
 | ' /|  _|| |_) |  \| |  _| | |
 | . \| |__|  _ <| |\  | |___| |___
 |_|\_\____|_| \_\_| \_|_____|_____|

  Kernel Daemon v%s
  Shielded Withdraw Settlement
`
)

// Config holds kernel daemon configuration.
type Config struct {
	AdminAddress string
	PoolBalance  uint64
	NullifierCap int
	PoWEnabled   bool
}

func main() {
	cfg := parseFlags()
	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.AdminAddress, "admin", "", "admin authority address (base58 or hex), required")
	flag.Uint64Var(&cfg.PoolBalance, "pool-balance", 0, "initial pool balance, in base units")
	flag.IntVar(&cfg.NullifierCap, "nullifier-shard-capacity", 1_000_000, "per-shard nullifier capacity")
	flag.BoolVar(&cfg.PoWEnabled, "pow-enabled", false, "require a PoW claim on every withdraw")
	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	fmt.Println("Initializing settlement kernel...")

	var admin primitives.Address
	if cfg.AdminAddress != "" {
		a, err := primitives.DecodeAddress(cfg.AdminAddress)
		if err != nil {
			return fmt.Errorf("failed to decode admin address: %w", err)
		}
		admin = a
	}

	fmt.Println("Running withdraw circuit trusted setup...")
	mgr := circuit.NewManager()
	if err := mgr.Setup(); err != nil {
		return fmt.Errorf("failed to set up withdraw circuit: %w", err)
	}
	fmt.Println("Circuit compiled, proving/verifying keys ready.")

	k := kernel.Initialise(kernel.Config{
		AdminAuthority:     admin,
		InitialPoolBalance: cfg.PoolBalance,
		Circuit:            mgr,
		NullifierCapacity:  cfg.NullifierCap,
		PoWEnabled:         cfg.PoWEnabled,
	})
	k.EventLog = func(nf, root, outputsHash primitives.Hash) {
		fmt.Printf("withdraw settled: nf=%s root=%s outputs_hash=%s\n", nf.Hex(), root.Hex(), outputsHash.Hex())
	}
	k.DepositLog = func(leafCommit primitives.Hash) {
		fmt.Printf("deposit recorded: leaf_commit=%s\n", leafCommit.Hex())
	}

	fmt.Println("Kernel initialized. Pool balance:", k.Pool.Balance())

	// TODO: mount Dispatch behind an actual RPC/IPC transport once this
	// deployment has one; until then callers drive k.Dispatch in process.

	fmt.Println("Kernel daemon started successfully!")
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()

	fmt.Println("Kernel daemon stopped.")
	return nil
}
