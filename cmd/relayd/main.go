// Relay Daemon - admits, schedules, and submits withdraw jobs
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duskline/withdraw/internal/circuit"
	"github.com/duskline/withdraw/internal/kernel"
	"github.com/duskline/withdraw/internal/relay"
	"github.com/duskline/withdraw/pkg/primitives"
)

const (
	version = "0.1.0"
	banner  = `
  ____  _____ _        _ __   ______
 |  _ \| ____| |      / \\ \ / /  _ \
 | |_) |  _| | |     / _ \\ V /| | | |
 |  _ <| |___| |___ / ___ \| | | |_| |
 |_| \_\_____|_____/_/   \_\_|  |____/

  Relay Daemon v%s
  Withdraw Job Pipeline
`
)

// Config holds relay daemon configuration.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	UsePostgres bool

	Workers      int
	PollInterval time.Duration
	RootRefresh  time.Duration
	MaxAttempts  int

	MinerAddress string
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

	flag.StringVar(&cfg.DBHost, "db-host", "localhost", "PostgreSQL host")
	flag.IntVar(&cfg.DBPort, "db-port", 5432, "PostgreSQL port")
	flag.StringVar(&cfg.DBUser, "db-user", "withdraw", "PostgreSQL user")
	flag.StringVar(&cfg.DBPassword, "db-password", "", "PostgreSQL password")
	flag.StringVar(&cfg.DBName, "db-name", "withdraw_relay", "PostgreSQL database name")
	flag.BoolVar(&cfg.UsePostgres, "use-postgres", false, "persist jobs in PostgreSQL instead of in-process memory")

	flag.IntVar(&cfg.Workers, "workers", 4, "number of concurrent job workers")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", 200*time.Millisecond, "worker claim poll interval")
	flag.DurationVar(&cfg.RootRefresh, "root-refresh", 5*time.Second, "root cache refresh interval")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", 8, "max retry attempts before a job is parked Failed")

	flag.StringVar(&cfg.MinerAddress, "miner-address", "", "this relay's PoW miner authority, if PoW is enabled")

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	fmt.Println("Initializing relay engine...")

	var store relay.JobStore
	if cfg.UsePostgres {
		fmt.Println("Connecting to database...")
		dbCfg := relay.DefaultDBConfig()
		dbCfg.Host, dbCfg.Port, dbCfg.User, dbCfg.Password, dbCfg.Database =
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName
		pg, err := relay.NewPostgresJobStore(ctx, dbCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()
		store = pg
		fmt.Println("Database connected.")
	} else {
		store = relay.NewInMemoryJobStore()
		fmt.Println("Using in-process job store (no -use-postgres).")
	}

	// No chain RPC SDK exists in this deployment's lineage; relayd drives
	// an in-process settlement kernel directly via LocalKernelClient. A
	// future transport swaps this for a remote KernelClient without
	// touching Engine or Worker.
	fmt.Println("Compiling withdraw circuit...")
	mgr := circuit.NewManager()
	if err := mgr.Setup(); err != nil {
		return fmt.Errorf("failed to set up withdraw circuit: %w", err)
	}
	k := kernel.Initialise(kernel.Config{
		InitialPoolBalance: 0,
		Circuit:            mgr,
		NullifierCapacity:  1_000_000,
		PoWEnabled:         cfg.MinerAddress != "",
	})
	client := &relay.LocalKernelClient{K: k}

	engine := relay.NewEngine(store, client)
	go engine.RunRootRefresher(ctx, cfg.RootRefresh)

	var minerAuthority primitives.Address
	if cfg.MinerAddress != "" {
		a, err := primitives.DecodeAddress(cfg.MinerAddress)
		if err != nil {
			return fmt.Errorf("failed to decode miner address: %w", err)
		}
		minerAuthority = a
	}

	workerCfg := relay.DefaultWorkerConfig()
	workerCfg.PollInterval = cfg.PollInterval
	workerCfg.MaxAttempts = cfg.MaxAttempts
	workerCfg.MinerAuthority = minerAuthority

	// Workers only select a PoW claim when handed a registry; leave it nil
	// when the PoW gate is off so jobs are not held for a claim.
	var claims *kernel.ClaimRegistry
	if k.PoWEnabled {
		claims = k.Claims
	}

	fmt.Printf("Starting %d worker(s)...\n", cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		w := relay.NewWorker(store, client, claims, engine.Roots, engine.Nullifiers, workerCfg, os.Stdout)
		go w.Run(ctx)
	}

	// TODO: mount Engine.EnqueueWithdraw/GetJobStatus/GetBacklog behind an
	// actual transport once this deployment has one.

	fmt.Println("Relay daemon started successfully!")
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()

	fmt.Println("Relay daemon stopped.")
	return nil
}
