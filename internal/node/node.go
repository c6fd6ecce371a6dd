// Package node provides a reusable ledger node that can be embedded
// in any binary.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/powledger/config"
	"github.com/Klingon-tech/powledger/internal/archive"
	"github.com/Klingon-tech/powledger/internal/chain"
	klog "github.com/Klingon-tech/powledger/internal/log"
	"github.com/Klingon-tech/powledger/internal/metrics"
	"github.com/Klingon-tech/powledger/internal/miner"
	"github.com/Klingon-tech/powledger/internal/rest"
	"github.com/Klingon-tech/powledger/internal/rpc"
	"github.com/Klingon-tech/powledger/internal/storage"
)

// Node is a fully-initialized ledger node.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	ledger *chain.Ledger
	coord  *miner.Coordinator

	// Archive (nil when disabled)
	db      storage.DB
	archive *archive.Archive

	// Metrics (nil when disabled)
	registry *prometheus.Registry

	// Transports (nil when disabled)
	rpcServer  *rpc.Server
	restServer *rest.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, archive, metrics, genesis, coordinator, RPC, REST) but does
// NOT start listening. Call Start() for that.
//
// Mining genesis honours ctx, so a signal during a slow search aborts
// startup.
func New(ctx context.Context, cfg *config.Config) (*Node, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "powledger.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	policy, err := chain.ParseClearPolicy(cfg.Mining.ClearPolicy)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("difficulty", cfg.Ledger.Difficulty).
		Float64("reward", cfg.Ledger.Reward).
		Str("clear_policy", policy.String()).
		Msg("Starting powledger node")

	nodeCtx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:    cfg,
		logger: logger,
		ctx:    nodeCtx,
		cancel: cancel,
	}

	var opts []chain.Option

	// ── 2. Archive ──────────────────────────────────────────────────
	if cfg.Archive.Enabled {
		path := expandHome(cfg.ArchiveDir())
		db, err := storage.Open(cfg.Archive.Backend, path)
		if err != nil {
			n.Stop()
			return nil, fmt.Errorf("open archive at %s: %w", path, err)
		}
		n.db = db

		arch, err := archive.New(db, int64(cfg.Archive.CacheMB)<<20)
		if err != nil {
			n.Stop()
			return nil, fmt.Errorf("create archive: %w", err)
		}
		n.archive = arch
		opts = append(opts, chain.WithSink(arch))

		logger.Info().
			Str("backend", cfg.Archive.Backend).
			Str("path", path).
			Msg("Block archive opened")
	}

	// ── 3. Metrics ──────────────────────────────────────────────────
	if cfg.Metrics.Enabled {
		n.registry = prometheus.NewRegistry()
		n.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, chain.WithObserver(metrics.NewCollector(n.registry)))
	}

	// ── 4. Ledger (mines genesis) ───────────────────────────────────
	ledger, err := chain.NewWithContext(ctx, chain.Config{
		Difficulty:  cfg.Ledger.Difficulty,
		Reward:      cfg.Ledger.Reward,
		PoolSize:    cfg.Ledger.PoolSize,
		ClearPolicy: policy,
	}, opts...)
	if err != nil {
		n.Stop()
		return nil, fmt.Errorf("create ledger: %w", err)
	}
	n.ledger = ledger
	n.coord = miner.New(ledger)

	// ── 5. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		n.rpcServer = rpc.New(listenAddr(cfg.RPC.Addr, cfg.RPC.Port), ledger, n.coord, cfg.RPC)
		if n.archive != nil {
			n.rpcServer.SetArchive(n.archive)
		}
	}

	// ── 6. REST server ──────────────────────────────────────────────
	if cfg.REST.Enabled {
		var gatherer prometheus.Gatherer
		if n.registry != nil {
			gatherer = n.registry
		}
		ctrl := rest.NewController(ledger, n.coord)
		n.restServer = rest.New(listenAddr(cfg.REST.Addr, cfg.REST.Port), ctrl, cfg.REST, gatherer)
	}

	return n, nil
}

// Start binds the RPC and REST listeners.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
		n.logger.Info().Str("addr", n.rpcServer.Addr()).Msg("JSON-RPC server listening")
	}
	if n.restServer != nil {
		if err := n.restServer.Start(); err != nil {
			return fmt.Errorf("start rest: %w", err)
		}
		n.logger.Info().
			Str("addr", n.restServer.Addr()).
			Bool("metrics", n.registry != nil).
			Msg("REST server listening")
	}

	latest, err := n.ledger.LatestBlock()
	if err != nil {
		return err
	}
	n.logger.Info().
		Uint64("height", latest.Index).
		Str("tip", latest.Hash[:16]+"...").
		Msg("Node started successfully")

	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()

	if n.restServer != nil {
		if err := n.restServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("REST shutdown")
		}
	}
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.archive != nil {
		n.archive.Close()
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Archive close")
		}
	}

	n.logger.Info().Msg("Goodbye!")
	klog.Close()
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *chain.Ledger {
	return n.ledger
}

// Coordinator returns the node's mining coordinator.
func (n *Node) Coordinator() *miner.Coordinator {
	return n.coord
}

// Archive returns the block archive, or nil when disabled.
func (n *Node) Archive() *archive.Archive {
	return n.archive
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// RESTAddr returns the address the REST server is listening on.
func (n *Node) RESTAddr() string {
	if n.restServer == nil {
		return ""
	}
	return n.restServer.Addr()
}

// Height returns the current chain height.
func (n *Node) Height() uint64 {
	return n.ledger.Height()
}

// logStatus logs height, pool size and whether a job is outstanding. It
// also retries archive writes that failed since the last tick.
func (n *Node) logStatus() {
	_, pending := n.ledger.PendingTransactions()
	ev := n.logger.Info().
		Uint64("height", n.ledger.Height()).
		Int("pending", pending).
		Bool("job", n.ledger.ActiveCandidate() != nil)
	if n.archive != nil {
		if err := n.archive.Retry(); err != nil {
			n.logger.Warn().Err(err).Msg("Archive retry failed")
		}
		ev = ev.Int("archive_backlog", n.archive.Backlog())
	}
	ev.Msg("Status")
}

// RunStatusLoop logs a status line every interval until Stop is called.
func (n *Node) RunStatusLoop(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.logStatus()
		}
	}
}
