package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voxelgate/server/internal/chunk"
	"github.com/voxelgate/server/internal/config"
	"github.com/voxelgate/server/internal/core/ecs"
	"github.com/voxelgate/server/internal/core/event"
	coresys "github.com/voxelgate/server/internal/core/system"
	"github.com/voxelgate/server/internal/data"
	"github.com/voxelgate/server/internal/gen"
	"github.com/voxelgate/server/internal/persist"
	"github.com/voxelgate/server/internal/scripting"
	"github.com/voxelgate/server/internal/system"
	"github.com/voxelgate/server/internal/worker"
	"github.com/voxelgate/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            voxelgate  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        voxel world engine core            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("VOXELGATE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 3. Connect to PostgreSQL and run migrations (optional)
	var chunkRepo *persist.ChunkRepo
	if cfg.Database.Enabled {
		printSection("database")

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")
		fmt.Println()

		chunkRepo = persist.NewChunkRepo(db)
	}

	// 4. Load data tables
	printSection("data")

	blockTable, err := data.LoadBlockTable(filepath.Join(cfg.Server.DataDir, "block_list.yaml"))
	if err != nil {
		return fmt.Errorf("load block table: %w", err)
	}
	printStat("block templates", blockTable.Count())

	// 5. Initialize Lua scripting engine
	luaEngine, err := scripting.NewEngine(cfg.Server.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("lua scripts loaded")
	fmt.Println()

	// 6. Build the chunk pipeline: worker pool, terrain, meshing, physics
	pool := worker.NewPool(cfg.Workers.Count, cfg.Workers.QueueSize, cfg.Workers.TaskTimeout.Duration, log)
	pool.Start()
	defer pool.Shutdown()

	terrain := gen.NewTerrainGenerator(gen.TerrainConfig{
		Seed:          cfg.World.Seed,
		SeaLevel:      cfg.World.SeaLevel,
		BaseHeight:    cfg.World.BaseHeight,
		Amplitude:     cfg.World.Amplitude,
		HeightScale:   gen.DefaultTerrainConfig().HeightScale,
		MoistureScale: gen.DefaultTerrainConfig().MoistureScale,
	}, blockTable, luaEngine)

	bus := event.NewBus()
	mgrOpts := chunk.ManagerOptions{
		Log: log,
		Config: chunk.ManagerConfig{
			MaxAttempts:   cfg.Chunks.MaxAttempts,
			BackoffBase:   cfg.Chunks.BackoffBase.Duration,
			BackoffFactor: cfg.Chunks.BackoffFactor,
			BackoffCap:    cfg.Chunks.BackoffCap.Duration,
			MaxQueued:     cfg.Chunks.MaxQueued,
		},
		Store:    chunk.NewStore(),
		Cache:    chunk.NewCache(cfg.Chunks.CacheCapacity),
		Pool:     pool,
		Bus:      bus,
		Gen:      terrain,
		Mesher:   gen.NewCulledMesher(blockTable),
		Collider: gen.NewHeightCollider(blockTable),
	}
	if chunkRepo != nil {
		mgrOpts.Loader = chunkRepo
	}
	mgr := chunk.NewManager(mgrOpts)

	// 7. Create ECS world and chunk streaming service
	ecsWorld := ecs.NewWorld()
	streamSvc := world.NewService(mgr, cfg.World.RenderRadius, cfg.World.UnloadRadius, log)

	// 8. Create systems and register with runner
	runner := coresys.NewRunner()
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewMovementSystem(ecsWorld))
	runner.Register(system.NewChunkStreamSystem(ecsWorld, streamSvc, mgr))
	persistSys := system.NewPersistenceSystem(mgr, cfg.World.SaveInterval, log)
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(ecsWorld))

	event.Subscribe(bus, func(ev chunk.FailedEvent) {
		log.Error("chunk failed permanently",
			zap.Stringer("coord", ev.Coord),
			zap.Int("attempts", ev.Attempts),
			zap.Error(ev.Err))
	})

	// 9. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	tickRate := cfg.Server.TickRate.Duration
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	printSection("server ready")
	printReady(fmt.Sprintf("game loop started (tick: %s)", tickRate))
	printReady(fmt.Sprintf("workers: %d, chunk cache: %d", cfg.Workers.Count, cfg.Chunks.CacheCapacity))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(tickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			if chunkRepo != nil {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := persistSys.Flush(flushCtx); err != nil {
					log.Error("final chunk write-back", zap.Error(err))
				}
				flushCancel()
			}
			log.Info("server stopped")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
