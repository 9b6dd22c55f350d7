// Package main provides the engine server binary: the authoritative
// real-time combat and positioning backend behind the websocket gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crawl/internal/config"
	"github.com/cory-johannsen/crawl/internal/game/action"
	"github.com/cory-johannsen/crawl/internal/game/ai"
	"github.com/cory-johannsen/crawl/internal/game/combat"
	"github.com/cory-johannsen/crawl/internal/game/roster"
	"github.com/cory-johannsen/crawl/internal/game/tactical"
	"github.com/cory-johannsen/crawl/internal/game/world"
	"github.com/cory-johannsen/crawl/internal/gateway"
	"github.com/cory-johannsen/crawl/internal/monitor"
	"github.com/cory-johannsen/crawl/internal/observability"
	"github.com/cory-johannsen/crawl/internal/scripting"
	"github.com/cory-johannsen/crawl/internal/server"
	"github.com/cory-johannsen/crawl/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	playerName := flag.String("player-name", "Adventurer", "display name for the player combatant")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting engine server",
		zap.String("gateway_addr", cfg.Server.Addr()),
	)

	// Load the room graph.
	roomStart := time.Now()
	rooms, err := world.LoadRoomsFromDir(cfg.Content.RoomsDir)
	if err != nil {
		logger.Fatal("loading rooms", zap.Error(err))
	}
	worldMgr, err := world.NewManager(rooms)
	if err != nil {
		logger.Fatal("creating world manager", zap.Error(err))
	}
	if err := worldMgr.ValidateGates(); err != nil {
		logger.Fatal("validating room gates", zap.Error(err))
	}
	logger.Info("world loaded",
		zap.Int("rooms", worldMgr.RoomCount()),
		zap.Duration("elapsed", time.Since(roomStart)),
	)

	// Load the action catalogue.
	table := action.DefaultTable()
	if cfg.Content.ActionsFile != "" {
		table, err = action.LoadTableFromFile(cfg.Content.ActionsFile)
		if err != nil {
			logger.Fatal("loading action catalogue", zap.Error(err))
		}
	}
	logger.Info("action catalogue loaded", zap.Int("actions", table.Len()))

	metrics := monitor.NewMetrics("crawl", prometheus.DefaultRegisterer)

	engineOpts := []combat.Option{
		combat.WithLogger(logger),
		combat.WithTickInterval(cfg.Engine.TickInterval),
		combat.WithRecorder(metrics),
	}

	// Initialise the ability scripting runner.
	if cfg.Content.ScriptsDir != "" {
		scriptStart := time.Now()
		runner, err := scripting.NewRunner(cfg.Content.ScriptsDir, cfg.Engine.ScriptInstructionLimit, logger)
		if err != nil {
			logger.Fatal("loading ability scripts", zap.Error(err))
		}
		defer runner.Close()
		logger.Info("ability scripts loaded",
			zap.Strings("scripts", runner.Scripts()),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
		engineOpts = append(engineOpts, combat.WithAbilityRunner(&abilityRunner{runner: runner}))
	}

	engine := combat.NewEngine(table, engineOpts...)
	defer engine.Close()

	// Connect to PostgreSQL for the room and spawn tables; without a
	// database the fallback roster generator populates rooms.
	var feed *roster.Resilient
	var pool *postgres.Pool
	if cfg.Database.Disabled {
		logger.Info("database disabled, using fallback roster")
		feed = roster.NewResilient(nil, logger)
	} else {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		feed = roster.NewResilient(postgres.NewTacticalRepository(pool.DB()), logger)
	}

	startRoom, ok := worldMgr.Room(worldMgr.StartRoom())
	if !ok {
		logger.Fatal("start room missing", zap.String("room", worldMgr.StartRoom()))
	}

	// Register the player and the starting room's roster.
	playerID := uuid.New().String()
	engine.AddEntity(combat.Entity{
		ID:         playerID,
		Name:       *playerName,
		Kind:       combat.KindPlayer,
		HP:         40,
		MaxHP:      40,
		Attack:     10,
		Defense:    6,
		Speed:      6,
		Accuracy:   70,
		Evasion:    30,
		Level:      1,
		Pos:        combat.Position{X: 50, Y: 50},
		Persistent: true,
	})
	engine.SelectEntity(playerID)
	seedRoom(ctx, logger, engine, feed, startRoom)

	mover := &traversal{rooms: worldMgr, current: startRoom}
	controller := tactical.NewController(engine, mover, startRoom,
		tactical.WithLogger(logger),
		tactical.WithSpeed(cfg.Engine.MoveSpeed),
		tactical.WithDebounceWindow(cfg.Engine.GateDebounce),
		tactical.WithRecorder(metrics),
		tactical.WithArrivalHook(func(ctx context.Context, room *world.Room) {
			mover.SetCurrent(room)
			seedRoom(ctx, logger, engine, feed, room)
		}),
	)

	gw := gateway.NewServer(cfg.Server.Addr(), logger, engine, controller, table)
	hostiles := ai.NewDriver(engine, table, ai.WithLogger(logger))

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("gateway", gw)
	lifecycle.Add("hostile-driver", hostiles)

	if cfg.Server.MetricsPort > 0 {
		lifecycle.Add("metrics", monitor.NewServer(cfg.Server.MetricsAddr()))
	}

	if pool != nil {
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					time.Sleep(30 * time.Second)
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				pool.Close()
			},
		})
	}

	logger.Info("engine server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("gateway_addr", cfg.Server.Addr()),
		zap.String("start_room", startRoom.ID),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// seedRoom registers the room's roster with the engine.
func seedRoom(ctx context.Context, logger *zap.Logger, engine *combat.Engine, feed roster.Feed, room *world.Room) {
	ents, err := feed.RoomRoster(ctx, room)
	if err != nil {
		logger.Warn("seeding room roster", zap.String("room", room.ID), zap.Error(err))
		return
	}
	for _, ent := range ents {
		engine.AddEntity(ent)
	}
	logger.Info("room roster seeded",
		zap.String("room", room.ID),
		zap.Int("entities", len(ents)),
	)
}

// traversal resolves gate crossings against the room graph. It tracks the
// room the player currently occupies; the arrival hook keeps it in step
// with the tactical controller.
type traversal struct {
	mu      sync.Mutex
	rooms   *world.Manager
	current *world.Room
}

func (t *traversal) SetCurrent(room *world.Room) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = room
}

func (t *traversal) Move(_ context.Context, dir world.Direction) (*world.Room, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	gate, ok := t.current.GateFor(dir)
	if !ok {
		return nil, fmt.Errorf("no gate %s from room %q", dir, t.current.ID)
	}
	next, ok := t.rooms.Room(gate.TargetRoom)
	if !ok {
		return nil, fmt.Errorf("gate %s from room %q leads to unknown room %q", dir, t.current.ID, gate.TargetRoom)
	}
	return next, nil
}

// abilityRunner adapts the Lua scripting runner to the engine's ability
// execution hook.
type abilityRunner struct {
	runner *scripting.Runner
}

func (a *abilityRunner) Run(script string, caster, target combat.Entity, power int) (combat.AbilityEffect, error) {
	effect, err := a.runner.Run(script, stats(caster), stats(target), power)
	if err != nil {
		return combat.AbilityEffect{}, err
	}
	return combat.AbilityEffect{Heal: effect.Heal, Damage: effect.Damage}, nil
}

func stats(e combat.Entity) scripting.Stats {
	return scripting.Stats{
		ID:       e.ID,
		Name:     e.Name,
		HP:       e.HP,
		MaxHP:    e.MaxHP,
		Attack:   e.Attack,
		Defense:  e.Defense,
		Level:    e.Level,
		Accuracy: e.Accuracy,
		Evasion:  e.Evasion,
	}
}
