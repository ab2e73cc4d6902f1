// Command run is the simulator's CLI entrypoint: it loads a YAML config,
// builds an Engine from it, and drives either a plain simulation run or
// one of the supporting introspection commands (replay, policy-schema,
// cost-schema).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"rtgssim/internal/config"
	"rtgssim/internal/domain"
	"rtgssim/internal/engine"
	"rtgssim/internal/events"
	"rtgssim/internal/policy"
	"rtgssim/internal/repository/postgres"
	"rtgssim/internal/repository/redisq"
	"rtgssim/internal/scenario"
	"rtgssim/internal/setup"
	"rtgssim/pkg/cache"
	"rtgssim/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: run <run|replay|policy-schema|cost-schema> [args]")
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "replay":
		cmdReplay(os.Args[2:])
	case "policy-schema":
		cmdPolicySchema()
	case "cost-schema":
		cmdCostSchema()
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func cmdRun(args []string) {
	if len(args) < 1 {
		log.Fatal("usage: run run <config.yaml> [run_id]")
	}
	configPath := args[0]
	// An explicit run_id is required to replay a specific persisted run later;
	// absent one, generate a fresh identifier so concurrent unattended runs
	// never collide in the same sink.
	runID := uuid.NewString()
	if len(args) > 1 {
		runID = args[1]
	}

	log := logger.New("rtgssim").With(map[string]interface{}{"run_id": runID})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("loading config", map[string]interface{}{"error": err.Error()})
	}

	var script []*scenario.ScheduledEvent
	if cfg.ScenarioFile != "" {
		script, err = scenario.LoadScript(cfg.ScenarioFile)
		if err != nil {
			log.Fatal("loading scenario", map[string]interface{}{"error": err.Error()})
		}
	}

	ecfg, err := setup.BuildEngineConfig(cfg, script)
	if err != nil {
		log.Fatal("building engine config", map[string]interface{}{"error": err.Error()})
	}

	sink, closeSink := buildSink(cfg, log)
	if closeSink != nil {
		defer closeSink()
	}

	eng := engine.NewEngineWithSink(ecfg, runID, sink)

	totalTicks := int64(cfg.NumDays) * int64(cfg.TicksPerDay)
	for i := int64(0); i < totalTicks; i++ {
		if err := eng.Tick(); err != nil {
			log.Fatal("tick failed", map[string]interface{}{"tick": i, "error": err.Error()})
		}
	}

	log.Info("run complete", map[string]interface{}{
		"ticks":       totalTicks,
		"event_count": len(eng.GetEvents(0, totalTicks)),
	})
	for id, a := range eng.GetState() {
		fmt.Printf("%s: balance=%s posted_collateral=%s\n", id, a.Balance.String(), a.PostedCollateral.String())
	}
}

// buildSink constructs the durable events.Sink a run should persist
// through, preferring Postgres when a DSN is configured, falling back to
// Redis when only that is configured, and running in-memory-only
// otherwise. The returned close func must be deferred by the caller.
func buildSink(cfg *config.Config, log logger.Logger) (events.Sink, func()) {
	ctx := context.Background()
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			log.Warn("postgres unavailable, falling back to in-memory sink", map[string]interface{}{"error": err.Error()})
		} else {
			return postgres.NewRunRepository(db), func() { db.Close() }
		}
	}
	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-memory sink", map[string]interface{}{"error": err.Error()})
		} else {
			return redisq.New(c, cfg.Redis.Namespace), func() { c.Close() }
		}
	}
	return nil, nil
}

func cmdReplay(args []string) {
	if len(args) < 2 {
		log.Fatal("usage: run replay <config.yaml> <run_id>")
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	runID := args[1]

	ctx := context.Background()

	if cfg.Database.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			log.Fatalf("connecting to postgres: %v", err)
		}
		defer db.Close()
		repo := postgres.NewRunRepository(db)
		evs, hashes, prevHashes, err := repo.EventsInRange(ctx, runID, 0, 1<<62)
		if err != nil {
			log.Fatalf("reading events: %v", err)
		}
		printReplay(evs, hashes, prevHashes)
		return
	}
	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("connecting to redis: %v", err)
		}
		defer c.Close()
		sink := redisq.New(c, cfg.Redis.Namespace)
		evs, hashes, prevHashes, err := sink.EventsInRange(ctx, runID, 0, 1<<62)
		if err != nil {
			log.Fatalf("reading events: %v", err)
		}
		printReplay(evs, hashes, prevHashes)
		return
	}
	log.Fatal("replay requires database.dsn or redis.addr to be configured")
}

// printReplay renders a run's persisted event log in hash-chain order, one
// line per event, so an operator can visually confirm replay identity
// (each event's prev_hash must equal the prior line's hash).
func printReplay(events []domain.Event, hashes, prevHashes []string) {
	for i, e := range events {
		hash, prevHash := "", ""
		if i < len(hashes) {
			hash = hashes[i]
		}
		if i < len(prevHashes) {
			prevHash = prevHashes[i]
		}
		agent := ""
		if e.AgentID != nil {
			agent = string(*e.AgentID)
		}
		fmt.Printf("[%d] tick=%d type=%s agent=%s hash=%s prev=%s\n",
			i, e.Tick, e.Type, agent, shortHash(hash), shortHash(prevHash))
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func cmdPolicySchema() {
	doc := map[string]interface{}{
		"fields":       policy.AllFieldNames(),
		"tree_kinds":   []string{"payment", "strategic_collateral", "end_of_tick_collateral", "bank"},
		"action_types": []string{"release", "hold", "drop", "split", "post_collateral", "withdraw_collateral", "hold_collateral", "set_state", "add_state", "no_action"},
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(out))
}

func cmdCostSchema() {
	doc := map[string]interface{}{
		"overdraft_bps_per_tick":          "decimal, basis points charged per tick on a negative balance",
		"delay_cost_per_tick_per_cent":    "decimal, charged per tick per cent of remaining amount still in queue 1",
		"collateral_cost_per_tick_bps":    "decimal, basis points charged per tick on posted collateral",
		"split_friction_flat_cost_cents":  "int64, flat cost charged (num_splits-1) times per split action",
		"deadline_penalty_cents":          "int64, flat cost charged once a transaction first becomes overdue",
		"eod_penalty_per_transaction_cents": "int64, flat cost charged per transaction still unsettled at end of day",
		"priority_band_multipliers":       "map[int]decimal, delay cost multiplier keyed by transaction priority",
		"overdue_delay_multiplier":        "decimal, extra delay cost multiplier once a transaction is past its deadline; unset means 1",
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(out))
}
