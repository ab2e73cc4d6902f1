// Command experiment drives the policy-optimization loop of spec §4.4: it
// runs a context simulation to capture a transaction pool, then repeatedly
// proposes and paired-evaluates candidate policies per agent, persisting
// the full iteration trace when a database is configured.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"rtgssim/internal/bootstrap"
	"rtgssim/internal/config"
	"rtgssim/internal/engine"
	"rtgssim/internal/llm"
	"rtgssim/internal/money"
	"rtgssim/internal/optimize"
	"rtgssim/internal/policy"
	"rtgssim/internal/repository/postgres"
	"rtgssim/internal/rng"
	"rtgssim/internal/scenario"
	"rtgssim/internal/setup"
	"rtgssim/pkg/logger"
)

var allTreeKinds = []policy.TreeKind{
	policy.TreePayment,
	policy.TreeStrategicCollateral,
	policy.TreeEndOfTickCollateral,
	policy.TreeBank,
}

func main() {
	if len(os.Args) < 3 {
		usage()
	}
	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "results":
		cmdResults(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: experiment run <config.yaml> [experiment-name]")
	fmt.Fprintln(os.Stderr, "       experiment results <config.yaml> [experiment-name|experiment-id]")
	os.Exit(1)
}

func cmdRun(args []string) {
	configPath := args[0]
	name := "experiment"
	if len(args) > 1 {
		name = args[1]
	}

	log := logger.New("rtgssim-experiment")

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

	seeds := rng.NewSeedMatrix(cfg.MasterSeed)

	// Step 1: context simulation. Run the scenario once with the initial
	// policies, seeded from simulation_seed(0), and capture every
	// transaction that arrived.
	ecfg.MasterSeed = seeds.SimulationSeed(0)
	ctxEngine := engine.NewEngine(ecfg)
	contextTicks := cfg.Optimization.ContextTicks
	if contextTicks <= 0 {
		contextTicks = cfg.TicksPerDay * cfg.NumDays
	}
	for i := 0; i < contextTicks; i++ {
		if err := ctxEngine.Tick(); err != nil {
			log.Fatal("context simulation tick failed", map[string]interface{}{"tick": i, "error": err.Error()})
		}
	}
	pool := bootstrap.NewPool(ctxEngine.GetTransactionHistory())
	log.Info("context simulation complete", map[string]interface{}{
		"ticks": contextTicks, "transactions_captured": len(pool.Transactions),
	})

	optimizedAgents := cfg.Optimization.OptimizedAgents
	if len(optimizedAgents) == 0 {
		for _, a := range cfg.Agents {
			optimizedAgents = append(optimizedAgents, a.ID)
		}
	}
	agentIDs := make([]money.AgentID, len(optimizedAgents))
	for i, id := range optimizedAgents {
		agentIDs[i] = money.AgentID(id)
	}

	incumbents := make(map[money.AgentID]map[policy.TreeKind]*policy.Policy, len(agentIDs))
	state := ctxEngine.GetState()
	for _, id := range agentIDs {
		a, ok := state[id]
		if !ok {
			log.Fatal("optimized agent not found in scenario", map[string]interface{}{"agent_id": string(id)})
		}
		trees := make(map[policy.TreeKind]*policy.Policy, len(allTreeKinds))
		for _, k := range allTreeKinds {
			trees[k] = a.PolicyFor(k)
		}
		incumbents[id] = trees
	}

	client := buildLLMClient(cfg)
	candidates := &optimize.LLMCandidateSource{Client: client}

	sampleMethod := optimize.SampleMethod(cfg.Optimization.SampleMethod)
	if sampleMethod == "" {
		sampleMethod = optimize.SampleBootstrap
	}
	optCfg := optimize.Config{
		MaxIterations:       cfg.Optimization.MaxIterations,
		StabilityWindow:     cfg.Optimization.StabilityWindow,
		StabilityThreshold:  cfg.Optimization.StabilityThreshold,
		NumSamples:          cfg.Optimization.NumSamples,
		BootstrapSampleSize: cfg.Optimization.BootstrapSamples,
		MinImprovementCents: money.Cents(cfg.Optimization.MinImprovementCents),
		Method:              sampleMethod,
	}

	ctx := context.Background()
	var repo *postgres.ExperimentRepository
	experimentID := uuid.NewString()
	log = log.With(map[string]interface{}{"experiment_id": experimentID})
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			log.Warn("postgres unavailable, optimization trace will not be persisted", map[string]interface{}{"error": err.Error()})
		} else {
			defer db.Close()
			repo = postgres.NewExperimentRepository(db)
			cfgJSON, _ := json.Marshal(cfg)
			if err := repo.CreateExperiment(ctx, postgres.Experiment{
				ID: experimentID, Name: name, Type: "policy_optimization",
				Config: cfgJSON, MasterSeed: int64(cfg.MasterSeed), StartedAt: time.Now(),
			}); err != nil {
				log.Warn("recording experiment start failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	results := optimize.Loop(ctx, optCfg, agentIDs, incumbents, allTreeKinds, pool, ctxEngine, candidates, seeds)

	var accepted int
	var lastCost money.Cents
	for _, r := range results {
		if r.Accepted {
			accepted++
		}
		lastCost = r.IncumbentCost
		if r.Accepted {
			lastCost = r.CandidateCost
		}
		if repo != nil {
			policies := map[string]json.RawMessage{}
			if p := incumbents[r.AgentID][allTreeKinds[r.Iteration%len(allTreeKinds)]]; p != nil {
				if enc, err := p.ToJSON(); err == nil {
					policies[string(r.AgentID)] = enc
				}
			}
			polJSON, _ := json.Marshal(policies)
			if err := repo.RecordIteration(ctx, experimentID, r, polJSON); err != nil {
				log.Warn("recording iteration failed", map[string]interface{}{"error": err.Error(), "iteration": r.Iteration})
			}
		}
		log.Info("iteration complete", map[string]interface{}{
			"iteration": r.Iteration, "agent_id": string(r.AgentID), "accepted": r.Accepted,
			"incumbent_cost": int64(r.IncumbentCost), "candidate_cost": int64(r.CandidateCost),
		})
	}

	converged := len(results) < optCfg.MaxIterations
	if repo != nil {
		if err := repo.CompleteExperiment(ctx, experimentID, converged, lastCost, lastCost); err != nil {
			log.Warn("completing experiment record failed", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("optimization loop complete", map[string]interface{}{
		"iterations": len(results), "accepted": accepted, "converged": converged,
	})
}

// cmdResults lists persisted experiments and their per-iteration cost
// records, looked up by name or id; with no filter it lists everything.
func cmdResults(args []string) {
	cfg, err := config.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.DSN == "" {
		fmt.Fprintln(os.Stderr, "experiment results requires database.dsn to be configured")
		os.Exit(1)
	}
	filter := ""
	if len(args) > 1 {
		filter = args[1]
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := postgres.NewExperimentRepository(db)

	exps, err := repo.ListExperiments(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listing experiments: %v\n", err)
		os.Exit(1)
	}
	if len(exps) == 0 && filter != "" {
		// The filter may be an id rather than a name.
		if exp, err := repo.FindExperiment(ctx, filter); err == nil && exp != nil {
			exps = []postgres.Experiment{*exp}
		}
	}

	for _, exp := range exps {
		status := "running"
		if exp.CompletedAt != nil {
			status = "completed"
			if exp.Converged {
				status = "converged"
			}
		}
		fmt.Printf("%s  %s  (%s, seed %d, %s)\n", exp.ID, exp.Name, exp.Type, exp.MasterSeed, status)
		iters, err := repo.ListIterations(ctx, exp.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  listing iterations: %v\n", err)
			continue
		}
		for _, it := range iters {
			fmt.Printf("  iter %3d  agent %-12s  costs %s\n", it.Iter, it.AgentID, string(it.CostsPerAgent))
		}
	}
}

// buildLLMClient constructs the optimizer's policy-proposal client,
// falling back to llm.NopClient (every iteration's proposal is treated as
// a reject, per spec §7 LLMFailure) when no endpoint is configured.
func buildLLMClient(cfg *config.Config) llm.Client {
	if cfg.LLM.BaseURL == "" {
		return llm.NopClient{}
	}
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return llm.NewHTTPClient(cfg.LLM.BaseURL, cfg.LLM.BearerToken, cfg.LLM.Model, timeout)
}
