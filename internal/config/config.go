// Package config defines the simulator's configuration schema and a thin
// YAML loader. Configuration is the one place string-keyed maps are
// acceptable (agent ids, per-priority cost multipliers): everything it
// produces is converted into the closed, typed structures the rest of the
// engine consumes before a run starts.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	validatorpkg "rtgssim/pkg/validator"
)

// AgentConfig is one participant bank's static configuration.
type AgentConfig struct {
	ID                string          `yaml:"id" validate:"required,agent_id_format"`
	UnsecuredCapCents int64           `yaml:"unsecured_cap_cents" validate:"min=0"`
	MaxCollateralCapCents int64       `yaml:"max_collateral_cap_cents" validate:"min=0"`
	CollateralHaircut decimal.Decimal `yaml:"collateral_haircut"`
	LiquidityBufferCents int64        `yaml:"liquidity_buffer_cents" validate:"min=0"`
	InitialBalanceCents int64         `yaml:"initial_balance_cents"`
	ArrivalRatePerTick  float64       `yaml:"arrival_rate_per_tick" validate:"min=0"`
	DistributionType    string        `yaml:"distribution_type" validate:"omitempty,oneof=normal lognormal uniform exponential"`
	AmountMeanCents     int64         `yaml:"amount_mean_cents" validate:"omitempty,min=0"`
	AmountStdDevCents   int64         `yaml:"amount_std_dev_cents" validate:"omitempty,min=0"`
	CounterpartyWeights map[string]float64 `yaml:"counterparty_weights"`
	DeadlineWindowTicks int64         `yaml:"deadline_window_ticks" validate:"omitempty,min=1"`
	PaymentPolicyFile             string `yaml:"payment_policy_file" validate:"required"`
	StrategicCollateralPolicyFile string `yaml:"strategic_collateral_policy_file" validate:"required"`
	EndOfTickCollateralPolicyFile string `yaml:"end_of_tick_collateral_policy_file" validate:"required"`
	BankPolicyFile                string `yaml:"bank_policy_file" validate:"required"`
}

// CostRatesConfig mirrors domain.CostRates in wire form.
type CostRatesConfig struct {
	OverdraftBpsPerTick      decimal.Decimal           `yaml:"overdraft_bps_per_tick"`
	DelayCostPerTickPerCent  decimal.Decimal           `yaml:"delay_cost_per_tick_per_cent"`
	CollateralCostPerTickBps decimal.Decimal           `yaml:"collateral_cost_per_tick_bps"`
	SplitFrictionFlatCost    int64                     `yaml:"split_friction_flat_cost_cents"`
	DeadlinePenalty          int64                     `yaml:"deadline_penalty_cents"`
	EodPenaltyPerTransaction int64                     `yaml:"eod_penalty_per_transaction_cents"`
	PriorityBandMultipliers  map[int]decimal.Decimal   `yaml:"priority_band_multipliers"`
	OverdueDelayMultiplier   decimal.Decimal           `yaml:"overdue_delay_multiplier"`
}

// LSMConfig tunes the liquidity-saving mechanism passes.
type LSMConfig struct {
	MinCycleLength int `yaml:"min_cycle_length" validate:"min=3"`
	MaxCycleLength int `yaml:"max_cycle_length" validate:"omitempty,min=3"`
	MaxIterations  int `yaml:"max_iterations" validate:"min=1"`
}

// DatabaseConfig configures the Postgres persistence layer. Every field is
// optional: an empty DSN means "no Postgres sink configured" (cmd/run falls
// back to Redis, then to an in-memory sink) rather than a config error.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns" validate:"omitempty,min=1"`
	MigrationsPath  string `yaml:"migrations_path"`
}

// RedisConfig configures the fast/namespaced Redis event sink. Optional like
// DatabaseConfig; Namespace is only required once Addr is actually set.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace" validate:"required_with=Addr"`
}

// LLMConfig configures the optimization loop's LLM client adapter. Only
// consulted by cmd/experiment; a plain simulation run never needs it
// populated, so its fields are conditionally required on BaseURL instead of
// unconditionally.
type LLMConfig struct {
	BaseURL      string `yaml:"base_url"`
	BearerToken  string `yaml:"bearer_token"`
	Model        string `yaml:"model" validate:"required_with=BaseURL"`
	TimeoutSeconds int  `yaml:"timeout_seconds" validate:"omitempty,min=1"`
}

// OptimizationConfig tunes the optimization loop. OptimizedAgents is the
// spec §4.4 "optimized_agents ⊆ agents" input; empty means every agent in
// the scenario is a candidate for tuning.
type OptimizationConfig struct {
	MaxIterations      int      `yaml:"max_iterations" validate:"min=1"`
	StabilityWindow    int      `yaml:"stability_window" validate:"min=1"`
	StabilityThreshold float64  `yaml:"stability_threshold" validate:"min=0"`
	NumSamples         int      `yaml:"num_samples" validate:"omitempty,min=1"`
	BootstrapSamples   int      `yaml:"bootstrap_samples" validate:"min=1"`
	MinImprovementCents int64   `yaml:"min_improvement_cents" validate:"min=0"`
	OptimizedAgents    []string `yaml:"optimized_agents"`
	ContextTicks       int      `yaml:"context_ticks" validate:"omitempty,min=1"`
	// SampleMethod selects the evaluator's resampling strategy (spec §4.4
	// "method ∈ bootstrap|permutation|stratified"); empty defaults to
	// "bootstrap" in setup.BuildEngineConfig's caller.
	SampleMethod string `yaml:"sample_method" validate:"omitempty,oneof=bootstrap permutation stratified"`
}

// Config is the top-level run configuration.
type Config struct {
	TicksPerDay int            `yaml:"ticks_per_day" validate:"min=1"`
	NumDays     int            `yaml:"num_days" validate:"min=1"`
	MasterSeed  uint64         `yaml:"master_seed"`

	Agents    []AgentConfig      `yaml:"agents" validate:"required,min=1,dive"`
	CostRates CostRatesConfig    `yaml:"cost_rates"`
	LSM       LSMConfig          `yaml:"lsm"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     RedisConfig        `yaml:"redis"`
	LLM       LLMConfig          `yaml:"llm"`
	Optimization OptimizationConfig `yaml:"optimization"`

	ScenarioFile string `yaml:"scenario_file"`

	// Queue2SoftCap bounds the system queue on long runs; 0 means uncapped.
	Queue2SoftCap int `yaml:"queue2_soft_cap" validate:"min=0"`
}

// Load reads and parses a YAML config file, then runs struct-tag
// validation over it, which reports every tag failure at once. The
// arrival-config check runs only after tag validation passes and stops at
// the first offending agent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	v := validatorpkg.New()
	if err := v.Validate(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validateArrivalConfigs(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validateArrivalConfigs enforces the one arrival_config rule the
// validator struct tags can't express as an OR condition: normal and
// lognormal distributions require an explicit amount_std_dev_cents (spec
// §6 arrival_config).
func (c *Config) validateArrivalConfigs() error {
	for _, a := range c.Agents {
		if (a.DistributionType == "normal" || a.DistributionType == "lognormal") && a.AmountStdDevCents <= 0 {
			return fmt.Errorf("config: agent %s: distribution_type %q requires amount_std_dev_cents > 0", a.ID, a.DistributionType)
		}
	}
	return nil
}
