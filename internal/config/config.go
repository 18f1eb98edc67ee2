package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type StoppingCriterion string

const (
	Iteration StoppingCriterion = "Iteration"
	Time      StoppingCriterion = "Time"
)

const (
	SelectionRandom     = "random"
	SelectionFirst      = "first"
	SelectionRoundRobin = "roundrobin"

	CPUMax = "max"
	CPUSum = "sum"
)

// Config holds every tunable of a search run.
type Config struct {
	StoppingCriterion StoppingCriterion `yaml:"stoppingCriterion"`
	// Seconds of accounted CPU time in Time mode, iterations in Iteration mode.
	Limit float64 `yaml:"limit"`
	// Known optimal or best known cost; the run stops once reached. 0 disables it.
	Optimal float64 `yaml:"optimal"`

	DMin                 float64  `yaml:"dMin"`
	DMax                 float64  `yaml:"dMax"`
	Gamma                int      `yaml:"gamma"`
	KNNLimit             int      `yaml:"knnLimit"`
	Varphi               int      `yaml:"varphi"`
	Epsilon              float64  `yaml:"epsilon"`
	EtaMin               float64  `yaml:"etaMin"`
	EtaMax               float64  `yaml:"etaMax"`
	TargetMaxSpCustomers int      `yaml:"targetMaxSpCustomers"`
	DecompositionRounds  int      `yaml:"decompositionRounds"`
	Perturbations        []string `yaml:"perturbations"`
	Selection            string   `yaml:"selection"`
	Decay                string   `yaml:"decay"`

	Parallel        bool          `yaml:"parallel"`
	CPUAccounting   string        `yaml:"cpuAccounting"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	Seed    int64 `yaml:"seed"`
	Rounded bool  `yaml:"rounded"`
	Debug   bool  `yaml:"debug"`
	Print   bool  `yaml:"print"`
}

// Default returns the reference AILS-II configuration.
func Default() Config {
	return Config{
		StoppingCriterion:    Time,
		Limit:                60,
		DMin:                 15,
		DMax:                 30,
		Gamma:                30,
		KNNLimit:             100,
		Varphi:               40,
		Epsilon:              0.01,
		EtaMin:               0.01,
		EtaMax:               1,
		TargetMaxSpCustomers: 200,
		DecompositionRounds:  5000,
		Perturbations:        []string{"Sequential", "Concentric"},
		Selection:            SelectionRandom,
		Decay:                "exponential",
		CPUAccounting:        CPUMax,
		ShutdownTimeout:      30 * time.Second,
		Seed:                 1,
		Rounded:              true,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return cfg, fmt.Errorf("load config: parse %q: %v: %w", path, err, ErrInvalidConfig)
	}
	return cfg, nil
}

// Get returns the environment value of key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ApplyEnv overrides fields from AILS_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, ErrInvalidConfig))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, ErrInvalidConfig))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, ErrInvalidConfig))
				return
			}
			*dst = b
		}
	}

	stopping := string(c.StoppingCriterion)
	str("AILS_STOPPING_CRITERION", &stopping)
	c.StoppingCriterion = StoppingCriterion(stopping)
	float("AILS_LIMIT", &c.Limit)
	float("AILS_OPTIMAL", &c.Optimal)
	float("AILS_DMIN", &c.DMin)
	float("AILS_DMAX", &c.DMax)
	integer("AILS_GAMMA", &c.Gamma)
	integer("AILS_KNN_LIMIT", &c.KNNLimit)
	integer("AILS_VARPHI", &c.Varphi)
	float("AILS_EPSILON", &c.Epsilon)
	float("AILS_ETA_MIN", &c.EtaMin)
	float("AILS_ETA_MAX", &c.EtaMax)
	integer("AILS_TARGET_MAX_SP_CUSTOMERS", &c.TargetMaxSpCustomers)
	integer("AILS_DECOMPOSITION_ROUNDS", &c.DecompositionRounds)
	str("AILS_SELECTION", &c.Selection)
	str("AILS_DECAY", &c.Decay)
	str("AILS_CPU_ACCOUNTING", &c.CPUAccounting)
	boolean("AILS_PARALLEL", &c.Parallel)
	boolean("AILS_ROUNDED", &c.Rounded)
	boolean("AILS_DEBUG", &c.Debug)
	boolean("AILS_PRINT", &c.Print)

	if v := os.Getenv("AILS_PERTURBATIONS"); v != "" {
		c.Perturbations = SplitList(v)
	}
	if v := os.Getenv("AILS_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AILS_SEED=%q: %w", v, ErrInvalidConfig))
		} else {
			c.Seed = seed
		}
	}
	if v := os.Getenv("AILS_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AILS_SHUTDOWN_TIMEOUT=%q: %w", v, ErrInvalidConfig))
		} else {
			c.ShutdownTimeout = d
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("apply env: %w", errors.Join(errs...))
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.StoppingCriterion == Time || c.StoppingCriterion == Iteration, "stoppingCriterion %q must be Time or Iteration", c.StoppingCriterion)
	check(c.Limit > 0, "limit must be positive, got %v", c.Limit)
	check(c.Optimal >= 0, "optimal must not be negative, got %v", c.Optimal)
	check(c.DMin > 0 && c.DMin <= c.DMax, "need 0 < dMin <= dMax, got %v and %v", c.DMin, c.DMax)
	check(c.Gamma >= 1, "gamma must be at least 1, got %d", c.Gamma)
	check(c.KNNLimit >= 1, "knnLimit must be at least 1, got %d", c.KNNLimit)
	check(c.Varphi >= 1, "varphi must be at least 1, got %d", c.Varphi)
	check(c.Epsilon > 0, "epsilon must be positive, got %v", c.Epsilon)
	check(c.EtaMin >= 0 && c.EtaMin <= c.EtaMax, "need 0 <= etaMin <= etaMax, got %v and %v", c.EtaMin, c.EtaMax)
	check(c.TargetMaxSpCustomers >= 1, "targetMaxSpCustomers must be at least 1, got %d", c.TargetMaxSpCustomers)
	check(c.DecompositionRounds >= 1, "decompositionRounds must be at least 1, got %d", c.DecompositionRounds)
	check(len(c.Perturbations) > 0, "perturbations must not be empty")
	check(c.Selection == SelectionRandom || c.Selection == SelectionFirst || c.Selection == SelectionRoundRobin,
		"selection %q must be random, first or roundrobin", c.Selection)
	check(c.CPUAccounting == CPUMax || c.CPUAccounting == CPUSum, "cpuAccounting %q must be max or sum", c.CPUAccounting)
	check(c.ShutdownTimeout >= 0, "shutdownTimeout must not be negative")

	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s: %w", strings.Join(problems, "; "), ErrInvalidConfig)
	}
	return nil
}
