// Package config provides configuration loading from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/internal/analysis"
	"github.com/usestring/alergia-mcp/internal/traceio"
	"github.com/usestring/alergia-mcp/pkg/trace"
)

// Tool output limit defaults
const (
	DefaultQueryLimitValue   = 100
	DefaultListLimitValue    = 50
	DefaultHittingMaxSamples = 10
)

// Processing safety caps
const (
	MaxTracesValue     = 100_000
	MaxTraceStepsValue = 1_000_000
)

// Config holds all configuration for the MCP server.
type Config struct {
	// Learner defaults, overridable per request
	Order                 string  // ALERGIA_ORDER, default "lex"
	Parallel              bool    // ALERGIA_PARALLEL, default false
	Deterministic         bool    // ALERGIA_DETERMINISTIC, default true
	FrequencySignificance float64 // ALERGIA_FREQ_SIGNIFICANCE, default 0.05
	FrequencyDecay        float64 // ALERGIA_FREQ_DECAY, default 1.0
	TimingSignificance    float64 // ALERGIA_TIMING_SIGNIFICANCE, default 0.05
	TimingDecay           float64 // ALERGIA_TIMING_DECAY, default 1.0
	TailLength            int     // ALERGIA_TAIL_LENGTH, default -1 (unlimited)
	AnalyzeMergedSamples  bool    // ALERGIA_ANALYZE_MERGED, default false
	LearnWorkers          int     // ALERGIA_WORKERS, default 0 (GOMAXPROCS)

	LearnTimeout time.Duration // LEARN_TIMEOUT_MS, default 120000ms (2m)

	// Trace defaults
	RootOutput   string // ROOT_OUTPUT, default "$init"
	DefaultInput string // DEFAULT_INPUT, default "tick"

	// Analysis defaults
	FrequencyWeight   float64 // SCORE_FREQUENCY_WEIGHT, default 0.5
	ScoreMode         string  // SCORE_MODE, default "best"
	HittingSampleRate float64 // HITTING_SAMPLE_RATE, default 0.1
	HittingMaxSamples int     // HITTING_MAX_SAMPLES, default 10
	AnalysisWorkers   int     // ANALYSIS_WORKERS, default 0 (GOMAXPROCS)

	// Model storage
	ModelStorePath     string // MODEL_STORE_PATH, default <user cache dir>/alergia-mcp/models.db
	ModelCacheMaxItems int    // MODEL_CACHE_MAX_ITEMS, default 64

	// Tool output limits
	DefaultQueryLimit int // DEFAULT_QUERY_LIMIT
	DefaultListLimit  int // DEFAULT_LIST_LIMIT

	// Processing safety caps
	MaxTraces     int // MAX_TRACES, default 100000
	MaxTraceSteps int // MAX_TRACE_STEPS, default 1000000 (summed over all traces)

	// Logging configuration
	LogLevel      string // LOG_LEVEL, default "info"
	LogFormat     string // LOG_FORMAT, text or json, default "text"
	LogFile       string // LOG_FILE, default "" (stderr only)
	LogMaxSizeMB  int    // LOG_MAX_SIZE_MB, default 10
	LogMaxBackups int    // LOG_MAX_BACKUPS, default 5
	LogMaxAgeDays int    // LOG_MAX_AGE_DAYS, default 28
	LogCompress   bool   // LOG_COMPRESS, default true
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	learner := alergia.DefaultConfig()
	return &Config{
		Order:                 getEnvString("ALERGIA_ORDER", string(learner.Order)),
		Parallel:              getEnvBool("ALERGIA_PARALLEL", learner.Parallel),
		Deterministic:         getEnvBool("ALERGIA_DETERMINISTIC", learner.Deterministic),
		FrequencySignificance: getEnvFloat("ALERGIA_FREQ_SIGNIFICANCE", learner.FrequencySignificance),
		FrequencyDecay:        getEnvFloat("ALERGIA_FREQ_DECAY", learner.FrequencyDecay),
		TimingSignificance:    getEnvFloat("ALERGIA_TIMING_SIGNIFICANCE", learner.TimingSignificance),
		TimingDecay:           getEnvFloat("ALERGIA_TIMING_DECAY", learner.TimingDecay),
		TailLength:            getEnvInt("ALERGIA_TAIL_LENGTH", -1),
		AnalyzeMergedSamples:  getEnvBool("ALERGIA_ANALYZE_MERGED", learner.AnalyzeMergedSamples),
		LearnWorkers:          getEnvInt("ALERGIA_WORKERS", 0),
		LearnTimeout:          getEnvDurationMs("LEARN_TIMEOUT_MS", 120000),

		RootOutput:   getEnvString("ROOT_OUTPUT", trace.DefaultRoot),
		DefaultInput: getEnvString("DEFAULT_INPUT", traceio.DefaultInput),

		FrequencyWeight:   getEnvFloat("SCORE_FREQUENCY_WEIGHT", 0.5),
		ScoreMode:         getEnvString("SCORE_MODE", string(analysis.ScoreBest)),
		HittingSampleRate: getEnvFloat("HITTING_SAMPLE_RATE", 0.1),
		HittingMaxSamples: getEnvInt("HITTING_MAX_SAMPLES", DefaultHittingMaxSamples),
		AnalysisWorkers:   getEnvInt("ANALYSIS_WORKERS", 0),

		ModelStorePath:     getEnvString("MODEL_STORE_PATH", defaultStorePath()),
		ModelCacheMaxItems: getEnvInt("MODEL_CACHE_MAX_ITEMS", 64),

		DefaultQueryLimit: getEnvInt("DEFAULT_QUERY_LIMIT", DefaultQueryLimitValue),
		DefaultListLimit:  getEnvInt("DEFAULT_LIST_LIMIT", DefaultListLimitValue),

		MaxTraces:     getEnvInt("MAX_TRACES", MaxTracesValue),
		MaxTraceSteps: getEnvInt("MAX_TRACE_STEPS", MaxTraceStepsValue),

		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogFormat:     getEnvString("LOG_FORMAT", "text"),
		LogFile:       getEnvString("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// Learner returns the configured learner defaults. Unknown orders are left
// for Config.Validate to reject.
func (c *Config) Learner() alergia.Config {
	lc := alergia.Config{
		Order:                 alergia.Order(strings.ToLower(c.Order)),
		Parallel:              c.Parallel,
		Deterministic:         c.Deterministic,
		FrequencySignificance: c.FrequencySignificance,
		FrequencyDecay:        c.FrequencyDecay,
		TimingSignificance:    c.TimingSignificance,
		TimingDecay:           c.TimingDecay,
		AnalyzeMergedSamples:  c.AnalyzeMergedSamples,
		Workers:               c.LearnWorkers,
	}
	if c.TailLength >= 0 {
		lc.TailLength = alergia.Tail(c.TailLength)
	}
	return lc
}

func defaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "alergia-mcp", "models.db")
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	ms := getEnvInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}
