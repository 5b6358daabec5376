package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/alergia-mcp/internal/alergia"
)

func TestLoad_defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "lex", cfg.Order)
	assert.Equal(t, -1, cfg.TailLength)
	assert.Equal(t, 0.5, cfg.FrequencyWeight)
	assert.Equal(t, "best", cfg.ScoreMode)
	assert.Equal(t, "$init", cfg.RootOutput)
	assert.Equal(t, "tick", cfg.DefaultInput)
	assert.Equal(t, 2*time.Minute, cfg.LearnTimeout)
	assert.NotEmpty(t, cfg.ModelStorePath)

	learner := cfg.Learner()
	assert.Nil(t, learner.TailLength)
	assert.Equal(t, alergia.DefaultConfig(), learner)
	require.NoError(t, learner.Validate())
}

func TestLoad_environment(t *testing.T) {
	t.Setenv("ALERGIA_ORDER", "FIFO")
	t.Setenv("ALERGIA_PARALLEL", "yes")
	t.Setenv("ALERGIA_DETERMINISTIC", "off")
	t.Setenv("ALERGIA_FREQ_SIGNIFICANCE", "0.2")
	t.Setenv("ALERGIA_TAIL_LENGTH", "3")
	t.Setenv("ALERGIA_WORKERS", "4")
	t.Setenv("LEARN_TIMEOUT_MS", "1500")
	t.Setenv("MODEL_STORE_PATH", "/tmp/models.db")
	t.Setenv("SCORE_FREQUENCY_WEIGHT", "not-a-number")

	cfg := Load()
	learner := cfg.Learner()
	assert.Equal(t, alergia.OrderFIFO, learner.Order)
	assert.True(t, learner.Parallel)
	assert.False(t, learner.Deterministic)
	assert.Equal(t, 0.2, learner.FrequencySignificance)
	require.NotNil(t, learner.TailLength)
	assert.Equal(t, 3, *learner.TailLength)
	assert.Equal(t, 4, learner.Workers)
	assert.Equal(t, 1500*time.Millisecond, cfg.LearnTimeout)
	assert.Equal(t, "/tmp/models.db", cfg.ModelStorePath)
	assert.Equal(t, 0.5, cfg.FrequencyWeight, "unparseable values fall back to the default")
}
