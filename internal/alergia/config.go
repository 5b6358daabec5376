package alergia

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Order selects which blue state is processed next.
type Order string

const (
	// OrderFIFO processes blue states in insertion order.
	OrderFIFO Order = "fifo"
	// OrderLIFO processes the most recently inserted blue state first.
	OrderLIFO Order = "lifo"
	// OrderCanonical processes the shortest access string first.
	OrderCanonical Order = "canonical"
	// OrderLex processes the longest access string first.
	OrderLex Order = "lex"
)

// Orders lists all supported blue state orders.
var Orders = []Order{OrderFIFO, OrderLIFO, OrderCanonical, OrderLex}

// ErrInvalidConfig is returned for learner options outside their domain.
var ErrInvalidConfig = errors.New("invalid learner configuration")

// Config holds the learner options.
type Config struct {
	Order         Order `json:"order" yaml:"order" validate:"required,oneof=fifo lifo canonical lex"`
	Parallel      bool  `json:"parallel" yaml:"parallel"`
	Deterministic bool  `json:"deterministic" yaml:"deterministic"`

	FrequencySignificance float64 `json:"frequency_significance" yaml:"frequency_significance" validate:"gte=0,lte=1"`
	FrequencyDecay        float64 `json:"frequency_decay" yaml:"frequency_decay" validate:"gte=0,lte=1"`
	TimingSignificance    float64 `json:"timing_significance" yaml:"timing_significance" validate:"gte=0,lte=1"`
	TimingDecay           float64 `json:"timing_decay" yaml:"timing_decay" validate:"gte=0,lte=1"`

	// TailLength bounds the depth at which stochastic tests are applied.
	// Nil means unlimited.
	TailLength *int `json:"tail_length,omitempty" yaml:"tail_length,omitempty" validate:"omitempty,gte=0"`

	// AnalyzeMergedSamples tests aggregated statistics instead of the
	// evidence each state carried before merging.
	AnalyzeMergedSamples bool `json:"analyze_merged_samples" yaml:"analyze_merged_samples"`

	// Workers bounds the parallel red-state scan. Zero means GOMAXPROCS.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0"`
}

// DefaultConfig returns the default learner options.
func DefaultConfig() Config {
	return Config{
		Order:                 OrderLex,
		Deterministic:         true,
		FrequencySignificance: 0.05,
		FrequencyDecay:        1.0,
		TimingSignificance:    0.05,
		TimingDecay:           1.0,
	}
}

// ParseOrder converts a string to an Order.
func ParseOrder(s string) (Order, error) {
	o := Order(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Orders {
		if o == known {
			return o, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order %q", ErrInvalidConfig, s)
}

var validate = validator.New()

// Validate checks all options.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Tail returns a pointer to n, for use as TailLength.
func Tail(n int) *int {
	return &n
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
