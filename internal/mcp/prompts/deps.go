// Package prompts contains MCP prompt implementations for learning and
// analyzing timed automata.
package prompts

// Config holds configuration needed by prompts.
type Config struct {
	RootOutput      string
	DefaultInput    string
	FrequencyWeight float64
	ScoreMode       string
}
