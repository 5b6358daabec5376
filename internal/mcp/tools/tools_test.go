package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/usestring/alergia-mcp/internal/cache"
	"github.com/usestring/alergia-mcp/internal/config"
	"github.com/usestring/alergia-mcp/internal/query"
	"github.com/usestring/alergia-mcp/internal/store"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

type ToolsSuite struct {
	suite.Suite
	deps *Deps
	ctx  context.Context
}

func TestToolsSuite(t *testing.T) {
	suite.Run(t, new(ToolsSuite))
}

func (s *ToolsSuite) SetupTest() {
	dir := s.T().TempDir()
	s.T().Setenv("MODEL_STORE_PATH", filepath.Join(dir, "models.db"))

	cfg := config.Load()
	st, err := store.Open(cfg.ModelStorePath)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = st.Close() })

	c, err := cache.NewModelCache(cfg.ModelCacheMaxItems)
	s.Require().NoError(err)

	s.deps = &Deps{Config: cfg, Store: st, Cache: c, Query: query.NewEngine()}
	s.ctx = context.Background()
}

// pump saves a two-state cycle: idle waits 1s on average, pumping 2s.
func (s *ToolsSuite) pump() string {
	b := automaton.NewBuilder()
	idle := b.AddState("idle", []time.Duration{time.Second, time.Second})
	pumping := b.AddState("pumping", []time.Duration{2 * time.Second})
	b.AddTransition(idle, "tick", pumping, 2)
	b.AddTransition(pumping, "tick", idle, 1)
	a, err := b.Build()
	s.Require().NoError(err)

	meta, err := s.deps.SaveModel(store.Metadata{Name: "pump", Source: store.SourceImported}, a)
	s.Require().NoError(err)
	return meta.ID
}

func pumpTraces() []TraceSpec {
	return []TraceSpec{
		{Name: "a", Head: "idle", Steps: []StepSpec{{Elapsed: "1s", Input: "tick", Output: "pumping"}, {Elapsed: "2s", Input: "tick", Output: "idle"}}},
		{Name: "b", Head: "idle", Steps: []StepSpec{{Elapsed: "1s", Input: "tick", Output: "pumping"}, {Elapsed: "2s", Input: "tick", Output: "idle"}}},
	}
}

func codeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

func (s *ToolsSuite) TestRegisterOutputsPassSchemaCheck() {
	srv := sdkmcp.NewServer(&sdkmcp.Implementation{Name: "test", Version: "v0.0.0"}, nil)
	s.NotPanics(func() { Register(srv, s.deps) })
}

func (s *ToolsSuite) TestEmptyCollectionOutputsPassSchemaCheck() {
	s.NotPanics(func() { CheckOutputSchema[ListModelsOutput]("alergia_list_models") })
	s.NotPanics(func() { CheckOutputSchema[QueryModelOutput]("alergia_query_model") })

	_, out, err := ToolListModels(s.deps)(s.ctx, nil, ListModelsInput{})
	s.Require().NoError(err)
	s.Empty(out.Models)
}

func (s *ToolsSuite) TestLearnTreeOnly() {
	_, out, err := ToolLearnModel(s.deps)(s.ctx, nil, LearnModelInput{
		Source:   TraceSource{Traces: pumpTraces()},
		Name:     "tree",
		TreeOnly: true,
	})
	s.Require().NoError(err)

	s.Equal("tree", out.Model.Source)
	s.Equal(3, out.Model.States)
	s.Equal(2, out.Model.Transitions)
	s.Equal(3, out.Stats.TreeNodes)
	s.Equal(2, out.Stats.Traces)
	s.Equal(ModelURI(out.Model.ID), out.Model.URI)

	_, got, err := ToolGetModel(s.deps)(s.ctx, nil, GetModelInput{ModelID: out.Model.ID, IncludeModel: true})
	s.Require().NoError(err)
	s.Nil(got.Options)
	s.Equal([]int{2}, got.Sinks)
	s.Len(got.States, 3)
	s.Len(got.Transitions, 2)
	for _, tr := range got.Transitions {
		s.InDelta(1.0, tr.Probability, 1e-9)
	}
}

func (s *ToolsSuite) TestLearnMerges() {
	_, out, err := ToolLearnModel(s.deps)(s.ctx, nil, LearnModelInput{Source: TraceSource{Traces: pumpTraces()}})
	s.Require().NoError(err)

	s.Equal("learned", out.Model.Source)
	s.LessOrEqual(out.Model.States, 3)
	s.Equal([]string{"tick"}, out.Model.Inputs)
	s.Equal([]string{"idle", "pumping"}, out.Model.Outputs)

	_, list, err := ToolListModels(s.deps)(s.ctx, nil, ListModelsInput{})
	s.Require().NoError(err)
	s.Equal(1, list.Total)
	s.Equal(out.Model.ID, list.Models[0].ID)
}

func (s *ToolsSuite) TestLearnInvalidInput() {
	cases := []struct {
		name  string
		input LearnModelInput
	}{
		{"no traces", LearnModelInput{}},
		{"bad order", LearnModelInput{Source: TraceSource{Traces: pumpTraces()}, Options: &LearnerOptions{Order: "random"}}},
		{"bad duration", LearnModelInput{Source: TraceSource{Traces: []TraceSpec{{Head: "idle", Steps: []StepSpec{{Elapsed: "soon", Input: "tick", Output: "x"}}}}}}},
		{"divergent heads", LearnModelInput{Source: TraceSource{Traces: []TraceSpec{{Head: "idle"}, {Head: "busy"}}}}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, _, err := ToolLearnModel(s.deps)(s.ctx, nil, tc.input)
			s.Require().Error(err)
			s.Equal(ErrCodeInvalidInput, codeOf(err))
		})
	}
}

func (s *ToolsSuite) TestLearnRootedHeads() {
	traces := []TraceSpec{{Head: "idle"}, {Head: "busy", Steps: []StepSpec{{Elapsed: "1s", Input: "tick", Output: "idle"}}}}
	_, out, err := ToolLearnModel(s.deps)(s.ctx, nil, LearnModelInput{
		Source:   TraceSource{Traces: traces, Root: true},
		TreeOnly: true,
	})
	s.Require().NoError(err)
	s.Contains(out.Model.Outputs, s.deps.Config.RootOutput)
}

func (s *ToolsSuite) TestLearnFromFiles() {
	dir := s.T().TempDir()
	log := "2024-01-01T00:00:00Z idle\n2024-01-01T00:00:01Z pumping\n2024-01-01T00:00:03Z idle\n"
	s.Require().NoError(os.WriteFile(filepath.Join(dir, "pump.log"), []byte(log), 0o644))

	_, out, err := ToolLearnModel(s.deps)(s.ctx, nil, LearnModelInput{
		Source:   TraceSource{Files: []string{"*.log"}, BaseDir: dir},
		TreeOnly: true,
	})
	s.Require().NoError(err)
	s.Equal(1, out.Stats.Traces)
	s.Equal([]string{"tick"}, out.Model.Inputs)
}

func (s *ToolsSuite) TestTraceLimits() {
	s.deps.Config.MaxTraces = 1
	_, err := s.deps.ResolveTraces(TraceSource{Traces: pumpTraces()})
	s.Equal(ErrCodeInvalidInput, codeOf(err))

	s.deps.Config.MaxTraces = 10
	s.deps.Config.MaxTraceSteps = 3
	_, err = s.deps.ResolveTraces(TraceSource{Traces: pumpTraces()})
	s.Equal(ErrCodeInvalidInput, codeOf(err))
}

func (s *ToolsSuite) TestExportImportRoundTrip() {
	id := s.pump()
	for _, format := range []string{FormatDOT, FormatJSON} {
		s.Run(format, func() {
			res, exported, err := ToolExportModel(s.deps)(s.ctx, nil, ExportModelInput{ModelID: id, Format: format})
			s.Require().NoError(err)
			s.Require().Len(res.Content, 1)
			s.NotEmpty(exported.Content)

			_, imported, err := ToolImportModel(s.deps)(s.ctx, nil, ImportModelInput{Content: exported.Content, Name: "copy"})
			s.Require().NoError(err)
			s.Equal("imported", imported.Model.Source)
			s.Equal(2, imported.Model.States)
			s.Equal(2, imported.Model.Transitions)
			s.NotEqual(id, imported.Model.ID)
		})
	}

	_, _, err := ToolExportModel(s.deps)(s.ctx, nil, ExportModelInput{ModelID: id, Format: "svg"})
	s.Equal(ErrCodeInvalidInput, codeOf(err))
	_, _, err = ToolImportModel(s.deps)(s.ctx, nil, ImportModelInput{Content: "digraph {", Format: "dot"})
	s.Equal(ErrCodeInvalidInput, codeOf(err))
}

func (s *ToolsSuite) TestDeleteModel() {
	id := s.pump()
	_, out, err := ToolDeleteModel(s.deps)(s.ctx, nil, DeleteModelInput{ModelID: id})
	s.Require().NoError(err)
	s.True(out.Deleted)

	_, _, err = ToolGetModel(s.deps)(s.ctx, nil, GetModelInput{ModelID: id})
	s.Equal(ErrCodeNotFound, codeOf(err))
	_, _, err = ToolDeleteModel(s.deps)(s.ctx, nil, DeleteModelInput{ModelID: id})
	s.Equal(ErrCodeNotFound, codeOf(err))
}

func (s *ToolsSuite) TestMatchTrace() {
	id := s.pump()
	_, out, err := ToolMatchTrace(s.deps)(s.ctx, nil, MatchTraceInput{
		ModelID: id,
		Trace:   TraceSpec{Head: "idle", Steps: []StepSpec{{Elapsed: "1s", Input: "tick", Output: "pumping"}}},
	})
	s.Require().NoError(err)
	s.Equal(1, out.Matches)
	s.True(out.Rooted)
	s.Require().NotNil(out.Best)
	s.Equal([]int{0, 1}, out.Best.States)
	s.Equal([]string{"idle", "pumping"}, out.Best.Outputs)
	s.True(out.Best.Rooted)
	s.InDelta(0.36788, out.Best.Likelihood, 1e-4)
	s.Require().NotNil(out.BestScore)

	_, out, err = ToolMatchTrace(s.deps)(s.ctx, nil, MatchTraceInput{
		ModelID: id,
		Trace:   TraceSpec{Head: "pumping", Steps: []StepSpec{{Elapsed: "1s", Input: "tick", Output: "pumping"}}},
	})
	s.Require().NoError(err)
	s.Zero(out.Matches)
	s.Nil(out.Best)
	s.NotEmpty(out.Hint)

	_, _, err = ToolMatchTrace(s.deps)(s.ctx, nil, MatchTraceInput{
		ModelID: id,
		Trace:   TraceSpec{Head: "idle", Steps: []StepSpec{{Elapsed: "1s", Input: "stop", Output: "idle"}}},
	})
	s.Equal(ErrCodeInvalidInput, codeOf(err))
}

func (s *ToolsSuite) TestRevisionScore() {
	id := s.pump()
	_, out, err := ToolRevisionScore(s.deps)(s.ctx, nil, RevisionScoreInput{ModelID: id, Source: TraceSource{Traces: pumpTraces()}})
	s.Require().NoError(err)
	s.Require().NotNil(out.Report)
	s.Equal("best", string(out.Report.Mode))
	s.Len(out.Report.Traces, 2)
	s.GreaterOrEqual(out.Report.Mean, 0.0)
	s.LessOrEqual(out.Report.Mean, 1.0)

	weight := 1.5
	_, _, err = ToolRevisionScore(s.deps)(s.ctx, nil, RevisionScoreInput{ModelID: id, Source: TraceSource{Traces: pumpTraces()}, FrequencyWeight: &weight})
	s.Equal(ErrCodeInvalidInput, codeOf(err))

	_, _, err = ToolRevisionScore(s.deps)(s.ctx, nil, RevisionScoreInput{ModelID: id, Source: TraceSource{Traces: pumpTraces()}, Mode: "median"})
	s.Equal(ErrCodeInvalidInput, codeOf(err))
}

func (s *ToolsSuite) TestHittingTimes() {
	id := s.pump()
	_, out, err := ToolHittingTimes(s.deps)(s.ctx, nil, HittingTimesInput{ModelID: id, TargetOutputs: []string{"pumping"}})
	s.Require().NoError(err)
	s.True(out.Usable)
	s.Require().Len(out.Times, 2)
	s.InDelta(1000.0, out.Times[0].Ms, 1e-6)
	s.Equal("1s", out.Times[0].Human)
	s.Zero(out.Times[1].Ms)

	_, _, err = ToolHittingTimes(s.deps)(s.ctx, nil, HittingTimesInput{ModelID: id})
	s.Equal(ErrCodeInvalidInput, codeOf(err))
}

func (s *ToolsSuite) TestHittingTimesUnconnected() {
	_, learned, err := ToolLearnModel(s.deps)(s.ctx, nil, LearnModelInput{
		Source:   TraceSource{Traces: pumpTraces()[:1]},
		TreeOnly: true,
	})
	s.Require().NoError(err)

	_, out, err := ToolHittingTimes(s.deps)(s.ctx, nil, HittingTimesInput{ModelID: learned.Model.ID, TargetOutputs: []string{"pumping"}})
	s.Require().NoError(err)
	s.False(out.Usable)
	s.Equal([]int{2}, out.Unconnected)
}

func (s *ToolsSuite) TestHittingDelta() {
	id := s.pump()
	_, out, err := ToolHittingDelta(s.deps)(s.ctx, nil, HittingDeltaInput{
		ModelID:       id,
		Source:        TraceSource{Traces: pumpTraces()},
		TargetOutputs: []string{"pumping"},
		SampleRate:    1,
	})
	s.Require().NoError(err)
	s.Require().NotNil(out.Report)
	s.True(out.Report.Usable)
	s.Len(out.Report.Traces, 2)
	s.Equal(4, out.Summary.Samples)
	s.Equal(4, out.Summary.Predicted)
	s.Zero(out.Summary.TracesSkipped)
}

func (s *ToolsSuite) TestQueryModel() {
	id := s.pump()
	_, out, err := ToolQueryModel(s.deps)(s.ctx, nil, QueryModelInput{
		ModelIDs:   []string{id},
		Expression: ".model.states[].output",
	})
	s.Require().NoError(err)
	s.Equal([]any{"idle", "pumping"}, out.Values)
	s.Equal(2, out.ValueCounts[id])

	_, out, err = ToolQueryModel(s.deps)(s.ctx, nil, QueryModelInput{
		ModelIDs:   []string{id},
		Expression: ".model.transitions[] | select(.probability >= $min) | .target",
		Variables:  map[string]any{"min": 1},
	})
	s.Require().NoError(err)
	s.Equal([]any{float64(1), float64(0)}, out.Values)

	_, _, err = ToolQueryModel(s.deps)(s.ctx, nil, QueryModelInput{ModelIDs: []string{id}, Expression: ".[["})
	s.Equal(ErrCodeInvalidInput, codeOf(err))
}

func (s *ToolsSuite) TestTraceSchema() {
	_, out, err := ToolTraceSchema(s.deps)(s.ctx, nil, TraceSchemaInput{})
	s.Require().NoError(err)
	s.NotEmpty(out.SchemaID)
	s.IsType(map[string]any{}, out.Schema)
	s.Nil(out.Valid)

	_, out, err = ToolTraceSchema(s.deps)(s.ctx, nil, TraceSchemaInput{Validate: traceExample})
	s.Require().NoError(err)
	s.Require().NotNil(out.Valid)
	s.True(*out.Valid)

	_, out, err = ToolTraceSchema(s.deps)(s.ctx, nil, TraceSchemaInput{Validate: `{"traces": [{"steps": []}]}`})
	s.Require().NoError(err)
	s.Require().NotNil(out.Valid)
	s.False(*out.Valid)
	s.NotEmpty(out.ValidationErrors)
}

func TestWrapDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"not found", store.ErrNotFound, ErrCodeNotFound},
		{"malformed", automaton.ErrMalformed, ErrCodeInvalidInput},
		{"timeout", context.DeadlineExceeded, ErrCodeTimeout},
		{"other", errors.New("disk on fire"), ErrCodeInternal},
		{"coded", ErrInvalidInput("x"), ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapDomainError(tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.code, codeOf(err))
		})
	}
	assert.NoError(t, WrapDomainError(nil))
}
