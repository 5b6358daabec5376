package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/internal/analysis"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

var (
	headerColor = color.New(color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	dimColor    = color.New(color.Faint)
)

// reporter writes human-readable summaries. Models go to stdout, so
// summaries go to the command's error stream unless stated otherwise.
type reporter struct {
	w io.Writer
	p *message.Printer
}

func report(cmd *cobra.Command) *reporter {
	return &reporter{w: cmd.ErrOrStderr(), p: message.NewPrinter(language.English)}
}

func (r *reporter) to(w io.Writer) *reporter {
	return &reporter{w: w, p: r.p}
}

func (r *reporter) learned(a *automaton.Automaton, st *alergia.Stats) {
	headerColor.Fprintln(r.w, "model")
	r.p.Fprintf(r.w, "  states       %d\n", a.NumStates())
	r.p.Fprintf(r.w, "  transitions  %d\n", a.NumTransitions())
	if st == nil {
		dimColor.Fprintln(r.w, "  prefix tree, no merging")
		return
	}
	r.p.Fprintf(r.w, "  traces       %d\n", st.Traces)
	r.p.Fprintf(r.w, "  tree nodes   %d\n", st.TreeNodes)
	r.p.Fprintf(r.w, "  merges       %d\n", st.Merges)
	r.p.Fprintf(r.w, "  promotions   %d\n", st.Promotions)
	r.p.Fprintf(r.w, "  elapsed      %s\n", st.Elapsed.Round(time.Millisecond))
}

// scoreColor grades a revision score.
func scoreColor(score float64) *color.Color {
	switch {
	case score >= 0.8:
		return goodColor
	case score >= 0.5:
		return warnColor
	default:
		return badColor
	}
}

func (r *reporter) scores(rep *analysis.ScoreReport) {
	headerColor.Fprintf(r.w, "revision scores (%s, weight %.2f)\n", rep.Mode, rep.Weight)
	for _, ts := range rep.Traces {
		name := ts.Name
		if name == "" {
			name = fmt.Sprintf("#%d", ts.Index)
		}
		fmt.Fprintf(r.w, "  %-32s ", name)
		scoreColor(ts.Score).Fprintf(r.w, "%.4f\n", ts.Score)
	}
	fmt.Fprintf(r.w, "  %-32s ", "mean")
	scoreColor(rep.Mean).Fprintf(r.w, "%.4f", rep.Mean)
	if rep.StdDev != nil {
		dimColor.Fprintf(r.w, " ± %.4f", *rep.StdDev)
	}
	fmt.Fprintln(r.w)
}

func (r *reporter) hittingTimes(a *automaton.Automaton, times []time.Duration) {
	headerColor.Fprintln(r.w, "mean hitting times")
	for s, t := range times {
		fmt.Fprintf(r.w, "  %4d  %-24s %s\n", s, a.Output(s), t)
	}
}

func (r *reporter) unconnected(states []int) {
	badColor.Fprintf(r.w, "model unusable: %d state(s) cannot reach a target: %v\n", len(states), states)
}

// deltaSummary aggregates the absolute prediction errors of a report.
type deltaSummary struct {
	samples   int
	predicted int
	skipped   int
	mean      time.Duration
	max       time.Duration
}

func summarize(rep *analysis.HittingReport) deltaSummary {
	var s deltaSummary
	var total time.Duration
	for _, th := range rep.Traces {
		if len(th.Samples) == 0 {
			s.skipped++
			continue
		}
		for _, sample := range th.Samples {
			s.samples++
			if sample.Delta == nil {
				continue
			}
			s.predicted++
			d := *sample.Delta
			if d < 0 {
				d = -d
			}
			total += d
			s.max = max(s.max, d)
		}
	}
	if s.predicted > 0 {
		s.mean = total / time.Duration(s.predicted)
	}
	return s
}

func (r *reporter) deltas(s deltaSummary) {
	headerColor.Fprintln(r.w, "hitting time delta")
	r.p.Fprintf(r.w, "  samples      %d\n", s.samples)
	r.p.Fprintf(r.w, "  predicted    %d\n", s.predicted)
	if s.skipped > 0 {
		warnColor.Fprintf(r.w, "  skipped      %d trace(s) never reach a target\n", s.skipped)
	}
	fmt.Fprintf(r.w, "  mean |delta| %s\n", s.mean)
	fmt.Fprintf(r.w, "  max |delta|  %s\n", s.max)
}
