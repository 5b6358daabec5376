package traceio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/usestring/alergia-mcp/pkg/trace"
)

// DefaultInput is the input symbol assigned to timestamp log steps.
const DefaultInput = "tick"

// ErrEmptyLog is returned for a log without observations.
var ErrEmptyLog = errors.New("timestamp log has no observations")

// ParseTimestampLog converts a log of "<timestamp> <output>" lines into a
// trace. The first observation becomes the head; every later one becomes a
// step whose elapsed time is the distance to its predecessor. Timestamps are
// RFC 3339 or Unix seconds. Fields may be separated by whitespace, a comma or
// a tab. Blank lines and lines starting with # are skipped.
func ParseTimestampLog(r io.Reader, name, input string) (trace.Trace, error) {
	if input == "" {
		input = DefaultInput
	}
	tr := trace.Trace{Name: name}

	var prev time.Time
	seen := false
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ts, output, err := splitLogLine(line)
		if err != nil {
			return trace.Trace{}, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !seen {
			tr.Head = output
			prev, seen = ts, true
			continue
		}
		elapsed := ts.Sub(prev)
		if elapsed < 0 {
			return trace.Trace{}, fmt.Errorf("line %d: %w: timestamp precedes previous observation", lineNo, trace.ErrNegativeDuration)
		}
		tr.Steps = append(tr.Steps, trace.Step{Elapsed: elapsed, Input: input, Output: output})
		prev = ts
	}
	if err := sc.Err(); err != nil {
		return trace.Trace{}, fmt.Errorf("reading log: %w", err)
	}
	if !seen {
		return trace.Trace{}, ErrEmptyLog
	}
	return tr, nil
}

func splitLogLine(line string) (time.Time, string, error) {
	idx := strings.IndexAny(line, " \t,")
	if idx < 0 {
		return time.Time{}, "", fmt.Errorf("expected <timestamp> <output>, got %q", line)
	}
	raw := line[:idx]
	output := strings.TrimSpace(strings.TrimLeft(line[idx:], " \t,"))
	if output == "" {
		return time.Time{}, "", fmt.Errorf("missing output after %q", raw)
	}
	ts, err := parseTimestamp(raw)
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, output, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	whole := int64(secs)
	frac := int64((secs - float64(whole)) * 1e9)
	return time.Unix(whole, frac), nil
}
