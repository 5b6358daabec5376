package automaton

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const startNode = "__start0"

// WriteDOT renders the automaton as a GraphViz digraph. Node labels read
// "output / [exit times]" and edge labels "input / n=frequency / p=probability".
// The output can be loaded again with ParseDOT.
func (a *Automaton) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph g {")
	fmt.Fprintln(bw)
	for _, s := range a.states {
		fmt.Fprintf(bw, "\ts%d [shape=\"circle\" label=\"%s\"];\n", s.ID, escapeLabel(nodeLabel(s)))
	}
	for _, t := range a.transitions {
		fmt.Fprintf(bw, "\ts%d -> s%d [label=\"%s\"];\n", t.Source, t.Target, escapeLabel(a.edgeLabel(t)))
	}
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "%s [label=\"\" shape=\"none\" width=\"0\" height=\"0\"];\n", startNode)
	fmt.Fprintf(bw, "%s -> s%d;\n", startNode, a.initial)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}

// DOT returns the WriteDOT rendering as a string.
func (a *Automaton) DOT() string {
	var sb strings.Builder
	_ = a.WriteDOT(&sb)
	return sb.String()
}

func nodeLabel(s State) string {
	times := make([]string, len(s.ExitTimes))
	for i, d := range s.ExitTimes {
		times[i] = d.String()
	}
	return s.Output + " / [" + strings.Join(times, ", ") + "]"
}

func (a *Automaton) edgeLabel(t Transition) string {
	p := strconv.FormatFloat(a.Probability(t), 'g', -1, 64)
	return fmt.Sprintf("%s / n=%d / p=%s", t.Input, t.Frequency, p)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

// escapeLabel quotes s for a DOT string. Line breaks are escaped so every
// statement stays on one line.
func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

func unescapeLabel(s string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			switch r {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var (
	edgeLine  = regexp.MustCompile(`^\s*"?([\w$]+)"?\s*->\s*"?([\w$]+)"?\s*(?:\[(.*)\])?\s*;?\s*$`)
	nodeLine  = regexp.MustCompile(`^\s*"?([\w$]+)"?\s*\[(.*)\]\s*;?\s*$`)
	attribute = regexp.MustCompile(`(\w+)\s*=\s*"((?:[^"\\]|\\.)*)"`)
)

type dotEdge struct {
	line     int
	from, to string
	label    string
}

// ParseDOT loads an automaton written by WriteDOT. Probabilities in edge
// labels are ignored and recomputed from frequencies.
func ParseDOT(r io.Reader) (*Automaton, error) {
	var (
		names   []string
		labels  = make(map[string]string)
		edges   []dotEdge
		initial string
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", line == "}", strings.HasPrefix(line, "digraph"), strings.HasPrefix(line, "//"):
			continue
		}

		if m := edgeLine.FindStringSubmatch(line); m != nil {
			if strings.HasPrefix(m[1], "__start") {
				if initial != "" {
					return nil, fmt.Errorf("%w: line %d: more than one initial state", ErrMalformed, lineNo)
				}
				initial = m[2]
				continue
			}
			label, ok := attrs(m[3])["label"]
			if !ok {
				return nil, fmt.Errorf("%w: line %d: edge without label", ErrMalformed, lineNo)
			}
			edges = append(edges, dotEdge{line: lineNo, from: m[1], to: m[2], label: label})
			continue
		}

		if m := nodeLine.FindStringSubmatch(line); m != nil {
			if strings.HasPrefix(m[1], "__start") {
				continue
			}
			label, ok := attrs(m[2])["label"]
			if !ok {
				return nil, fmt.Errorf("%w: line %d: node %s without label", ErrMalformed, lineNo, m[1])
			}
			if _, dup := labels[m[1]]; dup {
				return nil, fmt.Errorf("%w: line %d: node %s declared twice", ErrMalformed, lineNo, m[1])
			}
			names = append(names, m[1])
			labels[m[1]] = label
			continue
		}

		return nil, fmt.Errorf("%w: line %d: unrecognized statement %q", ErrMalformed, lineNo, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading dot: %w", err)
	}

	b := NewBuilder()
	ids := make(map[string]int, len(names))
	for _, name := range names {
		output, times, err := parseNodeLabel(labels[name])
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: %v", ErrMalformed, name, err)
		}
		ids[name] = b.AddState(output, times)
	}

	if initial == "" {
		return nil, fmt.Errorf("%w: no initial state", ErrMalformed)
	}
	init, ok := ids[initial]
	if !ok {
		return nil, fmt.Errorf("%w: initial state %s is not declared", ErrMalformed, initial)
	}
	b.SetInitial(init)

	for _, e := range edges {
		from, okFrom := ids[e.from]
		to, okTo := ids[e.to]
		if !okFrom || !okTo {
			return nil, fmt.Errorf("%w: line %d: edge references undeclared node", ErrMalformed, e.line)
		}
		input, freq, err := parseEdgeLabel(e.label)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, e.line, err)
		}
		b.AddTransition(from, input, to, freq)
	}

	a, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return a, nil
}

func attrs(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range attribute.FindAllStringSubmatch(s, -1) {
		out[m[1]] = unescapeLabel(m[2])
	}
	return out
}

func parseNodeLabel(label string) (string, []time.Duration, error) {
	i := strings.LastIndex(label, " / [")
	if i < 0 || !strings.HasSuffix(label, "]") {
		return "", nil, fmt.Errorf("label %q is not of the form \"output / [times]\"", label)
	}
	output := label[:i]
	body := strings.TrimSpace(label[i+len(" / [") : len(label)-1])
	if body == "" {
		return output, nil, nil
	}
	parts := strings.Split(body, ",")
	times := make([]time.Duration, len(parts))
	for j, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return "", nil, fmt.Errorf("exit time %q: %w", p, err)
		}
		times[j] = d
	}
	return output, times, nil
}

func parseEdgeLabel(label string) (string, int, error) {
	parts := strings.Split(label, " / ")
	if len(parts) < 3 {
		return "", 0, fmt.Errorf("label %q is not of the form \"input / n=freq / p=prob\"", label)
	}
	n := parts[len(parts)-2]
	p := parts[len(parts)-1]
	if !strings.HasPrefix(n, "n=") || !strings.HasPrefix(p, "p=") {
		return "", 0, fmt.Errorf("label %q is missing n= or p=", label)
	}
	freq, err := strconv.Atoi(strings.TrimPrefix(n, "n="))
	if err != nil {
		return "", 0, fmt.Errorf("frequency in %q: %w", label, err)
	}
	if _, err := strconv.ParseFloat(strings.TrimPrefix(p, "p="), 64); err != nil {
		return "", 0, fmt.Errorf("probability in %q: %w", label, err)
	}
	return strings.Join(parts[:len(parts)-2], " / "), freq, nil
}
