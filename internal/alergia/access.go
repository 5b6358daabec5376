package alergia

import (
	"strings"
)

// accessString identifies a promoted state by the input/output path that
// first reached it. It is stored as a persistent list so that extending a
// parent's string does not copy it.
type accessString struct {
	head   string
	parent *accessString
	input  string
	output string
	length int
}

type ioPair struct {
	input  string
	output string
}

func rootAccess(head string) *accessString {
	return &accessString{head: head}
}

func (a *accessString) extend(input, output string) *accessString {
	return &accessString{head: a.head, parent: a, input: input, output: output, length: a.length + 1}
}

func (a *accessString) pairs() []ioPair {
	out := make([]ioPair, a.length)
	for cur := a; cur.length > 0; cur = cur.parent {
		out[cur.length-1] = ioPair{cur.input, cur.output}
	}
	return out
}

// compareCanonical orders shorter strings first, then by head, then
// lexicographically by (input, output).
func compareCanonical(a, b *accessString) int {
	if a.length != b.length {
		return a.length - b.length
	}
	if c := strings.Compare(a.head, b.head); c != 0 {
		return c
	}
	if a == b {
		return 0
	}
	ap, bp := a.pairs(), b.pairs()
	for i := range ap {
		if c := strings.Compare(ap[i].input, bp[i].input); c != 0 {
			return c
		}
		if c := strings.Compare(ap[i].output, bp[i].output); c != 0 {
			return c
		}
	}
	return 0
}

// compareLex orders longer strings first and falls back to compareCanonical.
func compareLex(a, b *accessString) int {
	if a.length != b.length {
		return b.length - a.length
	}
	return compareCanonical(a, b)
}

func (a *accessString) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(a.head)
	for _, p := range a.pairs() {
		sb.WriteString(", ")
		sb.WriteString(p.input)
		sb.WriteString(", ")
		sb.WriteString(p.output)
	}
	sb.WriteString("]")
	return sb.String()
}
