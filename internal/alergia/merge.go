package alergia

import (
	"fmt"
	"slices"
)

type mergeTask struct {
	targetParent int
	target       int
	sourceAccess int
	source       int
}

// mergeFrame is one pending mergeTask. Frames are processed depth first and
// resume at next after a child frame completes.
type mergeFrame struct {
	task    mergeTask
	started bool
	out     []int
	next    int
}

// merge folds the subtree rooted at the blue state source into target and
// promotes any successors of red states that became reachable.
func (s *session) merge(target, source int) error {
	if source == target {
		return fmt.Errorf("%w: state %d merged into itself", ErrInvariant, source)
	}
	access := s.states[source].accessTrans
	if access < 0 {
		return fmt.Errorf("%w: cannot merge the initial state away", ErrInvariant)
	}

	stack := []*mergeFrame{{task: mergeTask{
		targetParent: s.trans[access].source,
		target:       target,
		sourceAccess: access,
		source:       source,
	}}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if !f.started {
			if err := s.beginMerge(f); err != nil {
				return err
			}
		}

		var child *mergeFrame
		for f.next < len(f.out) && child == nil {
			st := f.out[f.next]
			f.next++
			tr := &s.trans[st]
			succ := tr.target
			if tt, ok := s.lookup(f.task.target, tr.input, s.states[succ].output); ok {
				child = &mergeFrame{task: mergeTask{
					targetParent: f.task.target,
					target:       s.trans[tt].target,
					sourceAccess: st,
					source:       succ,
				}}
				continue
			}
			if err := s.moveTransition(st, f.task.target, succ); err != nil {
				return err
			}
		}
		if child != nil {
			stack = append(stack, child)
			continue
		}
		stack = stack[:len(stack)-1]
	}

	s.merges++
	for _, r := range s.red {
		if err := s.promoteSuccessors(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) beginMerge(f *mergeFrame) error {
	f.started = true
	t := f.task
	if s.states[t.source].red {
		return fmt.Errorf("%w: merge looped back to red state %d", ErrInvariant, t.source)
	}

	s.blue.remove(t.source)
	if err := s.foldState(t.source, t.target); err != nil {
		return err
	}

	src := &s.trans[t.sourceAccess]
	if existing, ok := s.lookup(t.targetParent, src.input, s.states[t.source].output); ok && existing != t.sourceAccess {
		if err := s.foldTransition(t.sourceAccess, existing); err != nil {
			return err
		}
	} else if err := s.moveTransition(t.sourceAccess, t.targetParent, t.target); err != nil {
		return err
	}

	f.out = slices.Clone(s.states[t.source].out)
	return nil
}
