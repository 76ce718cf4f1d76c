package llm

import (
	"slices"

	"github.com/MrWong99/huddle/pkg/types"
)

// ToolCallAccumulator joins streamed tool-call fragments. Fragments with the
// same index belong to the same call: the first non-empty ID and name win
// and argument text is concatenated.
type ToolCallAccumulator struct {
	calls map[int]*types.ToolCall
}

// Add merges one fragment.
func (a *ToolCallAccumulator) Add(index int, id, name, args string) {
	if a.calls == nil {
		a.calls = make(map[int]*types.ToolCall)
	}
	tc, ok := a.calls[index]
	if !ok {
		tc = &types.ToolCall{}
		a.calls[index] = tc
	}
	if tc.ID == "" {
		tc.ID = id
	}
	if tc.Name == "" {
		tc.Name = name
	}
	tc.Arguments += args
}

// Len reports how many distinct calls were seen.
func (a *ToolCallAccumulator) Len() int { return len(a.calls) }

// Calls returns the joined calls ordered by index.
func (a *ToolCallAccumulator) Calls() []types.ToolCall {
	if len(a.calls) == 0 {
		return nil
	}
	idx := make([]int, 0, len(a.calls))
	for i := range a.calls {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	out := make([]types.ToolCall, 0, len(idx))
	for _, i := range idx {
		out = append(out, *a.calls[i])
	}
	return out
}
