// Package validate checks cross-field constraints of an issue draft and
// signals whether it may be submitted.
package validate

import (
	"strconv"
	"strings"
	"sync"

	"github.com/nhle/mailissue/internal/form"
)

// RowInput is the target of one relation row.
type RowInput struct {
	Key    string
	Target int
}

// Input is the state checked by a validation pass. SelfID is zero for
// an issue that does not exist yet; ParentRaw is the parent control text.
type Input struct {
	SelfID    int
	ParentRaw string
	Rows      []RowInput
}

// Result lists what failed in one pass.
type Result struct {
	ParentInvalid bool
	InvalidRows   []string
}

// Valid reports whether nothing failed.
func (r Result) Valid() bool {
	return !r.ParentInvalid && len(r.InvalidRows) == 0
}

// Check runs one validation pass. The unavailable targets are the issue
// itself and its parent, computed fresh from in.
func Check(in Input) Result {
	var res Result

	parent := strings.TrimSpace(in.ParentRaw)
	if in.SelfID != 0 && parent != "" {
		if id, err := strconv.Atoi(parent); err == nil && id == in.SelfID {
			res.ParentInvalid = true
		}
	}

	unavailable := map[int]bool{}
	if in.SelfID != 0 {
		unavailable[in.SelfID] = true
	}
	if id := form.ParseInt(in.ParentRaw); id != 0 {
		unavailable[id] = true
	}

	for _, row := range in.Rows {
		if row.Target != 0 && unavailable[row.Target] {
			res.InvalidRows = append(res.InvalidRows, row.Key)
		}
	}
	return res
}

// Gate runs validation passes and notifies listeners of the outcome.
// Exactly one of the valid or invalid listener sets is called per pass.
type Gate struct {
	mu        sync.Mutex
	onValid   []func()
	onInvalid []func(Result)
	last      Result
	ran       bool
}

// NewGate returns a gate with no listeners.
func NewGate() *Gate {
	return &Gate{}
}

// OnValid registers fn to be called after every passing run.
func (g *Gate) OnValid(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onValid = append(g.onValid, fn)
}

// OnInvalid registers fn to be called after every failing run.
func (g *Gate) OnInvalid(fn func(Result)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onInvalid = append(g.onInvalid, fn)
}

// Run checks in, records the result and notifies listeners. Listeners
// are called without the gate's lock held.
func (g *Gate) Run(in Input) Result {
	res := Check(in)

	g.mu.Lock()
	g.last = res
	g.ran = true
	valid := append([]func(){}, g.onValid...)
	invalid := append([]func(Result){}, g.onInvalid...)
	g.mu.Unlock()

	if res.Valid() {
		for _, fn := range valid {
			fn()
		}
	} else {
		for _, fn := range invalid {
			fn(res)
		}
	}
	return res
}

// Last returns the result of the latest run. A gate that never ran is
// valid.
func (g *Gate) Last() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ran {
		return Result{}
	}
	return g.last
}
