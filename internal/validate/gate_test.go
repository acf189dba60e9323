package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		wantParent bool
		wantRows   []string
	}{
		{
			name: "new issue",
			in:   Input{ParentRaw: "0", Rows: []RowInput{{Key: "a", Target: 12}}},
		},
		{
			name:       "self parent",
			in:         Input{SelfID: 12, ParentRaw: "12"},
			wantParent: true,
		},
		{
			name:       "self parent with spaces",
			in:         Input{SelfID: 12, ParentRaw: " 12 "},
			wantParent: true,
		},
		{
			name: "other parent",
			in:   Input{SelfID: 12, ParentRaw: "13"},
		},
		{
			name: "empty parent",
			in:   Input{SelfID: 12},
		},
		{
			name:     "relation to self",
			in:       Input{SelfID: 12, Rows: []RowInput{{Key: "a", Target: 12}, {Key: "b", Target: 14}}},
			wantRows: []string{"a"},
		},
		{
			name:     "relation to parent",
			in:       Input{SelfID: 12, ParentRaw: "7", Rows: []RowInput{{Key: "a", Target: 7}, {Key: "b"}}},
			wantRows: []string{"a"},
		},
		{
			name:     "relation to parent of a new issue",
			in:       Input{ParentRaw: "7", Rows: []RowInput{{Key: "a", Target: 7}}},
			wantRows: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(tt.in)
			assert.Equal(t, tt.wantParent, res.ParentInvalid)
			assert.Equal(t, tt.wantRows, res.InvalidRows)
			assert.Equal(t, !tt.wantParent && len(tt.wantRows) == 0, res.Valid())
		})
	}
}

func TestGateSignals(t *testing.T) {
	g := NewGate()
	var valid, invalid int
	var lastInvalid Result
	g.OnValid(func() { valid++ })
	g.OnInvalid(func(r Result) {
		invalid++
		lastInvalid = r
	})

	assert.True(t, g.Last().Valid())

	g.Run(Input{SelfID: 12, ParentRaw: "12"})
	assert.Equal(t, 0, valid)
	assert.Equal(t, 1, invalid)
	assert.True(t, lastInvalid.ParentInvalid)
	assert.False(t, g.Last().Valid())

	// The unavailable set does not carry over between runs.
	g.Run(Input{SelfID: 12, ParentRaw: "13", Rows: []RowInput{{Key: "a", Target: 7}}})
	assert.Equal(t, 1, valid)
	assert.Equal(t, 1, invalid)
	assert.True(t, g.Last().Valid())
}
