package form

import (
	"slices"
	"strconv"
	"strings"
)

// Kind is the widget a control renders as.
type Kind int

const (
	KindText Kind = iota
	KindTextarea
	KindNumber
	KindDate
	KindSelect
	KindCheckbox
)

func (k Kind) String() string {
	switch k {
	case KindTextarea:
		return "textarea"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindSelect:
		return "select"
	case KindCheckbox:
		return "checkbox"
	default:
		return "text"
	}
}

// Option is one choice of a select or one box of a checkbox group.
type Option struct {
	Value string
	Label string
}

// Control is the state of one rendered input. For checkboxes Value is
// the option value and Checked the state; for other kinds Value is the
// raw text.
type Control struct {
	Key   string
	Label string
	Kind  Kind
	Desc  Descriptor

	Value    string
	Checked  bool
	Disabled bool
	Hidden   bool
	Invalid  bool

	// Options are the choices of a select.
	Options []Option

	// HasEmptyOption adds an explicit "" choice to a select, making an
	// empty selection a value of its own rather than an absence.
	HasEmptyOption bool
}

// SetValue assigns a raw value. A select keeps the value only when it is
// one of its options, otherwise it ends up with no selection.
func (c *Control) SetValue(v string) {
	if c.Kind == KindSelect && !c.hasOption(v) {
		v = ""
	}
	c.Value = v
}

func (c *Control) hasOption(v string) bool {
	if v == "" {
		return true
	}
	return slices.ContainsFunc(c.Options, func(o Option) bool { return o.Value == v })
}

// setOptions replaces the choices, keeping the current value only if it
// is still offered.
func (c *Control) setOptions(opts []Option) {
	old := c.Value
	c.Options = opts
	c.Value = ""
	if old != "" && c.hasOption(old) {
		c.Value = old
	}
}

// scalar is a parsed single value. Absent values are omitted from
// requests and stored as nil in the draft.
type scalar struct {
	str     string
	num     int
	boolean bool
	absent  bool
}

// parse reads the control according to its value type. It never fails:
// malformed integers become 0 and an empty integer input, or an empty
// select without an empty option, is absent.
func (c *Control) parse() scalar {
	if c.Value == "" && c.Kind != KindCheckbox {
		emptyInteger := c.Kind != KindSelect && c.Desc.Type == TypeInteger
		noEmptyChoice := c.Kind == KindSelect && !c.HasEmptyOption
		if emptyInteger || noEmptyChoice {
			return scalar{absent: true}
		}
	}

	switch {
	case c.Kind == KindCheckbox && !c.Desc.Array:
		return scalar{boolean: c.Checked}
	case c.Desc.Type == TypeInteger:
		return scalar{num: ParseInt(c.Value)}
	default:
		return scalar{str: c.Value}
	}
}

// ParseInt parses a leading decimal integer, ignoring trailing text.
// It returns 0 when there is none.
func ParseInt(s string) int {
	s = strings.TrimLeft(s, " \t\n")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
