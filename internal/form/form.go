// Package form binds typed issue drafts to a set of dynamic, named
// input controls.
package form

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/nhle/mailissue/internal/model"
)

// ErrUnknownControl is returned for a control key the form does not have.
var ErrUnknownControl = errors.New("unknown control")

// Form holds the controls of an issue form. It is not safe for
// concurrent use; callers serialize access.
type Form struct {
	reg      registry
	layout   Layout
	controls map[string]*Control

	// groups holds the checkbox keys of array fields in option order.
	groups map[FieldID][]string
	hidden map[FieldID]bool

	custom []customRow
}

// New creates a form rendering the fields of layout.
func New(layout Layout) *Form {
	f := &Form{
		reg:      newRegistry(),
		layout:   layout,
		controls: make(map[string]*Control),
		groups:   make(map[FieldID][]string),
		hidden:   make(map[FieldID]bool),
	}
	for _, id := range layout {
		b, ok := f.reg[id]
		if !ok {
			continue
		}
		if b.desc.Array {
			f.groups[id] = nil
			continue
		}
		f.controls[string(id)] = &Control{
			Key:            string(id),
			Label:          string(id),
			Kind:           b.kind,
			Desc:           b.desc,
			Disabled:       b.disabled,
			HasEmptyOption: b.hasEmpty,
		}
	}
	return f
}

// GroupKey returns the key of the checkbox for value in an array field.
func GroupKey(id FieldID, value string) string {
	return string(id) + "[]:" + value
}

// Has reports whether the form renders field id.
func (f *Form) Has(id FieldID) bool {
	return slices.Contains(f.layout, id)
}

// Control returns the control with the given key, or nil.
func (f *Form) Control(key string) *Control {
	return f.controls[key]
}

// Controls returns every control in display order, custom fields last.
func (f *Form) Controls() []*Control {
	var out []*Control
	for _, id := range f.layout {
		if keys, ok := f.groups[id]; ok {
			for _, k := range keys {
				out = append(out, f.controls[k])
			}
			continue
		}
		if c, ok := f.controls[string(id)]; ok {
			out = append(out, c)
		}
	}
	for _, row := range f.custom {
		for _, k := range row.keys {
			out = append(out, f.controls[k])
		}
	}
	return out
}

// SetChoices replaces the options of field id. A select keeps its value
// only when it is still offered; a checkbox group is rebuilt unchecked.
func (f *Form) SetChoices(id FieldID, opts []Option) {
	if _, ok := f.groups[id]; ok {
		for _, k := range f.groups[id] {
			delete(f.controls, k)
		}
		b := f.reg[id]
		keys := make([]string, 0, len(opts))
		for _, o := range opts {
			key := GroupKey(id, o.Value)
			f.controls[key] = &Control{
				Key:    key,
				Label:  o.Label,
				Kind:   KindCheckbox,
				Desc:   b.desc,
				Value:  o.Value,
				Hidden: f.hidden[id],
			}
			keys = append(keys, key)
		}
		f.groups[id] = keys
		return
	}

	if c, ok := f.controls[string(id)]; ok {
		c.setOptions(opts)
	}
}

// SetValue assigns the raw value of a non-checkbox control.
func (f *Form) SetValue(key, raw string) error {
	c, err := f.lookup(key)
	if err != nil {
		return err
	}
	if c.Kind == KindCheckbox {
		return fmt.Errorf("control %s is a checkbox", key)
	}
	c.SetValue(raw)
	return nil
}

// SetChecked sets the state of a checkbox.
func (f *Form) SetChecked(key string, checked bool) error {
	c, err := f.lookup(key)
	if err != nil {
		return err
	}
	if c.Kind != KindCheckbox {
		return fmt.Errorf("control %s is not a checkbox", key)
	}
	c.Checked = checked
	return nil
}

// SetDisabled enables or disables a control. Disabled controls are left
// out of requests.
func (f *Form) SetDisabled(key string, disabled bool) error {
	c, err := f.lookup(key)
	if err != nil {
		return err
	}
	c.Disabled = disabled
	return nil
}

// SetInvalid flags a control as failing validation.
func (f *Form) SetInvalid(key string, invalid bool) {
	if c, ok := f.controls[key]; ok {
		c.Invalid = invalid
	}
}

// SetHidden hides every control of field id. Hidden controls stay bound
// and are still collected.
func (f *Form) SetHidden(id FieldID, hidden bool) {
	f.hidden[id] = hidden
	if keys, ok := f.groups[id]; ok {
		for _, k := range keys {
			f.controls[k].Hidden = hidden
		}
		return
	}
	if c, ok := f.controls[string(id)]; ok {
		c.Hidden = hidden
	}
}

func (f *Form) lookup(key string) (*Control, error) {
	c, ok := f.controls[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownControl, key)
	}
	return c, nil
}

// ApplyDraft writes the draft into every control. Checkbox groups check
// exactly the members of the set; selects drop values they do not
// offer. Empty dates leave their control untouched. Applying twice
// yields the same state.
func (f *Form) ApplyDraft(d *model.Draft) {
	f.ApplyFields(d, f.layout...)
	for _, row := range f.custom {
		f.applyCustom(row, d.CustomField(row.def.ID))
	}
}

// ApplyFields writes the listed standard fields of the draft into their
// controls. Fields the form does not render are skipped.
func (f *Form) ApplyFields(d *model.Draft, ids ...FieldID) {
	for _, id := range ids {
		b, ok := f.reg[id]
		if !ok || !f.Has(id) {
			continue
		}

		if b.set != nil {
			set := *b.set(d)
			for _, k := range f.groups[id] {
				c := f.controls[k]
				c.Checked = slices.Contains(set, ParseInt(c.Value))
			}
			continue
		}

		c := f.controls[string(id)]
		switch {
		case b.str != nil:
			v := *b.str(d)
			if c.Kind == KindDate && v == "" {
				continue
			}
			c.SetValue(v)
		case b.num != nil:
			v := *b.num(d)
			if v == nil {
				c.SetValue("")
			} else {
				c.SetValue(strconv.Itoa(*v))
			}
		}
	}
}

// ReadControl parses one control into the draft. A checkbox of an array
// field adds or removes its own value from the set.
func (f *Form) ReadControl(key string, d *model.Draft) error {
	c, err := f.lookup(key)
	if err != nil {
		return err
	}

	if c.Desc.Field == FieldCustomFields {
		row, ok := f.customRow(c.Desc.CustomFieldID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownControl, key)
		}
		f.readCustom(row, d)
		return nil
	}

	b, ok := f.reg[c.Desc.Field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, key)
	}

	switch {
	case b.set != nil:
		set := b.set(d)
		v := ParseInt(c.Value)
		has := slices.Contains(*set, v)
		switch {
		case c.Checked && !has:
			*set = append(*set, v)
		case !c.Checked && has:
			*set = slices.DeleteFunc(*set, func(x int) bool { return x == v })
		}
	case b.num != nil:
		sc := c.parse()
		if sc.absent {
			*b.num(d) = nil
		} else {
			*b.num(d) = model.IntPtr(sc.num)
		}
	case b.str != nil:
		*b.str(d) = c.parse().str
	}
	return nil
}

// ReadField re-reads every control of field id into the draft. For an
// array field the set becomes exactly the checked values.
func (f *Form) ReadField(id FieldID, d *model.Draft) {
	b, ok := f.reg[id]
	if !ok || !f.Has(id) {
		return
	}
	if b.set != nil {
		*b.set(d) = f.checkedInts(f.groups[id], false)
		return
	}
	if _, ok := f.controls[string(id)]; ok {
		_ = f.ReadControl(string(id), d)
	}
}

// CollectRequestParams builds the outbound request from the enabled
// controls. Absent values are omitted; custom fields are collected per
// row by format.
func (f *Form) CollectRequestParams() model.IssueParams {
	var p model.IssueParams

	for _, id := range f.layout {
		b, ok := f.reg[id]
		if !ok {
			continue
		}

		if b.set != nil {
			keys := f.groups[id]
			if !slices.ContainsFunc(keys, func(k string) bool { return !f.controls[k].Disabled }) {
				continue
			}
			*b.outSet(&p) = f.checkedInts(keys, true)
			continue
		}

		c := f.controls[string(id)]
		if c.Disabled {
			continue
		}
		sc := c.parse()
		if sc.absent {
			continue
		}
		switch {
		case b.outStr != nil:
			v := sc.str
			*b.outStr(&p) = &v
		case b.outNum != nil:
			v := sc.num
			*b.outNum(&p) = &v
		}
	}

	for _, row := range f.custom {
		if v, ok := f.collectCustom(row); ok {
			p.CustomFields = append(p.CustomFields, v)
		}
	}

	return p
}

// checkedInts returns the distinct values of the checked boxes among
// keys, in box order. enabledOnly skips disabled boxes.
func (f *Form) checkedInts(keys []string, enabledOnly bool) []int {
	values := []int{}
	for _, k := range keys {
		c := f.controls[k]
		if !c.Checked || (enabledOnly && c.Disabled) {
			continue
		}
		v := ParseInt(c.Value)
		if !slices.Contains(values, v) {
			values = append(values, v)
		}
	}
	return values
}

// ApplyVisibility hides the fields of every visibility group for which
// visible returns false.
func (f *Form) ApplyVisibility(visible func(group string) bool) {
	for group, ids := range VisibilityGroups {
		for _, id := range ids {
			f.SetHidden(id, !visible(group))
		}
	}
}
