package form

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/nhle/mailissue/internal/model"
)

// customRow is the rendered form of one custom field definition.
type customRow struct {
	def      model.CustomFieldDefinition
	multiple bool
	keys     []string
}

// CustomKey returns the control key of a single-valued custom field.
func CustomKey(id int) string {
	return fmt.Sprintf("%s[]:%d", FieldCustomFields, id)
}

// CustomOptionKey returns the key of one checkbox of a multi-valued
// custom field.
func CustomOptionKey(id int, value string) string {
	return fmt.Sprintf("%s[]:%d:%s", FieldCustomFields, id, value)
}

// RebuildCustomFields discards every custom field control and renders
// defs in order, each initialized from its current or default value.
func (f *Form) RebuildCustomFields(defs []model.CustomFieldDefinition) {
	for _, row := range f.custom {
		for _, k := range row.keys {
			delete(f.controls, k)
		}
	}
	f.custom = f.custom[:0]

	for _, def := range defs {
		if _, dup := f.customRow(def.ID); dup {
			continue
		}
		f.custom = append(f.custom, f.renderCustom(def))
	}
}

// CustomFieldIDs returns the ids of the rendered custom fields.
func (f *Form) CustomFieldIDs() []int {
	ids := make([]int, 0, len(f.custom))
	for _, row := range f.custom {
		ids = append(ids, row.def.ID)
	}
	return ids
}

// CustomFieldKeys returns the control keys of custom field id.
func (f *Form) CustomFieldKeys(id int) []string {
	row, ok := f.customRow(id)
	if !ok {
		return nil
	}
	return slices.Clone(row.keys)
}

func (f *Form) renderCustom(def model.CustomFieldDefinition) customRow {
	desc := Descriptor{Field: FieldCustomFields, Type: TypeString, CustomFieldID: def.ID}
	label := def.Name
	if label == "" {
		label = fmt.Sprintf("custom field %d", def.ID)
	}

	if def.Multiple {
		desc.Array = true
		row := customRow{def: def, multiple: true}
		current := def.InitialValues()
		if def.Current == nil && def.DefaultValue != "" {
			current = []string{def.DefaultValue}
		}

		opts := def.PossibleValues
		if len(opts) == 0 {
			for _, v := range current {
				opts = append(opts, model.PossibleValue{Value: v})
			}
		}
		for _, o := range opts {
			key := CustomOptionKey(def.ID, o.Value)
			f.controls[key] = &Control{
				Key:     key,
				Label:   label + ": " + o.DisplayLabel(),
				Kind:    KindCheckbox,
				Desc:    desc,
				Value:   o.Value,
				Checked: slices.Contains(current, o.Value),
			}
			row.keys = append(row.keys, key)
		}
		return row
	}

	key := CustomKey(def.ID)
	c := &Control{Key: key, Label: label, Desc: desc}
	switch def.Format {
	case model.FormatDate:
		c.Kind = KindDate
	case model.FormatList:
		c.Kind = KindSelect
		c.HasEmptyOption = true
		for _, o := range def.PossibleValues {
			c.Options = append(c.Options, Option{Value: o.Value, Label: o.DisplayLabel()})
		}
	case model.FormatInt:
		c.Kind = KindNumber
		c.Desc.Type = TypeInteger
	case model.FormatBool:
		c.Kind = KindSelect
		c.HasEmptyOption = true
		c.Options = []Option{{Value: "1", Label: "Yes"}, {Value: "0", Label: "No"}}
	case model.FormatText:
		c.Kind = KindTextarea
	default:
		c.Kind = KindText
	}
	c.SetValue(def.InitialValue())
	f.controls[key] = c
	return customRow{def: def, keys: []string{key}}
}

func (f *Form) customRow(id int) (customRow, bool) {
	for _, row := range f.custom {
		if row.def.ID == id {
			return row, true
		}
	}
	return customRow{}, false
}

// applyCustom writes a draft entry into its row. A missing entry leaves
// the row as rendered.
func (f *Form) applyCustom(row customRow, v *model.CustomFieldValue) {
	if v == nil {
		return
	}
	if row.multiple {
		for _, k := range row.keys {
			c := f.controls[k]
			c.Checked = slices.Contains(v.Values, c.Value)
		}
		return
	}
	f.controls[row.keys[0]].SetValue(v.Value)
}

func (f *Form) readCustom(row customRow, d *model.Draft) {
	if row.multiple {
		d.SetCustomField(model.CustomFieldValue{
			ID:       row.def.ID,
			Name:     row.def.Name,
			Multiple: true,
			Values:   f.checkedStrings(row.keys, false),
		})
		return
	}

	v, ok := scalarString(f.controls[row.keys[0]])
	if !ok {
		d.RemoveCustomField(row.def.ID)
		return
	}
	d.SetCustomField(model.CustomFieldValue{ID: row.def.ID, Name: row.def.Name, Value: v})
}

// collectCustom returns the request entry of a row. A multi-valued row
// is always sent so that unchecking every box clears the field.
func (f *Form) collectCustom(row customRow) (model.CustomFieldValue, bool) {
	entry := model.CustomFieldValue{ID: row.def.ID}
	if row.multiple {
		entry.Multiple = true
		entry.Values = f.checkedStrings(row.keys, true)
		return entry, true
	}

	c := f.controls[row.keys[0]]
	if c.Disabled {
		return entry, false
	}
	v, ok := scalarString(c)
	if !ok {
		return entry, false
	}
	entry.Value = v
	return entry, true
}

func (f *Form) checkedStrings(keys []string, enabledOnly bool) []string {
	values := []string{}
	for _, k := range keys {
		c := f.controls[k]
		if !c.Checked || (enabledOnly && c.Disabled) || slices.Contains(values, c.Value) {
			continue
		}
		values = append(values, c.Value)
	}
	return values
}

// scalarString renders the parsed value of a custom field control as
// sent on the wire.
func scalarString(c *Control) (string, bool) {
	sc := c.parse()
	if sc.absent {
		return "", false
	}
	if c.Desc.Type == TypeInteger {
		return strconv.Itoa(sc.num), true
	}
	return sc.str, true
}
