package model

import (
	"encoding/json"
	"fmt"
)

// Custom field formats that change how a field is rendered and collected.
const (
	FormatString = "string"
	FormatText   = "text"
	FormatInt    = "int"
	FormatFloat  = "float"
	FormatDate   = "date"
	FormatList   = "list"
	FormatBool   = "bool"
)

// PossibleValue is one option of a list-format custom field.
type PossibleValue struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// DisplayLabel returns the label, falling back to the value.
func (p PossibleValue) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Value
}

// CustomFieldDefinition describes a custom field as configured or as
// returned by /custom_fields.json. Current is the value carried by an
// existing issue, nil when the definition has none.
type CustomFieldDefinition struct {
	ID             int               `json:"id"`
	Name           string            `json:"name"`
	CustomizedType string            `json:"customized_type,omitempty"`
	Format         string            `json:"field_format"`
	Multiple       bool              `json:"multiple"`
	DefaultValue   string            `json:"default_value,omitempty"`
	PossibleValues []PossibleValue   `json:"possible_values,omitempty"`
	Current        *CustomFieldValue `json:"-"`
}

// FormatTag returns the format used to pick the extraction rule,
// e.g. "list-multiple" for multi-valued lists.
func (c CustomFieldDefinition) FormatTag() string {
	if c.Multiple {
		return c.Format + "-multiple"
	}
	return c.Format
}

// InitialValue returns the current value when present, else the default.
func (c CustomFieldDefinition) InitialValue() string {
	if c.Current != nil {
		return c.Current.Value
	}
	return c.DefaultValue
}

// InitialValues returns the current multi-value set, if any.
func (c CustomFieldDefinition) InitialValues() []string {
	if c.Current != nil {
		return c.Current.Values
	}
	return nil
}

// DefinitionsFromIssue turns the custom field values of a fetched issue
// into definitions carrying those values.
func DefinitionsFromIssue(values []CustomFieldValue) []CustomFieldDefinition {
	defs := make([]CustomFieldDefinition, 0, len(values))
	for _, v := range values {
		current := v
		defs = append(defs, CustomFieldDefinition{
			ID:       v.ID,
			Name:     v.Name,
			Multiple: v.Multiple,
			Current:  &current,
		})
	}
	return defs
}

// CustomFieldValue is one {id, value} entry of an issue. Values is used
// when Multiple is set, Value otherwise.
type CustomFieldValue struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name,omitempty"`
	Multiple bool     `yaml:"multiple,omitempty"`
	Value    string   `yaml:"value,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

type customFieldValueJSON struct {
	ID       int             `json:"id"`
	Name     string          `json:"name,omitempty"`
	Multiple bool            `json:"multiple,omitempty"`
	Value    json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as a string or, for multi-valued
// fields, as an array of strings.
func (c CustomFieldValue) MarshalJSON() ([]byte, error) {
	var value any = c.Value
	if c.Multiple {
		values := c.Values
		if values == nil {
			values = []string{}
		}
		value = values
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(customFieldValueJSON{ID: c.ID, Value: raw})
}

// UnmarshalJSON accepts a string, an array of strings or null.
func (c *CustomFieldValue) UnmarshalJSON(data []byte) error {
	var aux customFieldValueJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = CustomFieldValue{ID: aux.ID, Name: aux.Name, Multiple: aux.Multiple}

	if len(aux.Value) == 0 || string(aux.Value) == "null" {
		return nil
	}
	switch aux.Value[0] {
	case '[':
		c.Multiple = true
		if err := json.Unmarshal(aux.Value, &c.Values); err != nil {
			return fmt.Errorf("custom field %d values: %w", aux.ID, err)
		}
	case '"':
		if err := json.Unmarshal(aux.Value, &c.Value); err != nil {
			return fmt.Errorf("custom field %d value: %w", aux.ID, err)
		}
	default:
		c.Value = string(aux.Value)
	}
	return nil
}
