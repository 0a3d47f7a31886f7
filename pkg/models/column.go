package models

type ColumnType string

const (
	ColumnText        ColumnType = "text"
	ColumnSelect      ColumnType = "select"
	ColumnMultiselect ColumnType = "multiselect"
	ColumnDate        ColumnType = "date"
	ColumnCheckbox    ColumnType = "checkbox"
	ColumnNumber      ColumnType = "number"
	ColumnPerson      ColumnType = "person"
)

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnText, ColumnSelect, ColumnMultiselect, ColumnDate, ColumnCheckbox, ColumnNumber, ColumnPerson:
		return true
	}
	return false
}

// HasOptions reports whether columns of type t draw values from a fixed set.
func (t ColumnType) HasOptions() bool {
	return t == ColumnSelect || t == ColumnMultiselect
}

// Column is a typed field definition shared by every task of a project.
type Column struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Type     ColumnType `json:"type" yaml:"type"`
	Visible  bool       `json:"visible" yaml:"visible"`
	Position int        `json:"position" yaml:"position"`
	Options  []string   `json:"options,omitempty" yaml:"options,omitempty"`
}

// ColumnPatch lists the mutable fields of a column. ID and position never change.
type ColumnPatch struct {
	Name    *string     `json:"name,omitempty"`
	Type    *ColumnType `json:"type,omitempty"`
	Visible *bool       `json:"visible,omitempty"`
	Options []string    `json:"options,omitempty"`
}

// ColumnSchema is the versioned, ordered column list of one project.
type ColumnSchema struct {
	ProjectID string   `json:"project_id"`
	Columns   []Column `json:"columns"`
	Version   int64    `json:"version"`
}

// DefaultColumns returns a fresh copy of the built-in 11-column schema.
func DefaultColumns() []Column {
	return []Column{
		{ID: "expeditionDate", Name: "Date d'expédition", Type: ColumnDate, Visible: true, Position: 0},
		{ID: "arrivalDate", Name: "Date d'arrivée", Type: ColumnDate, Visible: true, Position: 1},
		{ID: "sender", Name: "Expéditeur", Type: ColumnText, Visible: true, Position: 2},
		{ID: "subject", Name: "Objet", Type: ColumnText, Visible: true, Position: 3},
		{ID: "instruction", Name: "Instruction", Type: ColumnText, Visible: true, Position: 4},
		{ID: "orderGiver", Name: "Donneur d'ordre", Type: ColumnText, Visible: true, Position: 5},
		{ID: "deadline", Name: "Date limite", Type: ColumnDate, Visible: true, Position: 6},
		{ID: "rmo", Name: "RMO", Type: ColumnText, Visible: true, Position: 7},
		{ID: "receptionDay", Name: "Jour de réception", Type: ColumnDate, Visible: true, Position: 8},
		{ID: "exitDate", Name: "Date de sortie", Type: ColumnDate, Visible: true, Position: 9},
		{ID: "observation", Name: "Observation", Type: ColumnText, Visible: true, Position: 10},
	}
}

// CloneColumns deep-copies cols so callers can mutate the result freely.
func CloneColumns(cols []Column) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c
		if c.Options != nil {
			out[i].Options = append([]string(nil), c.Options...)
		}
	}
	return out
}
