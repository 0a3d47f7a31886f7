package models

import "time"

// TaskData maps column ids to cell values. Keys that no column declares are
// kept as-is through every read/modify/write so that schema changes never
// drop data.
type TaskData map[string]interface{}

// Clone returns a shallow copy of d.
func (d TaskData) Clone() TaskData {
	out := make(TaskData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Task is one row of project data.
type Task struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	Data      TaskData  `json:"data" db:"data"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BlankTaskData builds a data map holding an empty value for every visible column.
func BlankTaskData(cols []Column) TaskData {
	d := make(TaskData, len(cols))
	for _, c := range cols {
		if c.Visible {
			d[c.ID] = ""
		}
	}
	return d
}
