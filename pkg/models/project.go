package models

import "time"

// DefaultProjectStatus is the status assigned to freshly created projects.
const DefaultProjectStatus = "En cours"

// Project is the top-level unit of work. The owner is implicit and is not
// stored in project_members.
type Project struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"nom" db:"nom"`
	Description string     `json:"description,omitempty" db:"description"`
	Status      string     `json:"statut" db:"statut"`
	StartDate   *time.Time `json:"date_debut,omitempty" db:"date_debut"`
	EndDate     *time.Time `json:"date_fin,omitempty" db:"date_fin"`
	Budget      *float64   `json:"budget,omitempty" db:"budget"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// ProjectPatch carries the optional fields of a project update. Nil means
// "leave unchanged".
type ProjectPatch struct {
	Name        *string    `json:"nom,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"statut,omitempty"`
	StartDate   *time.Time `json:"date_debut,omitempty"`
	EndDate     *time.Time `json:"date_fin,omitempty"`
	Budget      *float64   `json:"budget,omitempty"`
}

// Apply merges the patch into p.
func (patch ProjectPatch) Apply(p *Project) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.StartDate != nil {
		p.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		p.EndDate = patch.EndDate
	}
	if patch.Budget != nil {
		p.Budget = patch.Budget
	}
}
