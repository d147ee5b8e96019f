package dto

import "github.com/noah-isme/obra-api/internal/models"

// CreateMilestoneRequest is the payload for a new milestone.
type CreateMilestoneRequest struct {
	ProjectID     int64   `json:"proyecto_id" validate:"required,gt=0"`
	Name          string  `json:"nombre" validate:"required,max=150"`
	Description   string  `json:"descripcion" validate:"max=2000"`
	DueDate       *string `json:"fecha_limite"`
	ResponsibleID *int64  `json:"responsable_id" validate:"omitempty,gt=0"`
}

// MilestoneResult wraps a stored milestone with side effect warnings.
type MilestoneResult struct {
	*models.Milestone
	SideEffects
}
