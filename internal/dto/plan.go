package dto

import (
	"time"

	"github.com/noah-isme/obra-api/internal/models"
)

// UploadPlanRequest holds the multipart form fields sent with a plan file.
type UploadPlanRequest struct {
	ProjectID int64  `form:"proyecto_id" validate:"required,gt=0"`
	Name      string `form:"nombre" validate:"required,max=150"`
	Type      string `form:"tipo" validate:"max=50"`
	Major     bool   `form:"mayor"`
}

// PlanResult wraps a stored plan version with side effect warnings.
type PlanResult struct {
	*models.BimPlan
	SideEffects
}

// PlanLink is a short-lived signed download link.
type PlanLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expira"`
}
