package dto

import "github.com/noah-isme/obra-api/internal/models"

// CreateProjectRequest is the payload for a new project.
type CreateProjectRequest struct {
	Name          string  `json:"nombre" validate:"required,max=150"`
	Description   string  `json:"descripcion" validate:"max=2000"`
	Status        string  `json:"estado" validate:"max=50"`
	StartDate     *string `json:"fecha_inicio"`
	EndDate       *string `json:"fecha_fin"`
	ClientID      *int64  `json:"cliente_id" validate:"omitempty,gt=0"`
	ResponsibleID *int64  `json:"responsable_id" validate:"omitempty,gt=0"`
}

// UpdateProjectRequest is a partial update; nil fields are left untouched.
type UpdateProjectRequest struct {
	Name          *string `json:"nombre" validate:"omitempty,min=1,max=150"`
	Description   *string `json:"descripcion" validate:"omitempty,max=2000"`
	Status        *string `json:"estado" validate:"omitempty,max=50"`
	StartDate     *string `json:"fecha_inicio"`
	EndDate       *string `json:"fecha_fin"`
	ClientID      *int64  `json:"cliente_id" validate:"omitempty,gt=0"`
	ResponsibleID *int64  `json:"responsable_id" validate:"omitempty,gt=0"`
}

// Empty reports whether the request carries no field at all.
func (r UpdateProjectRequest) Empty() bool {
	return r.Name == nil && r.Description == nil && r.Status == nil && r.StartDate == nil &&
		r.EndDate == nil && r.ClientID == nil && r.ResponsibleID == nil
}

// AddMemberRequest assigns a user to a project.
type AddMemberRequest struct {
	UserID     int64  `json:"usuario_id" validate:"required,gt=0"`
	Permission string `json:"permiso"`
	Role       string `json:"rol_proyecto"`
}

// ProjectResult wraps a stored project with side effect warnings.
type ProjectResult struct {
	*models.Project
	Changed bool `json:"-"`
	SideEffects
}

// ProjectDetail is the read model of a single project.
type ProjectDetail struct {
	*models.Project
	Members    []models.ProjectMember   `json:"miembros"`
	Permission models.ProjectPermission `json:"permiso"`
	CanEdit    bool                     `json:"puede_editar"`
}

// MemberResult wraps an assignment with side effect warnings.
type MemberResult struct {
	models.ProjectMember
	SideEffects
}
