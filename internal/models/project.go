package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ProjectPermission is the per-user permission carried by a project assignment.
type ProjectPermission string

const (
	PermissionNone ProjectPermission = ""
	PermissionView ProjectPermission = "ver"
	PermissionEdit ProjectPermission = "editar"
)

// ParseProjectPermission accepts Spanish and English spellings in any case.
func ParseProjectPermission(raw string) (ProjectPermission, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "editar", "edit":
		return PermissionEdit, nil
	case "ver", "view", "lectura", "read":
		return PermissionView, nil
	case "":
		return PermissionNone, nil
	}
	return "", fmt.Errorf("unknown project permission %q", raw)
}

// Scan implements sql.Scanner; NULL means no assignment permission.
func (p *ProjectPermission) Scan(src interface{}) error {
	if src == nil {
		*p = PermissionNone
		return nil
	}
	raw, err := scanText(src)
	if err != nil {
		return fmt.Errorf("scan project permission: %w", err)
	}
	perm, err := ParseProjectPermission(raw)
	if err != nil {
		return err
	}
	*p = perm
	return nil
}

// Value implements driver.Valuer.
func (p ProjectPermission) Value() (driver.Value, error) {
	return string(p), nil
}

// ProjectRole tags why a user is attached to a project.
type ProjectRole string

const (
	ProjectRoleClient      ProjectRole = "cliente"
	ProjectRoleResponsible ProjectRole = "responsable"
	ProjectRoleInvited     ProjectRole = "invitado"
)

// ParseProjectRole accepts the three tags in any case.
func ParseProjectRole(raw string) (ProjectRole, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cliente", "client":
		return ProjectRoleClient, nil
	case "responsable", "responsible":
		return ProjectRoleResponsible, nil
	case "invitado", "invited", "":
		return ProjectRoleInvited, nil
	}
	return "", fmt.Errorf("unknown project role %q", raw)
}

// Scan implements sql.Scanner.
func (r *ProjectRole) Scan(src interface{}) error {
	if src == nil {
		*r = ProjectRoleInvited
		return nil
	}
	raw, err := scanText(src)
	if err != nil {
		return fmt.Errorf("scan project role: %w", err)
	}
	role, err := ParseProjectRole(raw)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Value implements driver.Valuer.
func (r ProjectRole) Value() (driver.Value, error) {
	return string(r), nil
}

// Project is a construction project.
type Project struct {
	ID            int64      `db:"id" json:"id"`
	Name          string     `db:"nombre" json:"nombre"`
	Description   string     `db:"descripcion" json:"descripcion"`
	Status        string     `db:"estado" json:"estado"`
	StartDate     *time.Time `db:"fecha_inicio" json:"fecha_inicio,omitempty"`
	EndDate       *time.Time `db:"fecha_fin" json:"fecha_fin,omitempty"`
	ClientID      *int64     `db:"cliente_id" json:"cliente_id,omitempty"`
	ResponsibleID *int64     `db:"responsable_id" json:"responsable_id,omitempty"`
	Deleted       bool       `db:"eliminado" json:"-"`
	CreatedAt     time.Time  `db:"fecha_creacion" json:"fecha_creacion"`
}

// ProjectMember is a row of the project/user assignment relation.
type ProjectMember struct {
	ProjectID  int64             `db:"proyecto_id" json:"proyecto_id"`
	UserID     int64             `db:"usuario_id" json:"usuario_id"`
	Permission ProjectPermission `db:"permiso" json:"permiso"`
	Role       ProjectRole       `db:"rol_proyecto" json:"rol_proyecto"`
}

// ProjectFilter constrains project listings.
type ProjectFilter struct {
	UserID int64
	All    bool
	Search string
	Page   Pagination
}
