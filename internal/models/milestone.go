package models

import "time"

// Milestone marks a project checkpoint.
type Milestone struct {
	ID            int64      `db:"id" json:"id"`
	ProjectID     int64      `db:"proyecto_id" json:"proyecto_id"`
	Name          string     `db:"nombre" json:"nombre"`
	Description   string     `db:"descripcion" json:"descripcion"`
	DueDate       *time.Time `db:"fecha_limite" json:"fecha_limite,omitempty"`
	ResponsibleID *int64     `db:"responsable_id" json:"responsable_id,omitempty"`
	CreatorID     int64      `db:"creado_por" json:"creado_por"`
	Deleted       bool       `db:"eliminado" json:"-"`
	CreatedAt     time.Time  `db:"fecha_creacion" json:"fecha_creacion"`
}
