package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/obra-api/internal/models"
)

// MilestoneRepository stores project milestones.
type MilestoneRepository struct {
	db *sqlx.DB
}

// NewMilestoneRepository constructs the repository.
func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// Create inserts a milestone.
func (r *MilestoneRepository) Create(ctx context.Context, m *models.Milestone) error {
	const query = `INSERT INTO hitos (proyecto_id, nombre, descripcion, fecha_limite, responsable_id, creado_por, eliminado)
	VALUES ($1, $2, $3, $4, $5, $6, FALSE) RETURNING id, fecha_creacion`
	if err := r.db.QueryRowxContext(ctx, query,
		m.ProjectID, m.Name, m.Description, m.DueDate, m.ResponsibleID, m.CreatorID,
	).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("create milestone: %w", err)
	}
	return nil
}

// ListByProject returns the live milestones of a project ordered by due date.
func (r *MilestoneRepository) ListByProject(ctx context.Context, projectID int64) ([]models.Milestone, error) {
	const query = `SELECT id, proyecto_id, nombre, descripcion, fecha_limite, responsable_id, creado_por, eliminado, fecha_creacion
	FROM hitos WHERE proyecto_id = $1 AND eliminado = FALSE ORDER BY fecha_limite NULLS LAST, id`
	var items []models.Milestone
	if err := r.db.SelectContext(ctx, &items, query, projectID); err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return items, nil
}
