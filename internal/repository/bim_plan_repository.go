package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/obra-api/internal/models"
)

const planColumns = `id, proyecto_id, nombre, version, archivo, tipo, subido_por, eliminado, fecha_subida`

// BimPlanRepository stores versioned BIM plan rows.
type BimPlanRepository struct {
	db *sqlx.DB
}

// NewBimPlanRepository constructs the repository.
func NewBimPlanRepository(db *sqlx.DB) *BimPlanRepository {
	return &BimPlanRepository{db: db}
}

// Create inserts a plan version. A repeated (project, name, version) yields ErrDuplicate.
func (r *BimPlanRepository) Create(ctx context.Context, plan *models.BimPlan) error {
	const query = `INSERT INTO planos_bim (proyecto_id, nombre, version, archivo, tipo, subido_por, eliminado)
	VALUES ($1, $2, $3, $4, $5, $6, FALSE) RETURNING id, fecha_subida`
	if err := r.db.QueryRowxContext(ctx, query,
		plan.ProjectID, plan.Name, plan.Version, plan.FileRef, plan.Type, plan.UploaderID,
	).Scan(&plan.ID, &plan.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// FindByID returns a live plan row.
func (r *BimPlanRepository) FindByID(ctx context.Context, id int64) (*models.BimPlan, error) {
	var plan models.BimPlan
	if err := r.db.GetContext(ctx, &plan, `SELECT `+planColumns+` FROM planos_bim WHERE id = $1 AND eliminado = FALSE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find plan: %w", err)
	}
	return &plan, nil
}

// Versions returns every stored version string for a plan name within a project.
func (r *BimPlanRepository) Versions(ctx context.Context, projectID int64, name string) ([]string, error) {
	var versions []string
	if err := r.db.SelectContext(ctx, &versions,
		`SELECT version FROM planos_bim WHERE proyecto_id = $1 AND LOWER(nombre) = LOWER($2) AND eliminado = FALSE`, projectID, name); err != nil {
		return nil, fmt.Errorf("list plan versions: %w", err)
	}
	return versions, nil
}

// ListByProject returns every live plan row of a project.
func (r *BimPlanRepository) ListByProject(ctx context.Context, projectID int64) ([]models.BimPlan, error) {
	var plans []models.BimPlan
	if err := r.db.SelectContext(ctx, &plans,
		`SELECT `+planColumns+` FROM planos_bim WHERE proyecto_id = $1 AND eliminado = FALSE ORDER BY nombre, fecha_subida DESC, id DESC`, projectID); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}
