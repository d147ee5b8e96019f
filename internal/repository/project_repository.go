package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/obra-api/internal/models"
)

const projectColumns = `p.id, p.nombre, p.descripcion, p.estado, p.fecha_inicio, p.fecha_fin, p.cliente_id, p.responsable_id, p.eliminado, p.fecha_creacion`

// ProjectRepository manages projects and their user assignments.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs a new repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindByID returns a non-deleted project.
func (r *ProjectRepository) FindByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM proyectos p WHERE p.id = $1 AND p.eliminado = FALSE`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &project, nil
}

// List returns the projects visible to filter.UserID, or every project when filter.All is set.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	conditions := []string{"p.eliminado = FALSE"}
	args := make([]interface{}, 0, 2)
	if !filter.All {
		args = append(args, filter.UserID)
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf(`(p.responsable_id = $%d OR p.cliente_id = $%d OR EXISTS (
			SELECT 1 FROM proyecto_usuarios pu WHERE pu.proyecto_id = p.id AND pu.usuario_id = $%d))`, idx, idx, idx))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(p.nombre) LIKE $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	listQuery := fmt.Sprintf(`SELECT %s FROM proyectos p%s ORDER BY p.fecha_creacion DESC, p.id DESC LIMIT %d OFFSET %d`,
		projectColumns, where, filter.Page.PageSize, filter.Page.Offset())
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM proyectos p"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}
	return projects, total, nil
}

// Create inserts the project and its initial assignments in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project, members []models.ProjectMember) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create project: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO proyectos (nombre, descripcion, estado, fecha_inicio, fecha_fin, cliente_id, responsable_id, eliminado)
	VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE) RETURNING id, fecha_creacion`
	if err = tx.QueryRowxContext(ctx, insert,
		project.Name, project.Description, project.Status, project.StartDate, project.EndDate, project.ClientID, project.ResponsibleID,
	).Scan(&project.ID, &project.CreatedAt); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	for i := range members {
		members[i].ProjectID = project.ID
		if err = upsertMember(ctx, tx, members[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create project: %w", err)
	}
	return nil
}

// Update writes the editable fields and refreshes the given assignments atomically.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project, members []models.ProjectMember) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update project: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE proyectos SET nombre = $2, descripcion = $3, estado = $4, fecha_inicio = $5, fecha_fin = $6, cliente_id = $7, responsable_id = $8
	WHERE id = $1 AND eliminado = FALSE`
	res, err := tx.ExecContext(ctx, update,
		project.ID, project.Name, project.Description, project.Status, project.StartDate, project.EndDate, project.ClientID, project.ResponsibleID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update project rows: %w", err)
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	for _, member := range members {
		if err = upsertMember(ctx, tx, member); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update project: %w", err)
	}
	return nil
}

// UpsertMember inserts or refreshes a single assignment.
func (r *ProjectRepository) UpsertMember(ctx context.Context, member models.ProjectMember) error {
	return upsertMember(ctx, r.db, member)
}

func upsertMember(ctx context.Context, exec sqlx.ExecerContext, member models.ProjectMember) error {
	const query = `INSERT INTO proyecto_usuarios (proyecto_id, usuario_id, permiso, rol_proyecto)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (proyecto_id, usuario_id) DO UPDATE SET permiso = EXCLUDED.permiso, rol_proyecto = EXCLUDED.rol_proyecto`
	if _, err := exec.ExecContext(ctx, query, member.ProjectID, member.UserID, member.Permission, member.Role); err != nil {
		return fmt.Errorf("upsert project member: %w", err)
	}
	return nil
}

// Membership returns the caller's assignment row. The boolean is false when no row exists.
func (r *ProjectRepository) Membership(ctx context.Context, projectID, userID int64) (*models.ProjectMember, bool, error) {
	const query = `SELECT proyecto_id, usuario_id, permiso, rol_proyecto FROM proyecto_usuarios WHERE proyecto_id = $1 AND usuario_id = $2`
	var member models.ProjectMember
	if err := r.db.GetContext(ctx, &member, query, projectID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get project membership: %w", err)
	}
	return &member, true, nil
}

// Members lists the assignment rows of a project.
func (r *ProjectRepository) Members(ctx context.Context, projectID int64) ([]models.ProjectMember, error) {
	const query = `SELECT proyecto_id, usuario_id, permiso, rol_proyecto FROM proyecto_usuarios WHERE proyecto_id = $1 ORDER BY usuario_id`
	var members []models.ProjectMember
	if err := r.db.SelectContext(ctx, &members, query, projectID); err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	return members, nil
}

// MemberIDs returns the distinct users associated with a project: assignments, responsible and client.
func (r *ProjectRepository) MemberIDs(ctx context.Context, projectID int64) ([]int64, error) {
	const query = `SELECT usuario_id FROM proyecto_usuarios WHERE proyecto_id = $1
	UNION SELECT responsable_id FROM proyectos WHERE id = $1 AND responsable_id IS NOT NULL
	UNION SELECT cliente_id FROM proyectos WHERE id = $1 AND cliente_id IS NOT NULL
	ORDER BY 1`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, projectID); err != nil {
		return nil, fmt.Errorf("list project member ids: %w", err)
	}
	return ids, nil
}
