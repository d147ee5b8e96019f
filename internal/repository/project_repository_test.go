package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/models"
)

func TestMembership(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery("FROM proyecto_usuarios WHERE proyecto_id = \\$1 AND usuario_id = \\$2").
		WithArgs(int64(1), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"proyecto_id", "usuario_id", "permiso", "rol_proyecto"}).AddRow(1, 7, "Edit", nil))
	mock.ExpectQuery("FROM proyecto_usuarios WHERE proyecto_id = \\$1 AND usuario_id = \\$2").
		WithArgs(int64(1), int64(8)).
		WillReturnError(sql.ErrNoRows)

	member, ok, err := repo.Membership(context.Background(), 1, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.PermissionEdit, member.Permission)
	assert.Equal(t, models.ProjectRoleInvited, member.Role)

	_, ok, err = repo.Membership(context.Background(), 1, 8)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberIDsUnionsOwners(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectQuery("UNION SELECT responsable_id FROM proyectos").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"usuario_id"}).AddRow(10).AddRow(20).AddRow(30))

	ids, err := repo.MemberIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProjectWithAssignments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)
	responsible := int64(10)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO proyectos").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fecha_creacion"}).AddRow(4, time.Now()))
	mock.ExpectExec("INSERT INTO proyecto_usuarios").
		WithArgs(int64(4), int64(10), "editar", "responsable").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	project := &models.Project{Name: "Puente", Status: "activo", ResponsibleID: &responsible}
	err := repo.Create(context.Background(), project, []models.ProjectMember{{UserID: 10, Permission: models.PermissionEdit, Role: models.ProjectRoleResponsible}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), project.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingProjectRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE proyectos SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.Project{ID: 9, Name: "X"}, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjectsScopesToUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	cols := []string{"id", "nombre", "descripcion", "estado", "fecha_inicio", "fecha_fin", "cliente_id", "responsable_id", "eliminado", "fecha_creacion"}
	mock.ExpectQuery("(?s)FROM proyectos p WHERE p.eliminado = FALSE AND \\(p.responsable_id = \\$1.*LOWER\\(p.nombre\\) LIKE \\$2.*LIMIT 20 OFFSET 20").
		WithArgs(int64(10), "%norte%").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "Edificio Norte", "", "activo", nil, nil, nil, 10, false, time.Now()))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM proyectos p").
		WithArgs(int64(10), "%norte%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	projects, total, err := repo.List(context.Background(), models.ProjectFilter{UserID: 10, Search: " Norte ", Page: models.Pagination{Page: 2, PageSize: 20}})
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Equal(t, 21, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
