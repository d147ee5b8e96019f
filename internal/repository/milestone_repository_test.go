package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/models"
)

func TestCreateMilestoneReturnsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	due := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	responsible := int64(30)
	created := time.Now()
	mock.ExpectQuery("INSERT INTO hitos").
		WithArgs(int64(1), "Estructura terminada", "", sqlmock.AnyArg(), int64(30), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fecha_creacion"}).AddRow(4, created))

	m := &models.Milestone{ProjectID: 1, Name: "Estructura terminada", DueDate: &due, ResponsibleID: &responsible, CreatorID: 10}
	require.NoError(t, repo.Create(context.Background(), m))
	assert.Equal(t, int64(4), m.ID)
	assert.Equal(t, created, m.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMilestoneWrapsError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	mock.ExpectQuery("INSERT INTO hitos").
		WithArgs(int64(1), "Cimentación", "", nil, nil, int64(10)).
		WillReturnError(errors.New("fk violation"))

	err := repo.Create(context.Background(), &models.Milestone{ProjectID: 1, Name: "Cimentación", CreatorID: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create milestone")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMilestonesByProject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	cols := []string{"id", "proyecto_id", "nombre", "descripcion", "fecha_limite", "responsable_id", "creado_por", "eliminado", "fecha_creacion"}
	due := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM hitos WHERE proyecto_id = \\$1 AND eliminado = FALSE ORDER BY fecha_limite NULLS LAST").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(4, 1, "Estructura terminada", "", due, 30, 10, false, time.Now()).
			AddRow(5, 1, "Entrega", "", nil, nil, 10, false, time.Now()))

	items, err := repo.ListByProject(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].DueDate)
	assert.Equal(t, due, *items[0].DueDate)
	assert.Equal(t, int64(30), *items[0].ResponsibleID)
	assert.Nil(t, items[1].DueDate)
	assert.Nil(t, items[1].ResponsibleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMilestonesWrapsError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	mock.ExpectQuery("FROM hitos").WillReturnError(errors.New("timeout"))

	_, err := repo.ListByProject(context.Background(), 1)
	assert.ErrorContains(t, err, "list milestones")
	assert.NoError(t, mock.ExpectationsWereMet())
}
