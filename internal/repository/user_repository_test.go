package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "nombre", "apellido", "email", "password", "rol", "estado", "token", "eliminado", "fecha_creacion"}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(1, "Ana", "Ruiz", "ana@obra.test", "hash", "ADMIN", "activo", nil, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM usuarios WHERE LOWER(email) = LOWER($1) AND eliminado = FALSE LIMIT 1")).
		WithArgs("Ana@Obra.test").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Ana@Obra.test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Nil(t, user.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTokenNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM usuarios WHERE token = $1 AND eliminado = FALSE")).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.FindByToken(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTokenUnknownRoleScansAsOther(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	token := "abc"
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(7, "Luis", "Gil", "luis@obra.test", "hash", "capataz", "activo", token, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM usuarios WHERE token = $1")).
		WithArgs(token).
		WillReturnRows(rows)

	user, err := repo.FindByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOther, user.Role)
	require.NotNil(t, user.Token)
	assert.Equal(t, token, *user.Token)
}

func TestClearTokenReportsWhetherTokenExisted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE usuarios SET token = NULL WHERE id = $1 AND token IS NOT NULL")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE usuarios SET token = NULL WHERE id = $1 AND token IS NOT NULL")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cleared, err := repo.ClearToken(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = repo.ClearToken(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE usuarios SET token = $2 WHERE id = $1")).
		WithArgs(int64(3), "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetToken(context.Background(), 3, "tok"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO usuarios").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &models.User{Email: "dup@obra.test", Role: models.RoleOther, Status: models.UserStatusActive})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserReturnsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO usuarios").
		WithArgs("Ana", "Ruiz", "ana@obra.test", "hash", "ingeniero", "activo").
		WillReturnRows(sqlmock.NewRows([]string{"id", "fecha_creacion"}).AddRow(11, now))

	user := &models.User{Name: "Ana", Surname: "Ruiz", Email: "ana@obra.test", PasswordHash: "hash", Role: models.RoleEngineer, Status: models.UserStatusActive}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, int64(11), user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
