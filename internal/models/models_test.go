package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskStateCaseInsensitive(t *testing.T) {
	cases := map[string]TaskState{
		"pendiente":   TaskPending,
		" PENDIENTE ": TaskPending,
		"En Progreso": TaskInProgress,
		"in-progress": TaskInProgress,
		"Completado":  TaskCompleted,
		"completed":   TaskCompleted,
	}
	for raw, want := range cases {
		got, err := ParseTaskState(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseTaskState("archived")
	assert.Error(t, err)
}

func TestTaskStateScan(t *testing.T) {
	var s TaskState
	require.NoError(t, s.Scan([]byte("COMPLETADO")))
	assert.Equal(t, TaskCompleted, s)
	assert.Error(t, s.Scan(nil))
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("Admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = ParseUserRole("architect")
	require.NoError(t, err)
	assert.Equal(t, RoleArchitect, role)

	_, err = ParseUserRole("root")
	assert.Error(t, err)
}

func TestPlanVersion(t *testing.T) {
	v, err := ParsePlanVersion("1.9")
	require.NoError(t, err)
	assert.Equal(t, "1.10", v.Next(false).String())
	assert.Equal(t, "2.0", v.Next(true).String())
	assert.True(t, v.Less(v.Next(false)))

	v, err = ParsePlanVersion("3")
	require.NoError(t, err)
	assert.Equal(t, "3.0", v.String())

	_, err = ParsePlanVersion("a.b")
	assert.Error(t, err)
	_, err = ParsePlanVersion("1.2.3")
	assert.Error(t, err)
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 500, 50)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.PageSize)
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 40, NewPagination(3, 20, 50).Offset())
}
