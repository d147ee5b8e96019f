package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/obra-api/internal/models"
)

func TestCanMutate(t *testing.T) {
	res := ResourceSnapshot{
		ResponsibleID: int64Ptr(10),
		ClientID:      int64Ptr(20),
		AssigneeID:    int64Ptr(30),
		CreatorID:     int64Ptr(40),
	}
	cases := []struct {
		name string
		caps Capabilities
		want bool
	}{
		{"responsible", Capabilities{UserID: 10, Role: models.RoleEngineer}, true},
		{"client", Capabilities{UserID: 20, Role: models.RoleClient}, true},
		{"assignee", Capabilities{UserID: 30, Role: models.RoleOther}, true},
		{"creator", Capabilities{UserID: 40, Role: models.RoleOther}, true},
		{"edit permission", Capabilities{UserID: 50, Role: models.RoleArchitect, ProjectPermission: models.PermissionEdit, Member: true}, true},
		{"admin", Capabilities{UserID: 60, Role: models.RoleAdmin}, true},
		{"view permission only", Capabilities{UserID: 70, Role: models.RoleEngineer, ProjectPermission: models.PermissionView, Member: true}, false},
		{"stranger", Capabilities{UserID: 80, Role: models.RoleOther}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanMutate(tc.caps, res))
		})
	}
}

func TestCanMutateIgnoresUnsetOwners(t *testing.T) {
	assert.False(t, CanMutate(Capabilities{UserID: 0}, ResourceSnapshot{}))
	assert.False(t, CanMutate(Capabilities{UserID: 5}, ResourceSnapshot{ResponsibleID: int64Ptr(6)}))
}

func TestCanViewAdmitsMembers(t *testing.T) {
	res := ResourceSnapshot{ResponsibleID: int64Ptr(1)}
	assert.True(t, CanView(Capabilities{UserID: 9, Member: true, ProjectPermission: models.PermissionView}, res))
	assert.False(t, CanView(Capabilities{UserID: 9}, res))
}

func TestPermissionServiceCapabilities(t *testing.T) {
	svc := NewPermissionService(&membershipStub{members: map[int64]models.ProjectPermission{7: models.PermissionEdit}})

	caps, err := svc.Capabilities(context.Background(), &models.Identity{UserID: 7, Role: models.RoleEngineer}, 1)
	require.NoError(t, err)
	assert.True(t, caps.Member)
	assert.Equal(t, models.PermissionEdit, caps.ProjectPermission)

	caps, err = svc.Capabilities(context.Background(), &models.Identity{UserID: 8, Role: models.RoleOther}, 1)
	require.NoError(t, err)
	assert.False(t, caps.Member)
	assert.Equal(t, models.PermissionNone, caps.ProjectPermission)

	_, err = svc.Capabilities(context.Background(), nil, 1)
	assert.Error(t, err)
}
