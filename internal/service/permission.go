package service

import (
	"context"

	"github.com/noah-isme/obra-api/internal/models"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
)

// Capabilities is what the caller brings to an authorization decision.
type Capabilities struct {
	UserID            int64
	Role              models.UserRole
	ProjectPermission models.ProjectPermission
	Member            bool
}

// ResourceSnapshot is the ownership data of the project and, optionally, the task being mutated.
type ResourceSnapshot struct {
	ResponsibleID *int64
	ClientID      *int64
	AssigneeID    *int64
	CreatorID     *int64
}

// ProjectSnapshot extracts the ownership data of a project.
func ProjectSnapshot(p *models.Project) ResourceSnapshot {
	return ResourceSnapshot{ResponsibleID: p.ResponsibleID, ClientID: p.ClientID}
}

// TaskSnapshot extracts the ownership data of a task and its project.
func TaskSnapshot(t *models.TaskContext) ResourceSnapshot {
	return ResourceSnapshot{
		ResponsibleID: t.ProjectResponsibleID,
		ClientID:      t.ProjectClientID,
		AssigneeID:    t.AssigneeID,
		CreatorID:     t.CreatorID,
	}
}

func sameUser(id *int64, userID int64) bool {
	return id != nil && userID > 0 && *id == userID
}

// CanMutate grants when any one of the ownership or capability conditions holds.
func CanMutate(caps Capabilities, res ResourceSnapshot) bool {
	return sameUser(res.ResponsibleID, caps.UserID) ||
		sameUser(res.ClientID, caps.UserID) ||
		caps.ProjectPermission == models.PermissionEdit ||
		caps.Role == models.RoleAdmin ||
		sameUser(res.AssigneeID, caps.UserID) ||
		sameUser(res.CreatorID, caps.UserID)
}

// CanView additionally admits any assigned project member.
func CanView(caps Capabilities, res ResourceSnapshot) bool {
	return caps.Member || CanMutate(caps, res)
}

type membershipStore interface {
	Membership(ctx context.Context, projectID, userID int64) (*models.ProjectMember, bool, error)
}

// PermissionService loads the caller's capabilities for a project.
type PermissionService struct {
	members membershipStore
}

// NewPermissionService constructs the service.
func NewPermissionService(members membershipStore) *PermissionService {
	return &PermissionService{members: members}
}

// Capabilities resolves the caller's assignment within projectID.
func (s *PermissionService) Capabilities(ctx context.Context, identity *models.Identity, projectID int64) (Capabilities, error) {
	if identity == nil {
		return Capabilities{}, appErrors.ErrInvalidToken
	}
	caps := Capabilities{UserID: identity.UserID, Role: identity.Role}
	member, ok, err := s.members.Membership(ctx, projectID, identity.UserID)
	if err != nil {
		return Capabilities{}, appErrors.Internal(err, "failed to load project permission")
	}
	if ok {
		caps.Member = true
		caps.ProjectPermission = member.Permission
	}
	return caps, nil
}
