package booking

import (
	"fmt"
	"strings"

	"studio-booking-backend/internal/model"
)

// Role is the closed set of actor roles handed over by the identity provider.
type Role int

const (
	RoleFaculty Role = iota + 1
	RoleStudioAdmin
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleFaculty:
		return "faculty"
	case RoleStudioAdmin:
		return "studio_admin"
	case RoleSuperAdmin:
		return "super_admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole maps the identity provider's role string onto a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "faculty":
		return RoleFaculty, nil
	case "studio_admin":
		return RoleStudioAdmin, nil
	case "super_admin":
		return RoleSuperAdmin, nil
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, s)
}

// Actor is the authenticated caller.
type Actor struct {
	ID    string
	Role  Role
	Name  string
	Email string
	// Studios assigned to a studio admin. Ignored for other roles.
	Studios []int64
}

// CanManage reports whether the actor administers studioID.
func (a Actor) CanManage(studioID int64) bool {
	switch a.Role {
	case RoleSuperAdmin:
		return true
	case RoleStudioAdmin:
		for _, id := range a.Studios {
			if id == studioID {
				return true
			}
		}
	}
	return false
}

// CanCancel reports whether the actor may cancel b: its owner, an admin of its
// studio, or a super admin.
func (a Actor) CanCancel(b *model.Booking) bool {
	if b == nil {
		return false
	}
	return (a.ID != "" && b.OwnerID == a.ID) || a.CanManage(b.StudioID)
}

// AdminScope returns the studio ids an admin listing is limited to.
// nil means every studio. Faculty get ErrUnauthorized.
func (a Actor) AdminScope() ([]int64, error) {
	switch a.Role {
	case RoleSuperAdmin:
		return nil, nil
	case RoleStudioAdmin:
		scope := make([]int64, len(a.Studios))
		copy(scope, a.Studios)
		return scope, nil
	}
	return nil, ErrUnauthorized
}
