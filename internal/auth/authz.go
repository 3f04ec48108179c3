package auth

import (
	"context"
	"fmt"
	"slices"

	"connectrpc.com/connect"
)

// Role is the role of a member inside their organization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// Permission represents an authorized action
type Permission string

const (
	PermProcessesCreate Permission = "processes:create"
	PermProcessesRead   Permission = "processes:read"
	PermProcessesManage Permission = "processes:manage"
)

// RolePermissions maps roles to allowed permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermProcessesCreate,
		PermProcessesRead,
		PermProcessesManage,
	},
	RoleManager: {
		PermProcessesCreate,
		PermProcessesRead,
		PermProcessesManage,
	},
	RoleViewer: {
		PermProcessesRead,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	return slices.Contains(perms, perm)
}

// RequirePermission checks authorization and returns the member, or a connect
// error if the caller is not authenticated or not allowed.
func RequirePermission(ctx context.Context, perm Permission) (*Member, error) {
	member := MemberFromContext(ctx)
	if member == nil {
		return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("not authenticated"))
	}

	if !HasPermission(member.Role, perm) {
		return nil, connect.NewError(
			connect.CodePermissionDenied,
			fmt.Errorf("permission denied: %s requires %s", member.Role, perm),
		)
	}

	return member, nil
}
