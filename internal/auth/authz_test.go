package auth

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name           string
		role           Role
		permission     Permission
		expectedResult bool
	}{
		{name: "admin can create", role: RoleAdmin, permission: PermProcessesCreate, expectedResult: true},
		{name: "admin can manage", role: RoleAdmin, permission: PermProcessesManage, expectedResult: true},
		{name: "manager can create", role: RoleManager, permission: PermProcessesCreate, expectedResult: true},
		{name: "manager can read", role: RoleManager, permission: PermProcessesRead, expectedResult: true},
		{name: "viewer can read", role: RoleViewer, permission: PermProcessesRead, expectedResult: true},
		{name: "viewer cannot create", role: RoleViewer, permission: PermProcessesCreate, expectedResult: false},
		{name: "viewer cannot manage", role: RoleViewer, permission: PermProcessesManage, expectedResult: false},
		{name: "unknown role", role: Role("owner"), permission: PermProcessesRead, expectedResult: false},
		{name: "unknown permission", role: RoleAdmin, permission: Permission("documents:delete"), expectedResult: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedResult, HasPermission(tt.role, tt.permission))
		})
	}
}

func TestRequirePermission(t *testing.T) {
	member := &Member{MemberID: uuid.Must(uuid.NewV7()), OrgID: uuid.Must(uuid.NewV7()), Role: RoleViewer}

	t.Run("no member in context", func(t *testing.T) {
		got, err := RequirePermission(context.Background(), PermProcessesRead)
		require.Nil(t, got)
		require.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("permission granted", func(t *testing.T) {
		got, err := RequirePermission(WithMember(context.Background(), member), PermProcessesRead)
		require.NoError(t, err)
		require.Equal(t, member, got)
	})

	t.Run("permission denied", func(t *testing.T) {
		got, err := RequirePermission(WithMember(context.Background(), member), PermProcessesCreate)
		require.Nil(t, got)
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
		require.Contains(t, err.Error(), "processes:create")
	})
}
