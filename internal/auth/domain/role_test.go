package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" cashier ")
	require.NoError(t, err)
	assert.Equal(t, RoleCashier, role)

	_, err = ParseRole("ADMIN")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestOnlyOwnerBypassesOutletScope(t *testing.T) {
	for _, role := range AllRoles() {
		assert.Equal(t, role == RoleOwner, role.Has(CapBypassOutletScope), role)
	}
}

func TestCanAccessOutlet(t *testing.T) {
	outletA, outletB := snowflake.ID(1), snowflake.ID(2)

	cashier := Claims{UserID: 10, Role: RoleCashier, OutletID: outletA}
	assert.True(t, cashier.CanAccessOutlet(outletA))
	assert.False(t, cashier.CanAccessOutlet(outletB))

	owner := Claims{UserID: 11, Role: RoleOwner}
	assert.True(t, owner.CanAccessOutlet(outletA))
	assert.True(t, owner.CanAccessOutlet(outletB))
}
