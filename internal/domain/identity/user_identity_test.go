package identity

import (
	"errors"
	"testing"

	"github.com/erp/storefront/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserIdentity(t *testing.T) {
	t.Run("customer name defaults to display name", func(t *testing.T) {
		u, err := NewUserIdentity("U123", " Alice ")
		require.NoError(t, err)
		assert.Equal(t, "U123", u.UserID)
		assert.Equal(t, "Alice", u.DisplayName)
		assert.Equal(t, "Alice", u.CustomerName)
	})

	t.Run("requires a user id", func(t *testing.T) {
		_, err := NewUserIdentity("  ", "Alice")
		assert.True(t, errors.Is(err, shared.ErrLoginFailed))
	})
}

func TestUserIdentity_OrdererName(t *testing.T) {
	u := &UserIdentity{UserID: "U1", DisplayName: "Alice"}
	assert.Equal(t, "Alice", u.OrdererName())

	u.CustomerName = "Alice's Bakery"
	assert.Equal(t, "Alice's Bakery", u.OrdererName())

	var nilIdentity *UserIdentity
	assert.Equal(t, "", nilIdentity.OrdererName())
}

func TestUserIdentity_ApplyCustomerName(t *testing.T) {
	u := &UserIdentity{UserID: "U1", DisplayName: "Alice", CustomerName: "Alice"}

	assert.False(t, u.ApplyCustomerName("   "))
	assert.False(t, u.ApplyCustomerName("Alice"))
	assert.True(t, u.ApplyCustomerName("Shop A"))
	assert.Equal(t, "Shop A", u.CustomerName)
	assert.Equal(t, "Alice", u.DisplayName)
}

func TestUserIdentity_IsFriend(t *testing.T) {
	yes, no := true, false
	assert.False(t, (&UserIdentity{}).IsFriend())
	assert.False(t, (&UserIdentity{FriendFlag: &no}).IsFriend())
	assert.True(t, (&UserIdentity{FriendFlag: &yes}).IsFriend())
}

func TestUserIdentity_Clone(t *testing.T) {
	yes := true
	u := &UserIdentity{UserID: "U1", DisplayName: "Alice", FriendFlag: &yes}

	c := u.Clone()
	*c.FriendFlag = false
	c.CustomerName = "changed"

	assert.True(t, *u.FriendFlag)
	assert.Empty(t, u.CustomerName)
	assert.Nil(t, (*UserIdentity)(nil).Clone())
}
