package identity

import (
	"strings"

	"github.com/erp/storefront/internal/domain/shared"
)

// SessionKey is the fixed name the identity is stored under within a session
const SessionKey = "lineUser"

// UserIdentity is the resolved LINE user for a browser session
type UserIdentity struct {
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	CustomerName string `json:"customerName,omitempty"`
	// FriendFlag is whether the user has added the official account as a
	// friend. Nil when the status could not be determined.
	FriendFlag *bool `json:"friendFlag,omitempty"`
}

// NewUserIdentity creates an identity from a platform profile
func NewUserIdentity(userID, displayName string) (*UserIdentity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, shared.NewLoginFailed("profile has no user id")
	}
	return &UserIdentity{
		UserID:       userID,
		DisplayName:  strings.TrimSpace(displayName),
		CustomerName: strings.TrimSpace(displayName),
	}, nil
}

// OrdererName returns the default orderer name: the customer name, falling
// back to the display name
func (u *UserIdentity) OrdererName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.CustomerName); name != "" {
		return name
	}
	return u.DisplayName
}

// ApplyCustomerName overrides the customer name with a value saved by the
// backend. Blank values are ignored. Returns true if the identity changed.
func (u *UserIdentity) ApplyCustomerName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == u.CustomerName {
		return false
	}
	u.CustomerName = name
	return true
}

// IsFriend reports a known friend status; unknown counts as not a friend
func (u *UserIdentity) IsFriend() bool {
	return u.FriendFlag != nil && *u.FriendFlag
}

// Clone returns a deep copy
func (u *UserIdentity) Clone() *UserIdentity {
	if u == nil {
		return nil
	}
	c := *u
	if u.FriendFlag != nil {
		f := *u.FriendFlag
		c.FriendFlag = &f
	}
	return &c
}
