package account

import (
	"sort"
	"time"
)

// Claims are what an access token asserts about an Account.
// TeacherID and StudentID are only set when the matching role is held and its profile exists.
type Claims struct {
	AccountID int
	Roles     []string
	TeacherID *int
	StudentID *int
}

// Identity is the normalized caller identity attached to a guarded request.
type Identity struct {
	AccountID int
	Roles     []string // never nil
}

func NewIdentity(accountID int, roles []string) Identity {
	if roles == nil {
		roles = []string{}
	}
	return Identity{AccountID: accountID, Roles: roles}
}

// TokenCodec signs and verifies the tokens handed out by the Service.
type TokenCodec interface {
	SignAccessToken(claims Claims, ttl time.Duration) (string, error)
	SignRefreshToken(accountID int) (string, error)
	// ParseRefreshToken returns the ID of the Account the refresh token was issued to.
	ParseRefreshToken(token string) (int, error)
}

// HasAnyRole reports whether held shares at least one role with required.
// Nothing required means anyone is allowed.
func HasAnyRole(required, held []string) bool {
	if len(required) == 0 {
		return true
	}
	if len(held) == 0 {
		return false
	}
	sorted := make([]string, len(held))
	copy(sorted, held)
	sort.Strings(sorted)
	for _, role := range required {
		if i := sort.SearchStrings(sorted, role); i < len(sorted) && sorted[i] == role {
			return true
		}
	}
	return false
}
