package types

import "strings"

// Identity is the caller's verified account, if any. The zero value is an anonymous caller.
type Identity struct {
	UserID string `json:"user_id,omitempty"`
}

// Anonymous is the identity used when no bearer token accompanied the request.
var Anonymous = Identity{}

// NewIdentity trims the user id; a blank id yields Anonymous.
func NewIdentity(userID string) Identity {
	return Identity{UserID: strings.TrimSpace(userID)}
}

// Present reports whether the caller is signed in.
func (i Identity) Present() bool {
	return i.UserID != ""
}

func (i Identity) String() string {
	if !i.Present() {
		return "anonymous"
	}
	return i.UserID
}
