// Package auth implements the authentication token lifecycle: durable
// credential storage, access-token expiry inspection, and single-flight
// token refresh against the operations API.
package auth

// TokenPair is the persisted credential pair. Both members are present or
// both are absent; the store never writes a partial pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IsZero reports whether the pair carries no credentials.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Complete reports whether both members of the pair are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// User is the operator profile attached to login/refresh responses.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	UserName    string `json:"userName"`
	Permission  string `json:"permission"`
	Location    string `json:"location"`
	Designation string `json:"designation"`
}

// AuthResponse is the body returned by the login and refresh-token
// endpoints: a fresh token pair plus the operator profile.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Pair returns the response's token pair.
func (r AuthResponse) Pair() TokenPair {
	return TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}
