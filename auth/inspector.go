package auth

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IsExpired reports whether the access token's exp claim is in the past.
//
// The token is decoded without signature verification — the client holds
// no verification keys; the server remains the authority on validity and
// answers 401 for anything it rejects. Expiry is checked locally only to
// avoid a guaranteed round trip with a stale token.
//
// Fail-closed: a token that cannot be decoded, or that carries no exp
// claim, is reported expired.
func IsExpired(accessToken string) bool {
	claims, ok := decodeClaims(accessToken)
	if !ok {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Before(time.Now())
}

// UserClaim extracts the operator profile embedded in the access token
// under the "user" claim. Returns nil when the token or claim cannot be
// decoded. Used only as a bootstrap fallback when no stored profile
// exists; the profile from the most recent login/refresh response is
// authoritative.
func UserClaim(accessToken string) *User {
	claims, ok := decodeClaims(accessToken)
	if !ok {
		return nil
	}

	raw, ok := claims["user"]
	if !ok {
		return nil
	}

	// Round-trip through JSON to map the loosely-typed claim onto User.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil
	}
	if user.ID == "" && user.Email == "" {
		return nil
	}
	return &user
}

func decodeClaims(accessToken string) (jwt.MapClaims, bool) {
	if accessToken == "" {
		return nil, false
	}

	token, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	return claims, true
}
