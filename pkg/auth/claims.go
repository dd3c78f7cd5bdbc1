// Package auth holds the JWT claim shapes shared by the API server and any
// client tooling.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims is a minimal view of the access token payload. When parsed
// without verification it is for display only; do not use the values for
// security decisions unless the token was verified with the signing key.
type UserClaims struct {
	ID       string
	Username string
	Email    string
	Iss      string
	Aud      string
	Iat      int64
	Exp      int64
}

// ParseTokenClaims extracts raw claims from a JWT without verifying its
// signature. Numeric timestamps come back as float64 per the jwt library.
// WARNING: do not rely on this for authorization.
func ParseTokenClaims(tokenStr string) (jwt.MapClaims, error) {
	var claims jwt.MapClaims
	parser := new(jwt.Parser)
	_, _, err := parser.ParseUnverified(tokenStr, &claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func FromToken(tokenStr string) (*UserClaims, error) {
	claims, err := ParseTokenClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	return FromMapClaims(claims)
}

// FromMapClaims maps token claims into a stable UserClaims structure. It
// tolerates both string and numeric forms of `sub`, `iat`, and `exp` and
// normalizes them into strings/int64s.
func FromMapClaims(mc jwt.MapClaims) (*UserClaims, error) {
	uc := &UserClaims{}

	if sub, ok := mc["sub"]; ok {
		switch v := sub.(type) {
		case string:
			uc.ID = v
		case float64:
			uc.ID = strconv.FormatInt(int64(v), 10)
		default:
			uc.ID = fmt.Sprintf("%v", v)
		}
	}

	if username, ok := mc["username"].(string); ok {
		uc.Username = username
	}
	if email, ok := mc["email"].(string); ok {
		uc.Email = email
	}
	if iss, ok := mc["iss"].(string); ok {
		uc.Iss = iss
	}
	if aud, ok := mc["aud"].(string); ok {
		uc.Aud = aud
	}

	if iat, ok := mc["iat"]; ok {
		switch v := iat.(type) {
		case float64:
			uc.Iat = int64(v)
		case int64:
			uc.Iat = v
		}
	}

	if exp, ok := mc["exp"]; ok {
		switch v := exp.(type) {
		case float64:
			uc.Exp = int64(v)
		case int64:
			uc.Exp = v
		}
	}

	return uc, nil
}

// ToClaims converts a UserClaims into jwt.MapClaims suitable for signing by
// the server. Timestamp fields must be set by the caller in unix seconds.
func ToClaims(uc *UserClaims) jwt.MapClaims {
	mc := jwt.MapClaims{}
	if uc.ID != "" {
		mc["sub"] = uc.ID
	}
	if uc.Username != "" {
		mc["username"] = uc.Username
	}
	if uc.Email != "" {
		mc["email"] = uc.Email
	}
	if uc.Iss != "" {
		mc["iss"] = uc.Iss
	}
	if uc.Aud != "" {
		mc["aud"] = uc.Aud
	}
	if uc.Iat != 0 {
		mc["iat"] = uc.Iat
	}
	if uc.Exp != 0 {
		mc["exp"] = uc.Exp
	}
	return mc
}

// IsTokenExpired returns true when the access token is expired or within
// the provided skew window. It parses without verifying the signature,
// which is sufficient for local UX decisions.
func IsTokenExpired(token string, skew time.Duration) (bool, error) {
	if token == "" {
		return true, nil
	}
	uc, err := FromToken(token)
	if err != nil {
		return true, err
	}
	if uc.Exp == 0 {
		return false, nil
	}
	expiresAt := time.Unix(uc.Exp, 0).Add(-skew)
	return time.Now().After(expiresAt), nil
}
