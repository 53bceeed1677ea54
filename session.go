package auth

import (
	"fmt"
	"time"
)

// SessionToken is the artifact handed to clients after signup or login
type SessionToken struct {
	Value     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionObject is a verified session
type SessionObject struct {
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"jti,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	Audience  []string  `json:"aud,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

func (s SessionObject) String() string {
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s exp=%s",
		s.UserID,
		s.Audience,
		s.Issuer,
		s.IssuedAt.Format(time.RFC1123),
		s.ExpiresAt.Format(time.RFC1123),
	)
}

func sessionFromClaims(claims *JWTClaims) (*SessionObject, error) {
	if claims == nil || claims.UserID() == "" {
		return nil, ErrSessionInvalid
	}

	var audience []string
	for _, aud := range claims.RegisteredClaims.Audience {
		audience = append(audience, aud)
	}

	return &SessionObject{
		UserID:    claims.UserID(),
		TokenID:   claims.RegisteredClaims.ID,
		Issuer:    claims.RegisteredClaims.Issuer,
		Audience:  audience,
		IssuedAt:  claims.IssuedAt(),
		ExpiresAt: claims.Expires(),
	}, nil
}
