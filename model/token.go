package model

import "time"

// RefreshToken is one row of the refresh-token ledger. Only a one-way hash of
// the raw token is stored; the raw value exists solely in the client's hands.
// IPAddress and UserAgent record where the token was issued and are advisory
// only, they carry no security weight.
type RefreshToken struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
