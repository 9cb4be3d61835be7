package oauth

import "time"

// StateTTL is how long an issued state token stays valid.
const StateTTL = 10 * time.Minute

// OAuthState is the one-time CSRF token binding an authorization request to
// its callback. Rows are persisted on issuance and flipped to used exactly
// once on a successful callback; they are never deleted by this core.
type OAuthState struct {
	State          string
	Platform       string
	UserIdentifier string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	IsUsed         bool
}

// Usable reports whether the state can still be consumed at the given time.
func (s OAuthState) Usable(now time.Time) bool {
	return !s.IsUsed && now.Before(s.ExpiresAt)
}

// TokenResponse models a platform token endpoint response, for both the
// initial authorization-code exchange and later refresh exchanges.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
	Scope        string
	AdvertiserID string
}
