package repository

import (
	"context"
	"time"

	"github.com/adsightlabs/adsight-core/internal/domain"
	"github.com/adsightlabs/adsight-core/internal/domain/oauth"
)

// OAuthStateRepository persists one-time CSRF state tokens.
type OAuthStateRepository interface {
	SaveState(ctx context.Context, state oauth.OAuthState) error
	// ConsumeState atomically flips is_used for a usable state bound to the
	// given platform and returns its user identifier. Exactly one concurrent
	// caller may succeed per state; the rest observe a typed failure.
	ConsumeState(ctx context.Context, state, platform string) (string, error)
}

// Credential carries the encrypted token columns written on store/refresh.
type Credential struct {
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	TokenExpiresAt        time.Time
	TokenScope            string
	AdvertiserID          string
}

// AccountRepository exposes persistence for connected accounts.
type AccountRepository interface {
	GetAccount(ctx context.Context, accountID int64) (domain.Account, error)
	ListConnected(ctx context.Context, platform string) ([]domain.Account, error)
	SaveCredential(ctx context.Context, accountID int64, cred Credential) error
	ClearCredential(ctx context.Context, accountID int64) error
	MarkNeedsReauth(ctx context.Context, accountID int64) error
}
