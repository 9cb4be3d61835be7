package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adsightlabs/adsight-core/internal/domain"
	"github.com/adsightlabs/adsight-core/internal/domain/oauth"
	"github.com/adsightlabs/adsight-core/internal/repository"
)

func TestVault_StoreAndGet(t *testing.T) {
	h := newVaultHarness(t)
	ctx := context.Background()

	h.accounts.put(domain.Account{ID: 1, Platform: "tiktok"})
	require.NoError(t, h.vault.Store(ctx, 1, &oauth.TokenResponse{
		AccessToken:  "plain-access",
		RefreshToken: "plain-refresh",
		ExpiresIn:    3600,
		Scope:        "ads.read",
	}))

	stored := h.accounts.get(1)
	require.NotEmpty(t, stored.EncryptedAccessToken)
	require.NotContains(t, stored.EncryptedAccessToken, "plain-access")
	require.NotContains(t, stored.EncryptedRefreshToken, "plain-refresh")
	require.Equal(t, "ads.read", stored.TokenScope)

	token, err := h.vault.GetValidToken(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "plain-access", token)
	require.Zero(t, h.refresher.calls.Load())
}

func TestVault_GetValidToken_NotFound(t *testing.T) {
	h := newVaultHarness(t)

	_, err := h.vault.GetValidToken(context.Background(), 404)
	require.ErrorIs(t, err, oauth.ErrTokenNotFound)

	h.accounts.put(domain.Account{ID: 2, Platform: "tiktok"})
	_, err = h.vault.GetValidToken(context.Background(), 2)
	require.ErrorIs(t, err, oauth.ErrTokenNotFound)
}

func TestVault_RefreshNearExpiry(t *testing.T) {
	h := newVaultHarness(t)
	ctx := context.Background()

	h.accounts.put(domain.Account{ID: 1, Platform: "tiktok"})
	require.NoError(t, h.vault.Store(ctx, 1, &oauth.TokenResponse{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresIn:    60, // inside the 5 minute threshold
	}))
	h.refresher.response = &oauth.TokenResponse{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresIn:    3600,
	}

	token, err := h.vault.GetValidToken(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "new-access", token)
	require.Equal(t, int64(1), h.refresher.calls.Load())
	require.Equal(t, "old-refresh", h.refresher.lastRefreshToken())

	// The refreshed credential is persisted, so the next call decrypts only.
	token, err = h.vault.GetValidToken(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "new-access", token)
	require.Equal(t, int64(1), h.refresher.calls.Load())
}

func TestVault_RefreshKeepsUnrotatedRefreshToken(t *testing.T) {
	h := newVaultHarness(t)
	ctx := context.Background()

	h.accounts.put(domain.Account{ID: 1, Platform: "tiktok"})
	require.NoError(t, h.vault.Store(ctx, 1, &oauth.TokenResponse{
		AccessToken:  "old-access",
		RefreshToken: "stable-refresh",
		ExpiresIn:    60,
	}))
	h.refresher.response = &oauth.TokenResponse{AccessToken: "new-access", ExpiresIn: 3600}

	_, err := h.vault.GetValidToken(ctx, 1)
	require.NoError(t, err)

	sealed := h.accounts.get(1).EncryptedRefreshToken
	plaintext, err := h.sealer.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "stable-refresh", plaintext)
}

func TestVault_SingleFlightRefresh(t *testing.T) {
	h := newVaultHarness(t)
	ctx := context.Background()

	h.accounts.put(domain.Account{ID: 1, Platform: "tiktok"})
	require.NoError(t, h.vault.Store(ctx, 1, &oauth.TokenResponse{
		AccessToken:  "old-access",
		RefreshToken: "single-use-refresh",
		ExpiresIn:    60,
	}))
	h.refresher.response = &oauth.TokenResponse{
		AccessToken:  "new-access",
		RefreshToken: "rotated-refresh",
		ExpiresIn:    3600,
	}
	h.refresher.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	tokens := make([]string, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = h.vault.GetValidToken(ctx, 1)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "new-access", tokens[i])
	}
	// The single-use refresh token was exchanged exactly once.
	require.Equal(t, int64(1), h.refresher.calls.Load())
}

func TestVault_RefreshFailed(t *testing.T) {
	h := newVaultHarness(t)
	ctx := context.Background()

	h.accounts.put(domain.Account{ID: 1, Platform: "tiktok"})
	require.NoError(t, h.vault.Store(ctx, 1, &oauth.TokenResponse{
		AccessToken:  "old-access",
		RefreshToken: "revoked-refresh",
		ExpiresIn:    60,
	}))
	h.refresher.err = errors.New("invalid_grant")

	_, err := h.vault.GetValidToken(ctx, 1)
	require.ErrorIs(t, err, oauth.ErrRefreshFailed)
	require.True(t, h.accounts.get(1).NeedsReauth)
}

func TestVault_DecryptionFailed(t *testing.T) {
	h := newVaultHarness(t)
	ctx := context.Background()

	h.accounts.put(domain.Account{
		ID:                    1,
		Platform:              "tiktok",
		EncryptedAccessToken:  "bm90LXJlYWwtY2lwaGVydGV4dC1hdC1hbGwtanVzdC1qdW5r",
		EncryptedRefreshToken: "anVuaw",
		TokenExpiresAt:        time.Now().UTC().Add(time.Hour),
	})

	_, err := h.vault.GetValidToken(ctx, 1)
	require.ErrorIs(t, err, oauth.ErrDecryptionFailed)
}

func TestVault_Disconnect(t *testing.T) {
	h := newVaultHarness(t)
	ctx := context.Background()

	h.accounts.put(domain.Account{ID: 1, Platform: "tiktok"})
	require.NoError(t, h.vault.Store(ctx, 1, &oauth.TokenResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
	}))

	require.NoError(t, h.vault.Disconnect(ctx, 1))
	require.Empty(t, h.accounts.get(1).EncryptedAccessToken)

	_, err := h.vault.GetValidToken(ctx, 1)
	require.ErrorIs(t, err, oauth.ErrTokenNotFound)
}

// ---- Test harness and fakes ----

type vaultHarness struct {
	vault     *Vault
	sealer    *Sealer
	accounts  *memAccountRepo
	refresher *fakeRefresher
}

func newVaultHarness(t *testing.T) *vaultHarness {
	t.Helper()
	sealer, err := NewSealer(bytes.Repeat([]byte{0x24}, 32))
	require.NoError(t, err)

	accounts := newMemAccountRepo()
	refresher := &fakeRefresher{}
	return &vaultHarness{
		vault:     New(accounts, sealer, refresher, zap.NewNop()),
		sealer:    sealer,
		accounts:  accounts,
		refresher: refresher,
	}
}

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]domain.Account
}

var _ repository.AccountRepository = (*memAccountRepo)(nil)

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[int64]domain.Account)}
}

func (r *memAccountRepo) put(account domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
}

func (r *memAccountRepo) get(id int64) domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

func (r *memAccountRepo) GetAccount(_ context.Context, accountID int64) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return domain.Account{}, fmt.Errorf("account %d: %w", accountID, oauth.ErrTokenNotFound)
	}
	return account, nil
}

func (r *memAccountRepo) ListConnected(_ context.Context, platform string) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Account
	for _, account := range r.accounts {
		if account.Platform == platform && account.Connected() {
			out = append(out, account)
		}
	}
	return out, nil
}

func (r *memAccountRepo) SaveCredential(_ context.Context, accountID int64, cred repository.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %d: %w", accountID, oauth.ErrTokenNotFound)
	}
	account.EncryptedAccessToken = cred.EncryptedAccessToken
	account.EncryptedRefreshToken = cred.EncryptedRefreshToken
	account.TokenExpiresAt = cred.TokenExpiresAt
	account.TokenScope = cred.TokenScope
	if cred.AdvertiserID != "" {
		account.AdvertiserID = cred.AdvertiserID
	}
	account.NeedsReauth = false
	r.accounts[accountID] = account
	return nil
}

func (r *memAccountRepo) ClearCredential(_ context.Context, accountID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account := r.accounts[accountID]
	account.EncryptedAccessToken = ""
	account.EncryptedRefreshToken = ""
	account.TokenExpiresAt = time.Time{}
	account.TokenScope = ""
	account.NeedsReauth = false
	r.accounts[accountID] = account
	return nil
}

func (r *memAccountRepo) MarkNeedsReauth(_ context.Context, accountID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account := r.accounts[accountID]
	account.NeedsReauth = true
	r.accounts[accountID] = account
	return nil
}

type fakeRefresher struct {
	mu       sync.Mutex
	response *oauth.TokenResponse
	err      error
	delay    time.Duration
	calls    atomic.Int64
	lastSeen string
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*oauth.TokenResponse, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen = refreshToken
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.response
	return &resp, nil
}

func (f *fakeRefresher) lastRefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen
}
