package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adsightlabs/adsight-core/internal/domain"
	"github.com/adsightlabs/adsight-core/internal/domain/oauth"
)

// Compile-time interface assertions.
var (
	_ OAuthStateRepository = (*PostgresOAuthStateRepo)(nil)
	_ AccountRepository    = (*PostgresAccountRepo)(nil)
)

// PostgresOAuthStateRepo implements OAuthStateRepository on pgx.
type PostgresOAuthStateRepo struct {
	db *pgxpool.Pool
}

func NewPostgresOAuthStateRepo(pool *pgxpool.Pool) *PostgresOAuthStateRepo {
	return &PostgresOAuthStateRepo{db: pool}
}

func (r *PostgresOAuthStateRepo) SaveState(ctx context.Context, state oauth.OAuthState) error {
	const q = `
		INSERT INTO oauth_states (state, platform, user_identifier, created_at, expires_at, is_used)
		VALUES ($1, $2, $3, $4, $5, FALSE)`
	if _, err := r.db.Exec(ctx, q,
		state.State, state.Platform, state.UserIdentifier, state.CreatedAt, state.ExpiresAt,
	); err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// ConsumeState relies on a single conditional UPDATE so the used flag is a
// compare-and-set: under concurrent callback delivery only one caller gets
// the RETURNING row. A miss is re-read once to classify the failure.
func (r *PostgresOAuthStateRepo) ConsumeState(ctx context.Context, state, platform string) (string, error) {
	const consume = `
		UPDATE oauth_states
		SET is_used = TRUE
		WHERE state = $1 AND platform = $2 AND is_used = FALSE AND expires_at > $3
		RETURNING user_identifier`

	var userIdentifier string
	err := r.db.QueryRow(ctx, consume, state, platform, time.Now().UTC()).Scan(&userIdentifier)
	if err == nil {
		return userIdentifier, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("consume oauth state: %w", err)
	}
	return "", r.classifyConsumeMiss(ctx, state, platform)
}

func (r *PostgresOAuthStateRepo) classifyConsumeMiss(ctx context.Context, state, platform string) error {
	const lookup = `SELECT platform, is_used, expires_at FROM oauth_states WHERE state = $1`

	var (
		rowPlatform string
		isUsed      bool
		expiresAt   time.Time
	)
	err := r.db.QueryRow(ctx, lookup, state).Scan(&rowPlatform, &isUsed, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return oauth.ErrStateNotFound
	}
	if err != nil {
		return fmt.Errorf("classify oauth state: %w", err)
	}
	switch {
	case rowPlatform != platform:
		// Platform binding prevents cross-platform replay.
		return oauth.ErrStateNotFound
	case isUsed:
		return oauth.ErrStateAlreadyUsed
	case !time.Now().UTC().Before(expiresAt):
		return oauth.ErrStateExpired
	default:
		// Lost the CAS race between the UPDATE and this read.
		return oauth.ErrStateAlreadyUsed
	}
}

// PostgresAccountRepo implements AccountRepository on pgx.
type PostgresAccountRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: pool}
}

const accountColumns = `
	id, platform, advertiser_id,
	COALESCE(encrypted_access_token, ''), COALESCE(encrypted_refresh_token, ''),
	COALESCE(token_expires_at, 'epoch'::timestamptz), COALESCE(token_scope, ''),
	needs_reauth, created_at, updated_at`

func (r *PostgresAccountRepo) GetAccount(ctx context.Context, accountID int64) (domain.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.db.QueryRow(ctx, q, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("account %d: %w", accountID, oauth.ErrTokenNotFound)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepo) ListConnected(ctx context.Context, platform string) ([]domain.Account, error) {
	q := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE platform = $1 AND encrypted_access_token IS NOT NULL AND NOT needs_reauth
		ORDER BY id`
	rows, err := r.db.Query(ctx, q, platform)
	if err != nil {
		return nil, fmt.Errorf("list connected accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connected accounts: %w", err)
	}
	return accounts, nil
}

func (r *PostgresAccountRepo) SaveCredential(ctx context.Context, accountID int64, cred Credential) error {
	const q = `
		UPDATE accounts
		SET encrypted_access_token = $2,
		    encrypted_refresh_token = $3,
		    token_expires_at = $4,
		    token_scope = $5,
		    advertiser_id = COALESCE(NULLIF($6, ''), advertiser_id),
		    needs_reauth = FALSE,
		    updated_at = now()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q,
		accountID, cred.EncryptedAccessToken, cred.EncryptedRefreshToken,
		cred.TokenExpiresAt, cred.TokenScope, cred.AdvertiserID,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", accountID, oauth.ErrTokenNotFound)
	}
	return nil
}

func (r *PostgresAccountRepo) ClearCredential(ctx context.Context, accountID int64) error {
	const q = `
		UPDATE accounts
		SET encrypted_access_token = NULL,
		    encrypted_refresh_token = NULL,
		    token_expires_at = NULL,
		    token_scope = NULL,
		    needs_reauth = FALSE,
		    updated_at = now()
		WHERE id = $1`
	if _, err := r.db.Exec(ctx, q, accountID); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepo) MarkNeedsReauth(ctx context.Context, accountID int64) error {
	const q = `UPDATE accounts SET needs_reauth = TRUE, updated_at = now() WHERE id = $1`
	if _, err := r.db.Exec(ctx, q, accountID); err != nil {
		return fmt.Errorf("mark needs reauth: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.Platform, &a.AdvertiserID,
		&a.EncryptedAccessToken, &a.EncryptedRefreshToken,
		&a.TokenExpiresAt, &a.TokenScope,
		&a.NeedsReauth, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
