package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	domainoauth "github.com/adsightlabs/adsight-core/internal/domain/oauth"
	"github.com/adsightlabs/adsight-core/internal/platform"
	"github.com/adsightlabs/adsight-core/internal/repository"
	"github.com/adsightlabs/adsight-core/internal/vault"
)

// ConnectService drives the OAuth connect lifecycle for platform accounts.
type ConnectService interface {
	StartAuthorization(ctx context.Context, platformName string, accountID int64) (*AuthorizationIntent, error)
	HandleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error)
	Disconnect(ctx context.Context, accountID int64) error
}

// AuthorizationIntent is the prepared authorization URL plus its CSRF state.
type AuthorizationIntent struct {
	AuthorizationURL string
	State            string
}

// CallbackInput captures the platform redirect parameters.
type CallbackInput struct {
	Platform string
	State    string
	Code     string
}

// CallbackResult identifies the account whose credentials were stored.
type CallbackResult struct {
	AccountID      int64
	UserIdentifier string
}

type connectService struct {
	states      repository.OAuthStateRepository
	accounts    repository.AccountRepository
	oauthClient platform.OAuthClient
	vault       *vault.Vault
	logger      *zap.Logger
}

// NewConnectService wires the connect service implementation.
func NewConnectService(
	states repository.OAuthStateRepository,
	accounts repository.AccountRepository,
	oauthClient platform.OAuthClient,
	tokenVault *vault.Vault,
	logger *zap.Logger,
) ConnectService {
	if logger == nil {
		logger = zap.L()
	}
	return &connectService{
		states:      states,
		accounts:    accounts,
		oauthClient: oauthClient,
		vault:       tokenVault,
		logger:      logger,
	}
}

func (s *connectService) StartAuthorization(ctx context.Context, platformName string, accountID int64) (*AuthorizationIntent, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(account.Platform, platformName) {
		return nil, fmt.Errorf("account %d is bound to platform %q: %w",
			accountID, account.Platform, domainoauth.ErrStateNotFound)
	}

	state, err := secureRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	now := time.Now().UTC()
	if err := s.states.SaveState(ctx, domainoauth.OAuthState{
		State:          state,
		Platform:       account.Platform,
		UserIdentifier: strconv.FormatInt(accountID, 10),
		CreatedAt:      now,
		ExpiresAt:      now.Add(domainoauth.StateTTL),
	}); err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}

	authURL, err := s.oauthClient.AuthorizationURL(state)
	if err != nil {
		return nil, fmt.Errorf("build authorization url: %w", err)
	}
	return &AuthorizationIntent{AuthorizationURL: authURL, State: state}, nil
}

// HandleCallback consumes the state exactly once, exchanges the code, and
// stores the sealed credentials. State failures propagate typed: they gate
// credential issuance and must never be defaulted away.
func (s *connectService) HandleCallback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	if strings.TrimSpace(in.State) == "" || strings.TrimSpace(in.Code) == "" {
		return nil, domainoauth.ErrStateNotFound
	}

	userIdentifier, err := s.states.ConsumeState(ctx, in.State, in.Platform)
	if err != nil {
		return nil, err
	}
	accountID, err := strconv.ParseInt(userIdentifier, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("state user identifier %q: %w", userIdentifier, domainoauth.ErrStateNotFound)
	}

	token, err := s.oauthClient.ExchangeCode(ctx, in.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	if err := s.vault.Store(ctx, accountID, token); err != nil {
		return nil, err
	}
	s.logger.Info("account connected", zap.Int64("account_id", accountID), zap.String("platform", in.Platform))

	return &CallbackResult{AccountID: accountID, UserIdentifier: userIdentifier}, nil
}

func (s *connectService) Disconnect(ctx context.Context, accountID int64) error {
	if err := s.vault.Disconnect(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("account disconnected", zap.Int64("account_id", accountID))
	return nil
}

func secureRandomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
