package oauth

import "errors"

var (
	// ErrStateNotFound signals an unknown state token or a platform mismatch.
	ErrStateNotFound = errors.New("oauth: state not found")
	// ErrStateExpired indicates the state token outlived its validity window.
	ErrStateExpired = errors.New("oauth: state expired")
	// ErrStateAlreadyUsed indicates a replayed callback for a consumed state.
	ErrStateAlreadyUsed = errors.New("oauth: state already used")
	// ErrTokenNotFound signals that no credential is stored for the account.
	ErrTokenNotFound = errors.New("oauth: token not found")
	// ErrDecryptionFailed indicates the stored ciphertext cannot be opened.
	ErrDecryptionFailed = errors.New("oauth: token decryption failed")
	// ErrRefreshFailed indicates the platform rejected the refresh exchange;
	// the account needs a full re-authorization.
	ErrRefreshFailed = errors.New("oauth: token refresh failed")
)
