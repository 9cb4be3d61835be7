package domain

import "time"

// Account represents a connected social-media account. Token columns hold
// AES-GCM sealed ciphertext only; plaintext tokens never touch storage.
type Account struct {
	ID                    int64
	Platform              string
	AdvertiserID          string
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	TokenExpiresAt        time.Time
	TokenScope            string
	NeedsReauth           bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Connected reports whether the account currently holds a usable credential.
func (a Account) Connected() bool {
	return a.EncryptedAccessToken != "" && !a.NeedsReauth
}

// AccountOutcome records the result of collecting one account inside a batch.
type AccountOutcome struct {
	AccountID int64
	Err       error
}

// CollectionResult summarizes one collection cycle so a caller can write the
// batch-level collection log.
type CollectionResult struct {
	BatchID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Failed     int
	Outcomes   []AccountOutcome
}
