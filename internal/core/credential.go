package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/watchsec/commnode/internal/model"
	"github.com/watchsec/commnode/internal/platform"
)

const credentialColumns = `id, key_hash, key_prefix, access_level, description, created_at, last_used_at`

// CredentialService looks up and records API keys. Keys are addressed by
// their raw secret; only its hash reaches the database.
type CredentialService struct {
	db DB
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(db DB) *CredentialService {
	return &CredentialService{db: db}
}

// FindByKey returns the credential for secret, or an error matching
// ErrNotFound.
func (s *CredentialService) FindByKey(ctx context.Context, secret string) (*model.Credential, error) {
	var c model.Credential
	err := s.db.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM api_keys WHERE key_hash = $1`,
		platform.HashSecret(secret),
	).Scan(&c.ID, &c.KeyHash, &c.KeyPrefix, &c.AccessLevel, &c.Description, &c.CreatedAt, &c.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("api key %s not found", platform.SecretPrefix(secret))
	}
	if err != nil {
		return nil, Classify(fmt.Errorf("find api key: %w", err))
	}
	return &c, nil
}

// FindByKeyWithMinLevel returns the credential for secret only when it is
// admitted for an operation requiring level. Insufficient access is reported
// the same way as an unknown key.
func (s *CredentialService) FindByKeyWithMinLevel(ctx context.Context, secret string, level int) (*model.Credential, error) {
	c, err := s.FindByKey(ctx, secret)
	if err != nil {
		return nil, err
	}
	if !Admits(c.AccessLevel, level) {
		return nil, notFound("api key %s has no access at level %d", c.KeyPrefix, level)
	}
	return c, nil
}

// TouchLastUsed sets last_used_at to now. The timestamp never moves
// backwards, even when concurrent requests race on the same key.
func (s *CredentialService) TouchLastUsed(ctx context.Context, secret string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = GREATEST(COALESCE(last_used_at, now()), now()) WHERE key_hash = $1`,
		platform.HashSecret(secret),
	)
	if err != nil {
		return Classify(fmt.Errorf("touch api key: %w", err))
	}
	return nil
}

// Insert stores a new credential and returns its id.
func (s *CredentialService) Insert(ctx context.Context, secret string, level int, description *string) (int64, error) {
	return InsertCredential(ctx, s.db, secret, level, description)
}

// InsertCredential stores a credential through q, which may be a transaction.
// A duplicate secret fails with an error matching ErrConstraint.
func InsertCredential(ctx context.Context, q DB, secret string, level int, description *string) (int64, error) {
	if secret == "" {
		return 0, fmt.Errorf("insert api key: empty secret")
	}
	if level < 0 {
		return 0, fmt.Errorf("insert api key: negative access level %d", level)
	}

	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO api_keys (key_hash, key_prefix, access_level, description, created_at) VALUES ($1, $2, $3, $4, now()) RETURNING id`,
		platform.HashSecret(secret), platform.SecretPrefix(secret), level, description,
	).Scan(&id)
	if err != nil {
		return 0, Classify(fmt.Errorf("insert api key: %w", err))
	}
	return id, nil
}
