package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/tkamdem/livrazone/core/valkey"
)

// RevocationStore remembers logged-out tokens until they expire on
// their own.
type RevocationStore interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// tokens are stored hashed; the raw JWT never needs to be readable
// from the store.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryRevocationStore is the single-process fallback when no Valkey
// address is configured.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.revoked[tokenDigest(token)] = expiresAt
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	_, ok := s.revoked[tokenDigest(token)]
	return ok, nil
}

func (s *MemoryRevocationStore) sweepLocked() {
	now := time.Now()
	for k, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, k)
		}
	}
}

// ValkeyRevocationStore shares revocations across instances. Entries
// carry a TTL matching the token expiry so the store cleans itself.
type ValkeyRevocationStore struct {
	client *valkey.Client
	prefix string
}

func NewValkeyRevocationStore(client *valkey.Client) *ValkeyRevocationStore {
	return &ValkeyRevocationStore{
		client: client,
		prefix: client.Key("revoked") + ":",
	}
}

func (s *ValkeyRevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	cmd := s.client.Inner().B().Set().
		Key(s.prefix + tokenDigest(token)).
		Value("1").
		ExSeconds(int64(ttl.Seconds()) + 1).
		Build()
	return s.client.Inner().Do(ctx, cmd).Error()
}

func (s *ValkeyRevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	cmd := s.client.Inner().B().Get().Key(s.prefix + tokenDigest(token)).Build()
	err := s.client.Inner().Do(ctx, cmd).Error()
	if err != nil {
		if valkey.IsNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
