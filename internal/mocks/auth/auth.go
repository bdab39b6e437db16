// Package auth provides hand-written test doubles for the auth ports.
package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/cloudpivot/ssogate/internal/domain/auth"
	"github.com/cloudpivot/ssogate/internal/domain/model"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	"github.com/cloudpivot/ssogate/internal/ports"
)

// MockProviderGateway is a scriptable ports.ProviderGateway.
type MockProviderGateway struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (string, string, string, error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	mu            sync.Mutex
	BeginCalls    []ports.BeginInput
	ExchangeCalls []ports.ExchangeInput
}

var _ ports.ProviderGateway = (*MockProviderGateway)(nil)

func (m *MockProviderGateway) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	m.mu.Lock()
	m.BeginCalls = append(m.BeginCalls, in)
	m.mu.Unlock()
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	return "https://idp.example.com/authorize?state=test-state", "test-state", "test-nonce", nil
}

func (m *MockProviderGateway) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	m.mu.Lock()
	m.ExchangeCalls = append(m.ExchangeCalls, in)
	m.mu.Unlock()
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return domainauth.Identity{
		Email:    "user@example.com",
		Name:     "Example User",
		Provider: in.Provider,
		Claims:   domainauth.Claims{"email": "user@example.com", "name": "Example User"},
	}, nil
}

// MemoryUserStore is an in-memory ports.UserStore keyed by email, mirroring
// the repository's upsert semantics.
type MemoryUserStore struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
}

var _ ports.UserStore = (*MemoryUserStore)(nil)

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byEmail: make(map[string]*model.User)}
}

func (s *MemoryUserStore) Upsert(_ context.Context, in ports.UpsertUserInput) (*model.User, error) {
	if in.Email == "" {
		return nil, apperrors.Validation("email is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	metadata, _ := json.Marshal(in.Claims)

	if existing, ok := s.byEmail[in.Email]; ok {
		if in.Name != "" {
			existing.Name = in.Name
		}
		existing.Provider = in.Provider
		existing.SSOMetadata = metadata
		existing.UpdatedAt = now
		out := *existing
		return &out, nil
	}

	user := &model.User{
		ID:          uuid.NewString(),
		Email:       in.Email,
		Name:        in.Name,
		Provider:    in.Provider,
		SSOMetadata: metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byEmail[in.Email] = user
	out := *user
	return &out, nil
}

func (s *MemoryUserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byEmail {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byEmail[email]; ok {
		out := *u
		return &out, nil
	}
	return nil, apperrors.NotFound("user")
}

// Count reports the number of stored users.
func (s *MemoryUserStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

// MemoryTokenStore is an in-memory ports.TokenStore keyed by credential value.
type MemoryTokenStore struct {
	mu      sync.Mutex
	byValue map[string]*model.Token
}

var _ ports.TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{byValue: make(map[string]*model.Token)}
}

func (s *MemoryTokenStore) Create(_ context.Context, in ports.CreateTokenInput) (*model.Token, error) {
	if in.UserID == "" || in.AccessToken == "" {
		return nil, apperrors.Validation("user id and access token are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byValue[in.AccessToken]; ok {
		return nil, apperrors.Conflict("access_token")
	}
	tok := &model.Token{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		AccessToken: in.AccessToken,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   time.Now(),
	}
	s.byValue[in.AccessToken] = tok
	out := *tok
	return &out, nil
}

func (s *MemoryTokenStore) GetByValue(_ context.Context, value string) (*model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.byValue[value]; ok {
		out := *tok
		return &out, nil
	}
	return nil, apperrors.NotFound("token")
}

func (s *MemoryTokenStore) DeleteByValue(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byValue, value)
	return nil
}

// Count reports the number of stored credential records.
func (s *MemoryTokenStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byValue)
}

// MemoryTokenCache is an in-memory ports.TokenCache honoring TTLs.
type MemoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

var _ ports.TokenCache = (*MemoryTokenCache)(nil)

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{entries: make(map[string]time.Time)}
}

func (c *MemoryTokenCache) MarkValid(_ context.Context, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[value] = time.Now().Add(ttl)
	return nil
}

func (c *MemoryTokenCache) Invalidate(_ context.Context, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, value)
	return nil
}

func (c *MemoryTokenCache) IsValid(_ context.Context, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.entries[value]
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(c.entries, value)
		return false, nil
	}
	return true, nil
}
