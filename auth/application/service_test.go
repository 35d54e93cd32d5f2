package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	"github.com/tkamdem/livrazone/auth/security"
	"github.com/tkamdem/livrazone/pkg/apperr"
)

type stubAgencyRepo struct {
	agencydomain.Repository
	byEmail map[string]*agencydomain.Agency
	byID    map[int64]*agencydomain.Agency
}

func (s *stubAgencyRepo) GetByEmail(_ context.Context, email string) (*agencydomain.Agency, error) {
	if a, ok := s.byEmail[email]; ok {
		return a, nil
	}
	return nil, agencydomain.ErrAgencyNotFound
}

func (s *stubAgencyRepo) GetByID(_ context.Context, id int64) (*agencydomain.Agency, error) {
	if a, ok := s.byID[id]; ok {
		return a, nil
	}
	return nil, agencydomain.ErrAgencyNotFound
}

func newTestService(t *testing.T, agencies ...*agencydomain.Agency) *AuthService {
	t.Helper()
	repo := &stubAgencyRepo{
		byEmail: map[string]*agencydomain.Agency{},
		byID:    map[int64]*agencydomain.Agency{},
	}
	for _, a := range agencies {
		repo.byEmail[a.Email] = a
		repo.byID[a.ID] = a
	}
	tokens := security.NewTokenManager("test-secret", time.Hour)
	return NewAuthService(repo, tokens, security.NewMemoryRevocationStore())
}

func activeAgency(t *testing.T) *agencydomain.Agency {
	t.Helper()
	hash, err := security.HashPassword("correct-horse")
	require.NoError(t, err)
	return &agencydomain.Agency{
		ID:           7,
		Email:        "ops@agency.cm",
		PasswordHash: hash,
		Role:         agencydomain.RoleAgency,
		Active:       true,
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, activeAgency(t))

	token, agency, err := svc.Login(ctx, "ops@agency.cm", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, int64(7), agency.ID)

	claims, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.AgencyID)
	assert.Equal(t, agencydomain.RoleAgency, claims.Role)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, activeAgency(t))

	_, _, errUnknown := svc.Login(ctx, "nobody@agency.cm", "correct-horse")
	_, _, errWrongPass := svc.Login(ctx, "ops@agency.cm", "wrong")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPass)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(errUnknown))
	assert.Equal(t, errUnknown.Error(), errWrongPass.Error())
}

func TestLoginRejectsInactiveAgency(t *testing.T) {
	a := activeAgency(t)
	a.Active = false
	svc := newTestService(t, a)

	_, _, err := svc.Login(context.Background(), "ops@agency.cm", "correct-horse")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, activeAgency(t))

	token, _, err := svc.Login(ctx, "ops@agency.cm", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.Authenticate(ctx, token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "revoked")
}

func TestAuthenticateExpiredSessionIsDistinct(t *testing.T) {
	ctx := context.Background()
	repo := &stubAgencyRepo{
		byEmail: map[string]*agencydomain.Agency{},
		byID:    map[int64]*agencydomain.Agency{},
	}
	a := activeAgency(t)
	repo.byEmail[a.Email] = a
	repo.byID[a.ID] = a
	tokens := security.NewTokenManager("test-secret", time.Nanosecond)
	svc := NewAuthService(repo, tokens, security.NewMemoryRevocationStore())

	token, _, err := svc.Login(ctx, "ops@agency.cm", "correct-horse")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = svc.Authenticate(ctx, token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	// The expired session tells the user to log in again; a forged token
	// does not get that hint.
	assert.Contains(t, apperr.MessageOf(err), "session expired")
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Authenticate(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestMe(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, activeAgency(t))

	agency, err := svc.Me(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "ops@agency.cm", agency.Email)

	_, err = svc.Me(ctx, 99)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}
