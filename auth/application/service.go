package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	"github.com/tkamdem/livrazone/auth/security"
	"github.com/tkamdem/livrazone/pkg/apperr"
)

// AuthService owns the login session lifecycle for agencies.
type AuthService struct {
	agencies    agencydomain.Repository
	tokens      *security.TokenManager
	revocations security.RevocationStore
}

func NewAuthService(agencies agencydomain.Repository, tokens *security.TokenManager, revocations security.RevocationStore) *AuthService {
	return &AuthService{agencies: agencies, tokens: tokens, revocations: revocations}
}

// Login checks credentials and issues a token. Wrong email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *agencydomain.Agency, error) {
	agency, err := s.agencies.GetByEmail(ctx, email)
	if errors.Is(err, agencydomain.ErrAgencyNotFound) {
		return "", nil, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		return "", nil, err
	}
	if !agency.Active {
		return "", nil, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	if !security.CheckPasswordHash(password, agency.PasswordHash) {
		return "", nil, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}

	token, _, err := s.tokens.Generate(agency)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Internal, err, "token generation failed")
	}
	logrus.Infof("[AUTH] Agency %d logged in", agency.ID)
	return token, agency, nil
}

// Logout revokes the token for its remaining lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return apperr.New(apperr.Unauthenticated, "invalid or expired token")
	}
	expiresAt := time.Now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, token, expiresAt); err != nil {
		return apperr.Wrap(apperr.Unavailable, err, "revocation store unreachable")
	}
	logrus.Infof("[AUTH] Agency %d logged out", claims.AgencyID)
	return nil
}

// Authenticate validates a bearer token against the signature and the
// revocation list and returns its claims.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*security.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if errors.Is(err, security.ErrTokenExpired) {
		return nil, apperr.New(apperr.Unauthenticated, "session expired, please log in again")
	}
	if err != nil {
		return nil, apperr.New(apperr.Unauthenticated, "invalid token")
	}
	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, err, "revocation store unreachable")
	}
	if revoked {
		return nil, apperr.New(apperr.Unauthenticated, "token revoked")
	}
	return claims, nil
}

// Me returns the profile behind the token's agency id.
func (s *AuthService) Me(ctx context.Context, agencyID int64) (*agencydomain.Agency, error) {
	agency, err := s.agencies.GetByID(ctx, agencyID)
	if errors.Is(err, agencydomain.ErrAgencyNotFound) {
		return nil, apperr.New(apperr.Unauthenticated, "account no longer exists")
	}
	return agency, err
}
