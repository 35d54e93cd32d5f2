package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/tkamdem/livrazone/agency/domain"
	"github.com/tkamdem/livrazone/pkg/apperr"
	"golang.org/x/crypto/bcrypt"
)

// AgencyService owns tenant lifecycle: creation, partial updates and
// soft-deletion. Only the super-admin surface reaches it.
type AgencyService struct {
	repo domain.Repository
}

func NewAgencyService(repo domain.Repository) *AgencyService {
	return &AgencyService{repo: repo}
}

type CreateAgencyInput struct {
	Name     string
	Email    string
	Password string
	Code     string
	Address  string
	Phone    string
	Role     domain.Role
}

func (s *AgencyService) Create(ctx context.Context, in CreateAgencyInput) (*domain.Agency, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to hash password")
	}

	role := in.Role
	if role == "" {
		role = domain.RoleAgency
	}

	agency := &domain.Agency{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
		Code:         in.Code,
		Address:      in.Address,
		Phone:        in.Phone,
	}
	if err := s.repo.Create(ctx, agency); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) || errors.Is(err, domain.ErrDuplicateCode) {
			return nil, apperr.Wrap(apperr.Conflict, err, err.Error())
		}
		return nil, err
	}
	logrus.Infof("[AGENCY] Created agency %d (%s)", agency.ID, agency.Name)
	return agency, nil
}

type UpdateAgencyInput struct {
	Name     *string
	Email    *string
	Password *string
	Code     *string
	Address  *string
	Phone    *string
	Active   *bool
}

func (s *AgencyService) Update(ctx context.Context, id int64, in UpdateAgencyInput) (*domain.Agency, error) {
	agency, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAgencyNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "agency not found")
		}
		return nil, err
	}

	if in.Name != nil {
		agency.Name = *in.Name
	}
	if in.Email != nil {
		agency.Email = *in.Email
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "failed to hash password")
		}
		agency.PasswordHash = string(hash)
	}
	if in.Code != nil {
		agency.Code = *in.Code
	}
	if in.Address != nil {
		agency.Address = *in.Address
	}
	if in.Phone != nil {
		agency.Phone = *in.Phone
	}
	if in.Active != nil {
		agency.Active = *in.Active
	}

	if err := s.repo.Update(ctx, agency); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) || errors.Is(err, domain.ErrDuplicateCode) {
			return nil, apperr.Wrap(apperr.Conflict, err, err.Error())
		}
		return nil, err
	}
	return agency, nil
}

func (s *AgencyService) Get(ctx context.Context, id int64) (*domain.Agency, error) {
	agency, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAgencyNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "agency not found")
		}
		return nil, err
	}
	return agency, nil
}

func (s *AgencyService) List(ctx context.Context) ([]*domain.Agency, error) {
	return s.repo.List(ctx, true)
}

// SoftDelete clears the active flag; agency rows are never removed.
func (s *AgencyService) SoftDelete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrAgencyNotFound) {
			return apperr.Wrap(apperr.NotFound, err, "agency not found")
		}
		return err
	}
	logrus.Infof("[AGENCY] Soft-deleted agency %d", id)
	return nil
}

// JoinByCode resolves an agency code to its public profile. Sensitive
// fields never leave this call.
func (s *AgencyService) JoinByCode(ctx context.Context, code string) (*domain.PublicProfile, error) {
	agency, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrAgencyNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, err, "agency not found")
		}
		return nil, err
	}
	if !agency.Active {
		return nil, apperr.New(apperr.NotFound, "agency not found")
	}
	profile := agency.Public()
	return &profile, nil
}
