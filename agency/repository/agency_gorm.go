package repository

import (
	"context"
	"strings"
	"time"

	"github.com/tkamdem/livrazone/agency/domain"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type agencyModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex:idx_agencies_email;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:'agency'"`
	Active       bool   `gorm:"not null;default:true"`
	Code         *string `gorm:"uniqueIndex:idx_agencies_code"`
	Address      string
	Phone        string
	Logo         []byte
	CreatedAt    time.Time `gorm:"not null;index:idx_agencies_created_at"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (agencyModel) TableName() string {
	return "agencies"
}

// --- Repository Implementation ---

type AgencyGormRepository struct {
	db *gorm.DB
}

func NewAgencyGormRepository(db *gorm.DB) *AgencyGormRepository {
	return &AgencyGormRepository{db: db}
}

func (r *AgencyGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&agencyModel{})
}

func (r *AgencyGormRepository) Create(ctx context.Context, agency *domain.Agency) error {
	now := time.Now()
	if agency.CreatedAt.IsZero() {
		agency.CreatedAt = now
	}
	agency.UpdatedAt = now
	agency.Code = normalizeCode(agency.Code)

	model := toAgencyModel(agency)
	result := r.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			if strings.Contains(result.Error.Error(), "code") {
				return domain.ErrDuplicateCode
			}
			return domain.ErrDuplicateEmail
		}
		return result.Error
	}
	agency.ID = model.ID
	return nil
}

func (r *AgencyGormRepository) GetByID(ctx context.Context, id int64) (*domain.Agency, error) {
	var m agencyModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrAgencyNotFound
		}
		return nil, err
	}
	return fromAgencyModel(m), nil
}

func (r *AgencyGormRepository) GetByEmail(ctx context.Context, email string) (*domain.Agency, error) {
	var m agencyModel
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrAgencyNotFound
		}
		return nil, err
	}
	return fromAgencyModel(m), nil
}

func (r *AgencyGormRepository) GetByCode(ctx context.Context, code string) (*domain.Agency, error) {
	code = normalizeCode(code)
	if len(code) < 4 {
		return nil, domain.ErrAgencyNotFound
	}
	var m agencyModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrAgencyNotFound
		}
		return nil, err
	}
	return fromAgencyModel(m), nil
}

func (r *AgencyGormRepository) Update(ctx context.Context, agency *domain.Agency) error {
	agency.UpdatedAt = time.Now()
	agency.Code = normalizeCode(agency.Code)
	model := toAgencyModel(agency)

	result := r.db.WithContext(ctx).Model(&agencyModel{ID: agency.ID}).Select("*").Omit("id", "created_at").Updates(&model)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			if strings.Contains(result.Error.Error(), "code") {
				return domain.ErrDuplicateCode
			}
			return domain.ErrDuplicateEmail
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAgencyNotFound
	}
	return nil
}

func (r *AgencyGormRepository) List(ctx context.Context, includeInactive bool) ([]*domain.Agency, error) {
	var models []agencyModel
	query := r.db.WithContext(ctx).Model(&agencyModel{}).Order("created_at ASC")
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return fromAgencyModels(models), nil
}

func (r *AgencyGormRepository) ListActiveTenants(ctx context.Context) ([]*domain.Agency, error) {
	var models []agencyModel
	err := r.db.WithContext(ctx).
		Where("active = ? AND role = ?", true, string(domain.RoleAgency)).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromAgencyModels(models), nil
}

func (r *AgencyGormRepository) SoftDelete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Model(&agencyModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"active":     false,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAgencyNotFound
	}
	return nil
}

// --- Helpers & Mappers ---

// normalizeCode trims and upper-cases an agency code.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func isDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func toAgencyModel(a *domain.Agency) agencyModel {
	var code *string
	if a.Code != "" {
		c := a.Code
		code = &c
	}
	return agencyModel{
		ID:           a.ID,
		Name:         a.Name,
		Email:        strings.ToLower(strings.TrimSpace(a.Email)),
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		Active:       a.Active,
		Code:         code,
		Address:      a.Address,
		Phone:        a.Phone,
		Logo:         a.Logo,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func fromAgencyModel(m agencyModel) *domain.Agency {
	code := ""
	if m.Code != nil {
		code = *m.Code
	}
	return &domain.Agency{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		Active:       m.Active,
		Code:         code,
		Address:      m.Address,
		Phone:        m.Phone,
		Logo:         m.Logo,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromAgencyModels(models []agencyModel) []*domain.Agency {
	agencies := make([]*domain.Agency, len(models))
	for i, m := range models {
		agencies[i] = fromAgencyModel(m)
	}
	return agencies
}
