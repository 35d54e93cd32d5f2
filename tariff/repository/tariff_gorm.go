package repository

import (
	"context"
	"strings"
	"time"

	"github.com/tkamdem/livrazone/core/tenant"
	"github.com/tkamdem/livrazone/tariff/domain"
	"gorm.io/gorm"
)

type tariffModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	AgencyID  int64  `gorm:"not null;uniqueIndex:idx_tariffs_agency_quartier,priority:1"`
	Quartier  string `gorm:"not null;uniqueIndex:idx_tariffs_agency_quartier,priority:2"`
	Amount    int64  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (tariffModel) TableName() string {
	return "tariffs"
}

type TariffGormRepository struct {
	db *gorm.DB
}

func NewTariffGormRepository(db *gorm.DB) *TariffGormRepository {
	return &TariffGormRepository{db: db}
}

func (r *TariffGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&tariffModel{})
}

func (r *TariffGormRepository) Create(ctx context.Context, tariff *domain.Tariff) error {
	now := time.Now()
	tariff.CreatedAt = now
	tariff.UpdatedAt = now
	tariff.Quartier = strings.TrimSpace(tariff.Quartier)

	m := tariffModel{
		AgencyID: tariff.AgencyID,
		Quartier: tariff.Quartier,
		Amount:   tariff.Amount,
		CreatedAt: tariff.CreatedAt,
		UpdatedAt: tariff.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "duplicate key value") {
			return domain.ErrDuplicateTariff
		}
		return err
	}
	tariff.ID = m.ID
	return nil
}

func (r *TariffGormRepository) Update(ctx context.Context, tariff *domain.Tariff, scope tenant.Scope) error {
	query := r.db.WithContext(ctx).Model(&tariffModel{}).Where("id = ?", tariff.ID)
	if !scope.Unrestricted {
		query = query.Where("agency_id = ?", scope.AgencyID)
	}
	result := query.Updates(map[string]interface{}{
		"amount":     tariff.Amount,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTariffNotFound
	}
	return nil
}

func (r *TariffGormRepository) Delete(ctx context.Context, id int64, scope tenant.Scope) error {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if !scope.Unrestricted {
		query = query.Where("agency_id = ?", scope.AgencyID)
	}
	result := query.Delete(&tariffModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTariffNotFound
	}
	return nil
}

func (r *TariffGormRepository) List(ctx context.Context, scope tenant.Scope) ([]*domain.Tariff, error) {
	var models []tariffModel
	query := r.db.WithContext(ctx).Model(&tariffModel{}).Order("quartier ASC")
	if !scope.Unrestricted {
		query = query.Where("agency_id = ?", scope.AgencyID)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	tariffs := make([]*domain.Tariff, len(models))
	for i, m := range models {
		tariffs[i] = &domain.Tariff{
			ID:        m.ID,
			AgencyID:  m.AgencyID,
			Quartier:  m.Quartier,
			Amount:    m.Amount,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return tariffs, nil
}

func (r *TariffGormRepository) Lookup(ctx context.Context, agencyID int64, quartier string) (*domain.Tariff, error) {
	var m tariffModel
	err := r.db.WithContext(ctx).
		Where("agency_id = ? AND UPPER(quartier) = UPPER(?)", agencyID, strings.TrimSpace(quartier)).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrTariffNotFound
		}
		return nil, err
	}
	return &domain.Tariff{
		ID:        m.ID,
		AgencyID:  m.AgencyID,
		Quartier:  m.Quartier,
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
