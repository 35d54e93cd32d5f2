package repository

import (
	"context"
	"strings"
	"time"

	"github.com/tkamdem/livrazone/core/tenant"
	"github.com/tkamdem/livrazone/group/domain"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type groupModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	AgencyID   int64  `gorm:"not null;index:idx_groups_agency"`
	ExternalID string `gorm:"uniqueIndex:idx_groups_external_id;not null"`
	Name       string
	Active     bool      `gorm:"not null;default:true"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (groupModel) TableName() string {
	return "groups"
}

// --- Repository Implementation ---

type GroupGormRepository struct {
	db *gorm.DB
}

func NewGroupGormRepository(db *gorm.DB) *GroupGormRepository {
	return &GroupGormRepository{db: db}
}

func (r *GroupGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&groupModel{})
}

func (r *GroupGormRepository) Create(ctx context.Context, group *domain.Group) error {
	now := time.Now()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	model := toGroupModel(group)
	result := r.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if isDuplicate(result.Error) {
			return domain.ErrDuplicateExternalID
		}
		return result.Error
	}
	group.ID = model.ID
	return nil
}

func (r *GroupGormRepository) GetByID(ctx context.Context, id int64, scope tenant.Scope) (*domain.Group, error) {
	var m groupModel
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if !scope.Unrestricted {
		query = query.Where("agency_id = ?", scope.AgencyID)
	}
	if err := query.First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	return fromGroupModel(m), nil
}

func (r *GroupGormRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Group, error) {
	var m groupModel
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	return fromGroupModel(m), nil
}

func (r *GroupGormRepository) List(ctx context.Context, scope tenant.Scope) ([]*domain.Group, error) {
	var models []groupModel
	query := r.db.WithContext(ctx).Model(&groupModel{}).Order("created_at ASC")
	if !scope.Unrestricted {
		query = query.Where("agency_id = ?", scope.AgencyID)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return fromGroupModels(models), nil
}

func (r *GroupGormRepository) ListActiveByAgency(ctx context.Context, agencyID int64) ([]*domain.Group, error) {
	var models []groupModel
	err := r.db.WithContext(ctx).
		Where("agency_id = ? AND active = ?", agencyID, true).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromGroupModels(models), nil
}

func (r *GroupGormRepository) Update(ctx context.Context, group *domain.Group, scope tenant.Scope) error {
	group.UpdatedAt = time.Now()
	query := r.db.WithContext(ctx).Model(&groupModel{}).Where("id = ?", group.ID)
	if !scope.Unrestricted {
		query = query.Where("agency_id = ?", scope.AgencyID)
	}
	result := query.Updates(map[string]interface{}{
		"name":       group.Name,
		"active":     group.Active,
		"updated_at": group.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (r *GroupGormRepository) SoftDelete(ctx context.Context, id int64, scope tenant.Scope) error {
	query := r.db.WithContext(ctx).Model(&groupModel{}).Where("id = ?", id)
	if !scope.Unrestricted {
		query = query.Where("agency_id = ?", scope.AgencyID)
	}
	result := query.Updates(map[string]interface{}{
		"active":     false,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (r *GroupGormRepository) HardDelete(ctx context.Context, id int64, scope tenant.Scope) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ?", id)
		if !scope.Unrestricted {
			query = query.Where("agency_id = ?", scope.AgencyID)
		}
		result := query.Delete(&groupModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrGroupNotFound
		}
		// Deliveries are detached, never cascaded.
		return tx.Exec("UPDATE deliveries SET group_id = NULL WHERE group_id = ?", id).Error
	})
}

// --- Helpers & Mappers ---

func isDuplicate(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func toGroupModel(g *domain.Group) groupModel {
	return groupModel{
		ID:         g.ID,
		AgencyID:   g.AgencyID,
		ExternalID: g.ExternalID,
		Name:       g.Name,
		Active:     g.Active,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

func fromGroupModel(m groupModel) *domain.Group {
	return &domain.Group{
		ID:         m.ID,
		AgencyID:   m.AgencyID,
		ExternalID: m.ExternalID,
		Name:       m.Name,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromGroupModels(models []groupModel) []*domain.Group {
	groups := make([]*domain.Group, len(models))
	for i, m := range models {
		groups[i] = fromGroupModel(m)
	}
	return groups
}
