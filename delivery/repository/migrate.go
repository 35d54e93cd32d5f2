package repository

import (
	"context"
	"time"
)

// Persistence models exist only for AutoMigrate; all data access goes
// through the storage adapter with canonical SQL.

type deliveryModel struct {
	ID                int64   `gorm:"primaryKey;autoIncrement"`
	Phone             string  `gorm:"not null;index:idx_deliveries_phone"`
	CustomerName      string
	Items             string
	AmountDue         float64 `gorm:"not null;default:0"`
	AmountPaid        float64 `gorm:"not null;default:0"`
	DeliveryFee       float64 `gorm:"not null;default:0"`
	Status            string  `gorm:"not null;default:'pending';index:idx_deliveries_status"`
	Quartier          string
	Notes             string
	Carrier           string
	AgencyID          *int64  `gorm:"index:idx_deliveries_agency"`
	GroupID           *int64  `gorm:"index:idx_deliveries_group"`
	WhatsappMessageID *string `gorm:"index:idx_deliveries_wa_message_id"`
	CreatedAt         time.Time `gorm:"not null;index:idx_deliveries_created_at"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (deliveryModel) TableName() string {
	return "deliveries"
}

type historyModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	DeliveryID int64  `gorm:"not null;index:idx_history_delivery"`
	Action     string `gorm:"not null"`
	Details    string
	Actor      string    `gorm:"not null;default:'bot'"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (historyModel) TableName() string {
	return "delivery_history"
}

func (s *DeliveryStore) InitSchema(ctx context.Context) error {
	return s.orm.WithContext(ctx).AutoMigrate(&deliveryModel{}, &historyModel{})
}
