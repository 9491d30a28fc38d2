package gormstore

import (
	"time"

	"github.com/armtemiy/armlab/pkg/domain"
)

type userRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	TelegramUserID string `gorm:"uniqueIndex;not null"`
	Username       string
	IsAdmin        bool `gorm:"default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userRow) TableName() string { return "users" }

type diagnosticResultRow struct {
	ID        string                `gorm:"primaryKey;size:36"`
	UserID    *string               `gorm:"index;size:36"`
	TreeID    string                `gorm:"index"`
	Answers   map[string]string     `gorm:"serializer:json"`
	Result    domain.ResultSnapshot `gorm:"serializer:json"`
	CreatedAt time.Time             `gorm:"autoCreateTime"`
}

func (diagnosticResultRow) TableName() string { return "diagnostic_results" }

type purchaseRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"index"`
	ItemSlug    string `gorm:"index"`
	StarsAmount int
	Status      string `gorm:"index"`
	ChargeID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (purchaseRow) TableName() string { return "purchases" }

func (p purchaseRow) toDomain() *domain.Purchase {
	return &domain.Purchase{
		ID:        p.ID,
		UserID:    p.UserID,
		ItemSlug:  p.ItemSlug,
		Amount:    p.StarsAmount,
		Status:    domain.PurchaseStatus(p.Status),
		ChargeID:  p.ChargeID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// treeOverrideRow is a singleton row (ID 1) holding the override in wire form.
type treeOverrideRow struct {
	ID        uint   `gorm:"primaryKey"`
	Body      string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (treeOverrideRow) TableName() string { return "tree_overrides" }
