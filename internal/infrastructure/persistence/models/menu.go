package models

import (
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MenuItemModel maps the menu domain's items table. This service only reads it.
type MenuItemModel struct {
	ID           string          `gorm:"type:varchar(64);primary_key"`
	RestaurantID string          `gorm:"type:varchar(64);not null;index"`
	Name         string          `gorm:"type:varchar(255);not null"`
	Category     string          `gorm:"type:varchar(100)"`
	Description  string          `gorm:"type:text"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	InStock      bool            `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (MenuItemModel) TableName() string {
	return "menu_items"
}

// ToDomain converts the persistence model to a domain MenuItem
func (m *MenuItemModel) ToDomain() delivery.MenuItem {
	return delivery.MenuItem{
		ID:          m.ID,
		Name:        m.Name,
		Category:    m.Category,
		Description: m.Description,
		Price:       m.Price,
		InStock:     m.InStock,
	}
}
