package models

import (
	"time"
)

// PurchaseRecord is one purchased slice unit. EatenAt stays nil until the
// slice is logged as eaten.
type PurchaseRecord struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	SliceID     uint       `gorm:"not null" json:"slice_id"`
	SliceName   string     `gorm:"not null" json:"slice_name"`
	PurchasedAt time.Time  `gorm:"not null;index" json:"purchased_at"`
	EatenAt     *time.Time `json:"eaten_at"`
}

// TableName specifies the table name for GORM
func (PurchaseRecord) TableName() string {
	return "user_slices"
}

// Eaten reports whether the slice has been logged as eaten.
func (p PurchaseRecord) Eaten() bool {
	return p.EatenAt != nil
}

// MaxPurchaseUnits caps the number of slices bought in one request
const MaxPurchaseUnits = 100

// PurchaseItem is one cart line sent to the backend
type PurchaseItem struct {
	SliceID  uint `json:"slice_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"required,gte=1,max=100"`
}

// PurchaseRequest represents the request payload for buying slices
type PurchaseRequest struct {
	UserID uint           `json:"user_id" validate:"required"`
	Items  []PurchaseItem `json:"items" validate:"required,min=1,dive"`
}

// PurchaseResult is returned after a completed purchase
type PurchaseResult struct {
	Message string           `json:"message"`
	Coins   int              `json:"coins"`
	Records []PurchaseRecord `json:"records"`
}

// MarkEatenRequest represents the request payload for logging a slice as eaten
type MarkEatenRequest struct {
	ID     uint `json:"id" validate:"required"`
	UserID uint `json:"user_id" validate:"required"`
}

// MarkEatenResult carries the updated record and the owner's new eaten count
type MarkEatenResult struct {
	Message            string         `json:"message"`
	Record             PurchaseRecord `json:"record"`
	NumberOfPizzaEaten int            `json:"number_of_pizza_eaten"`
}
