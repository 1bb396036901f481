package models

// PizzaSlice represents a catalog item purchasable with coins
type PizzaSlice struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Price       int    `gorm:"not null;check:price >= 0" json:"price"`
	Description string `json:"description"`
}

// TableName specifies the table name for GORM
func (PizzaSlice) TableName() string {
	return "pizza_slices"
}
