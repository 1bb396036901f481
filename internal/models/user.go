package models

import (
	"time"
)

// Gender values accepted by the registration form and the backend.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// User represents a challenge participant
type User struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	Name               string    `gorm:"not null;index" json:"name"`
	Age                int       `gorm:"not null" json:"age"`
	Gender             string    `gorm:"not null" json:"gender"`
	Coins              int       `gorm:"not null;default:100;check:coins >= 0" json:"coins"`
	NumberOfPizzaEaten int       `gorm:"not null;default:0;index" json:"number_of_pizza_eaten"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// CreateUserRequest represents the request payload for registering a user.
// Balance and eaten count are assigned by the backend.
type CreateUserRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Age    int    `json:"age" validate:"required,gt=0"`
	Gender string `json:"gender" validate:"required,oneof=male female"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MessageResponse is returned by endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}
