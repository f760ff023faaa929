package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypeFarmer   UserType = "farmer"
	UserTypeProvider UserType = "provider"
)

// Valid reports whether t is a known actor role.
func (t UserType) Valid() bool {
	return t == UserTypeFarmer || t == UserTypeProvider
}

// User is the identity record behind a farmer or provider id. The lifecycle
// core only reads it as a display snapshot (name, phone).
type User struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name         string    `json:"name" gorm:"column:name;not null"`
	Email        string    `json:"email,omitempty" gorm:"column:email;uniqueIndex;not null"`
	Password     string    `json:"-" gorm:"-"` // Temporary field for password handling
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	Phone        string    `json:"phone" gorm:"column:phone"`
	UserType     UserType  `json:"userType" gorm:"column:user_type;type:varchar(16);not null"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
