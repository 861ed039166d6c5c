package model

type UserRole string

const (
	Student UserRole = "student"
	Author  UserRole = "author"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	UUIDBase
	Name       string   `gorm:"size:255;not null" json:"name"`
	Email      string   `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string   `gorm:"size:255" json:"-"`
	Role       UserRole `gorm:"size:50;default:'student';index" json:"role"`
	Experience string   `gorm:"size:100" json:"experience"`
}

func (User) TableName() string {
	return "users"
}
