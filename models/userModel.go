package models

import "gorm.io/gorm"

const (
	RoleFarmer   = "FARMER"
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

const (
	AuthProviderCredentials = "credentials"
	AuthProviderGoogle      = "google"
)

// Setup states. OAuth sign-ups start in SetupPendingRoleSelection until the
// user picks a role once.
const (
	SetupPendingRoleSelection = "PENDING_ROLE_SELECTION"
	SetupComplete             = "COMPLETE"
)

type User struct {
	gorm.Model
	Name                  string    `json:"name"`
	Email                 string    `json:"email" gorm:"uniqueIndex;size:191;not null"`
	Password              string    `json:"-"`
	Image                 string    `json:"image"`
	Role                  string    `json:"role" gorm:"size:16;not null;default:CUSTOMER"`
	FarmName              *string   `json:"farmName"`
	FarmLocation          *string   `json:"farmLocation"`
	AuthProvider          string    `json:"authProvider" gorm:"size:16;not null;default:credentials"`
	SetupStatus           string    `json:"setupStatus" gorm:"size:32;not null;default:COMPLETE"`
	ProfileSetupCompleted bool      `json:"profileSetupCompleted"`
	Products              []Product `json:"-" gorm:"foreignKey:FarmerID"`
}

type LoginData struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type RegisterData struct {
	Name         string `json:"name" binding:"required,min=2"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         string `json:"role" binding:"required,oneof=FARMER CUSTOMER"`
	FarmName     string `json:"farmName"`
	FarmLocation string `json:"farmLocation"`
}

type RoleSetupData struct {
	Role         string `json:"role" binding:"required,oneof=FARMER CUSTOMER"`
	FarmName     string `json:"farmName"`
	FarmLocation string `json:"farmLocation"`
}

// Session is the authenticated identity carried by every request token.
type Session struct {
	ID    uint   `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

func IsValidRole(role string) bool {
	switch role {
	case RoleFarmer, RoleCustomer, RoleAdmin:
		return true
	}
	return false
}
