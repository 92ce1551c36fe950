package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Kariqs/farmmarket-api/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

// ProfileStatus tells the client whether the user still has to pick a role.
type ProfileStatus struct {
	ProfileSetupCompleted bool   `json:"profileSetupCompleted"`
	Role                  string `json:"role"`
	NeedsSetup            bool   `json:"needsSetup"`
	IsOAuthUser           bool   `json:"isOAuthUser"`
}

type UserService struct {
	db     *gorm.DB
	tokens *Tokens
	log    *zap.Logger
}

func NewUserService(db *gorm.DB, tokens *Tokens, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{db: db, tokens: tokens, log: log}
}

func (s *UserService) Register(ctx context.Context, data models.RegisterData) (*models.User, error) {
	data.Name = strings.TrimSpace(data.Name)
	email, err := normaliseEmail(data.Email)
	if err != nil {
		return nil, err
	}

	switch {
	case len(data.Name) < 2:
		return nil, fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
	case len(data.Password) < 6:
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	case data.Role != models.RoleFarmer && data.Role != models.RoleCustomer:
		return nil, fmt.Errorf("%w: role must be FARMER or CUSTOMER", ErrValidation)
	}
	farmName, farmLocation, err := farmDetails(data.Role, data.FarmName, data.FarmLocation)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: user already exists", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Name:                  data.Name,
		Email:                 email,
		Password:              string(hash),
		Role:                  data.Role,
		FarmName:              farmName,
		FarmLocation:          farmLocation,
		AuthProvider:          models.AuthProviderCredentials,
		SetupStatus:           models.SetupComplete,
		ProfileSetupCompleted: true,
	}
	// The count above can race another sign-up; the unique index decides.
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Uint("userId", user.ID), zap.String("role", user.Role))
	return &user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return nil, err
	}
	if user.Password == "" {
		return nil, fmt.Errorf("%w: this account signs in with Google", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	return &user, nil
}

func (s *UserService) IssueToken(user models.User) (string, error) {
	return s.tokens.Issue(user)
}

// ProvisionOAuthUser finds or creates the account behind a Google sign-in.
// New accounts must choose a role before they can use the marketplace.
func (s *UserService) ProvisionOAuthUser(ctx context.Context, email, name, image string) (*models.User, error) {
	email, err := normaliseEmail(email)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var user models.User
	err = db.Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.Image == "" && image != "" {
			if err := db.Model(&user).Update("image", image).Error; err != nil {
				s.log.Warn("failed to store profile image", zap.Uint("userId", user.ID), zap.Error(err))
			}
		}
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	user = models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Image:        image,
		Role:         models.RoleCustomer,
		AuthProvider: models.AuthProviderGoogle,
		SetupStatus:  models.SetupPendingRoleSelection,
	}
	if user.Name == "" {
		user.Name = strings.SplitN(email, "@", 2)[0]
	}
	if err := db.Create(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// A parallel callback created the account first.
		var winner models.User
		if err := db.Where("email = ?", email).First(&winner).Error; err != nil {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		return &winner, nil
	}

	s.log.Info("oauth user provisioned", zap.Uint("userId", user.ID))
	return &user, nil
}

// CompleteRoleSetup records the role an OAuth user picked. It succeeds once.
func (s *UserService) CompleteRoleSetup(ctx context.Context, userID uint, data models.RoleSetupData) (*models.User, string, error) {
	if userID == 0 {
		return nil, "", ErrUnauthorized
	}
	if data.Role != models.RoleFarmer && data.Role != models.RoleCustomer {
		return nil, "", fmt.Errorf("%w: role must be FARMER or CUSTOMER", ErrValidation)
	}
	farmName, farmLocation, err := farmDetails(data.Role, data.FarmName, data.FarmLocation)
	if err != nil {
		return nil, "", err
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", ErrNotFound, userID)
			}
			return err
		}
		if user.SetupStatus != models.SetupPendingRoleSelection {
			return fmt.Errorf("%w: role has already been chosen", ErrInvalidState)
		}

		result := tx.Model(&models.User{}).
			Where("id = ? AND setup_status = ?", userID, models.SetupPendingRoleSelection).
			Updates(map[string]any{
				"role":                    data.Role,
				"farm_name":               farmName,
				"farm_location":           farmLocation,
				"setup_status":            models.SetupComplete,
				"profile_setup_completed": true,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: role has already been chosen", ErrInvalidState)
		}

		user.Role = data.Role
		user.FarmName = farmName
		user.FarmLocation = farmLocation
		user.SetupStatus = models.SetupComplete
		user.ProfileSetupCompleted = true
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	s.log.Info("role setup completed", zap.Uint("userId", user.ID), zap.String("role", user.Role))
	return &user, token, nil
}

func (s *UserService) ProfileStatus(ctx context.Context, userID uint) (*ProfileStatus, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, err
	}

	return &ProfileStatus{
		ProfileSetupCompleted: user.ProfileSetupCompleted,
		Role:                  user.Role,
		NeedsSetup:            user.SetupStatus == models.SetupPendingRoleSelection,
		IsOAuthUser:           user.AuthProvider == models.AuthProviderGoogle,
	}, nil
}

func normaliseEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return email, nil
}

// farmDetails returns the farm fields a role needs; customers store none.
func farmDetails(role, name, location string) (*string, *string, error) {
	if role != models.RoleFarmer {
		return nil, nil, nil
	}
	name, location = strings.TrimSpace(name), strings.TrimSpace(location)
	if name == "" || location == "" {
		return nil, nil, fmt.Errorf("%w: farmers need a farm name and location", ErrValidation)
	}
	return &name, &location, nil
}
