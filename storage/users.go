package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/bravesteps/models"
	"github.com/cppla/bravesteps/utils"
)

const minPasscodeLen = 4

var (
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidUserSpec = errors.New("invalid user")
)

// NewUser describes an account to provision.
type NewUser struct {
	Name     string
	Passcode string
	Role     string
	Email    string
	TimeZone string
}

// CreateUser validates spec, hashes the passcode and inserts the user with all-zero progression.
func CreateUser(ctx context.Context, db *gorm.DB, spec NewUser) (models.User, error) {
	name := strings.TrimSpace(spec.Name)
	passcode := strings.TrimSpace(spec.Passcode)
	role := spec.Role
	if role == "" {
		role = models.RoleClient
	}
	switch {
	case name == "":
		return models.User{}, fmt.Errorf("%w: name is required", ErrInvalidUserSpec)
	case len(passcode) < minPasscodeLen:
		return models.User{}, fmt.Errorf("%w: passcode needs at least %d characters", ErrInvalidUserSpec, minPasscodeLen)
	case role != models.RoleClient && role != models.RoleAdmin:
		return models.User{}, fmt.Errorf("%w: role must be client or admin", ErrInvalidUserSpec)
	}
	if spec.TimeZone != "" {
		if _, err := time.LoadLocation(spec.TimeZone); err != nil {
			return models.User{}, fmt.Errorf("%w: unknown time zone %q", ErrInvalidUserSpec, spec.TimeZone)
		}
	}

	hash, err := utils.HashPasscode(passcode)
	if err != nil {
		return models.User{}, fmt.Errorf("hash passcode: %w", err)
	}
	u := models.User{
		Name:         name,
		Email:        strings.TrimSpace(spec.Email),
		PasscodeHash: hash,
		Role:         role,
		TimeZone:     spec.TimeZone,
	}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		if IsDuplicateKey(err) {
			return models.User{}, fmt.Errorf("%w: %s", ErrUserExists, name)
		}
		return models.User{}, err
	}
	return u, nil
}
