package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 12
	minPasswordLength = 12
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 12 characters")
	ErrAdminDisabled    = errors.New("admin login is not configured")
	ErrBadCredentials   = errors.New("invalid credentials")
)

type PasswordService struct {
	cost int
}

func NewPasswordService() *PasswordService {
	return &PasswordService{
		cost: bcryptCost,
	}
}

// HashPassword hashes a plain text password using bcrypt
func (s *PasswordService) HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckAdmin compares password against the configured admin hash.
// An empty hash disables admin login entirely.
func (s *PasswordService) CheckAdmin(hashedPassword, password string) error {
	if hashedPassword == "" {
		return ErrAdminDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}
