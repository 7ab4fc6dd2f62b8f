package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid name or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// PasswordAuthenticator checks a single operator's password against a bcrypt hash.
type PasswordAuthenticator struct {
	name string
	hash []byte
}

// NewPasswordAuthenticator creates an authenticator for the named operator.
// passwordHash must be a bcrypt hash, as produced by HashPassword.
func NewPasswordAuthenticator(name, passwordHash string) (*PasswordAuthenticator, error) {
	if name == "" {
		return nil, errors.New("operator name is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	return &PasswordAuthenticator{name: name, hash: []byte(passwordHash)}, nil
}

// ValidateCredential checks if the password meets minimum requirements.
func ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword validates and bcrypt-hashes a password.
func HashPassword(password string) (string, error) {
	if err := ValidateCredential(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Authenticate verifies the name and password, returning the operator if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, name, credential string) (*Operator, error) {
	nameOK := subtle.ConstantTimeCompare([]byte(name), []byte(a.name)) == 1

	// The hash is compared even when the name is wrong.
	err := bcrypt.CompareHashAndPassword(a.hash, []byte(credential))
	if err != nil || !nameOK {
		return nil, ErrInvalidCredentials
	}

	return &Operator{Name: a.name}, nil
}
