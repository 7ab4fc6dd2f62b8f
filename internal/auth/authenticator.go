package auth

import (
	"context"
)

// Operator is the identity allowed to change the ledger.
type Operator struct {
	Name string
}

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, passkeys, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Authenticate verifies the credential and returns the operator if successful.
	Authenticate(ctx context.Context, name, credential string) (*Operator, error)
}
