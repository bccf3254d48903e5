package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore. They match the names the
// config layer reads, so a .env file serves both.
const (
	EnvUsername = "SMDL_USERNAME"
	EnvPassword = "SMDL_PASSWORD"
	EnvSession  = "SMDL_SESSION_ID"
)

// EnvironmentStore is a read-only CredentialStore over SMDL_* variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. When SMDL_USERNAME is set it
// must match username; an empty username selects whatever is configured.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	password := os.Getenv(EnvPassword)
	session := os.Getenv(EnvSession)
	if password == "" && session == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := os.Getenv(EnvUsername)
	switch {
	case username == "" && envUser == "":
		return nil, ErrCredentialsNotFound
	case username == "":
		username = envUser
	case envUser != "" && envUser != username:
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     username,
		Password:     password,
		SessionToken: session,
		LastModified: time.Time{},
	}, nil
}

// List returns the environment account when one is fully configured
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
