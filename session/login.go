package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactive           = errors.New("account is inactive")
)

// Authenticate verifies a username and password against the users table.
func Authenticate(ctx context.Context, store db.Store, username, password string) (models.User, error) {
	if username == "" || password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	rows, err := store.Query(ctx, models.TableUsers, models.Row{"username": username})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to look up user: %w", err)
	}
	if len(rows) == 0 {
		return models.User{}, ErrInvalidCredentials
	}

	user := db.DecodeUser(rows[0])
	if user.ID == models.BroadcastID {
		return models.User{}, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(password, user.PasswordHash); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if user.Status != models.UserActive {
		return models.User{}, ErrInactive
	}
	return user, nil
}
