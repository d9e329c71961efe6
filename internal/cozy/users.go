package cozy

import (
	"context"
	"errors"
	"strings"

	"cozy/internal/domain/users"
)

func (s *Service) RegisterUser(ctx context.Context, username, email, password string) (*users.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, InvalidArgument("`username`, `email` and `password` are required")
	}

	user := &users.User{
		Username: username,
		Email:    email,
	}
	if err := user.Password.Set(password); err != nil {
		return nil, Internal(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fromStore(err)
	}
	return user, nil
}

// Authenticate checks a username and password pair. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, Unauthorized("invalid username or password")
		}
		return nil, fromStore(err)
	}

	if err := user.Password.Compare(password); err != nil {
		return nil, Unauthorized("invalid username or password")
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*users.User, error) {
	if err := checkID("userId", id); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err)
	}
	return user, nil
}
