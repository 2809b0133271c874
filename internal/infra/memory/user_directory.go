package memory

import (
	"context"
	"sort"

	"lms-ranking-service/internal/domain"
)

// UserDirectory is an in-memory implementation of app.UserDirectory backed
// by a fixed user set (useful for tests/demos).
type UserDirectory struct {
	users map[string]domain.User
}

func NewUserDirectory(users []domain.User) *UserDirectory {
	byID := make(map[string]domain.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	return &UserDirectory{users: byID}
}

func (d *UserDirectory) GetUser(_ context.Context, userID string) (domain.User, error) {
	if user, ok := d.users[userID]; ok {
		return user, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (d *UserDirectory) ListUsers(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(d.users))
	for _, user := range d.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
