package repository

import (
	"context"
	"strings"

	"github.com/yeremiapane/restaurant-pos/models"
)

type UserRepository struct {
	base
}

// FindByName returns nil when no user has the name.
func (r *UserRepository) FindByName(ctx context.Context, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()

	var users []models.User
	if err := db.Where("name = ?", name).Limit(1).Find(&users).Error; err != nil {
		return nil, wrap("find user", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}
