package repository

import (
	"context"

	"github.com/Skarath13/cards/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	// FindByPIN returns at most two active users holding pin, enough for the
	// caller to tell "exactly one" from "ambiguous".
	FindByPIN(ctx context.Context, pin string) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
	PINInUse(ctx context.Context, pin string) (bool, error)
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) FindByPIN(ctx context.Context, pin string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("pin_code = ? AND active = ?", pin, true).
		Limit(2).
		Find(&users).Error
	return users, err
}

func (r *userRepo) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("name ASC").Find(&users).Error
	return users, err
}

func (r *userRepo) PINInUse(ctx context.Context, pin string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("pin_code = ? AND active = ?", pin, true).
		Count(&n).Error
	return n > 0, err
}
