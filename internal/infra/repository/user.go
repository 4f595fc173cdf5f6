package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/totegamma/memorial/internal/domain"
	"github.com/totegamma/memorial/internal/infra/database/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	row := models.User{
		ID:            user.ID,
		Email:         strings.ToLower(user.Email),
		Name:          user.Name,
		PasswordHash:  user.PasswordHash,
		EmailVerified: user.EmailVerified,
		IsAdmin:       user.IsAdmin,
	}

	err := r.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ConflictError{Resource: "user"}
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.get(ctx, "email = ?", strings.ToLower(email))
}

func (r *UserRepository) get(ctx context.Context, query string, arg string) (domain.User, error) {
	var row models.User
	err := r.db.WithContext(ctx).Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return domain.User{}, err
	}

	return domain.User{
		ID:            row.ID,
		Email:         row.Email,
		Name:          row.Name,
		PasswordHash:  row.PasswordHash,
		EmailVerified: row.EmailVerified,
		IsAdmin:       row.IsAdmin,
		CreatedAt:     row.CDate,
	}, nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{"email_verified": true})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": passwordHash})
}

func (r *UserRepository) update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "user"}
	}
	return nil
}
