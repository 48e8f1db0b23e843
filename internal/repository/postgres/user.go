package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	UserType  string    `db:"user_type"`
	ECName    *string   `db:"emergency_contact_name"`
	ECPhone   *string   `db:"emergency_contact_phone"`
	ECRel     *string   `db:"emergency_contact_relationship"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, name, email, phone, user_type,
		       emergency_contact_name, emergency_contact_phone,
		       emergency_contact_relationship, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user := &model.User{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		UserType:  model.UserType(row.UserType),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.ECName != nil {
		user.EmergencyContact.Name = *row.ECName
	}
	if row.ECPhone != nil {
		user.EmergencyContact.Phone = *row.ECPhone
	}
	if row.ECRel != nil {
		user.EmergencyContact.Relationship = *row.ECRel
	}
	return user, nil
}
