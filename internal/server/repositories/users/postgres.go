package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/dbx"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (role_id, username, full_name, email, password, dob)
		 SELECT r.id, $2, $3, $4, $5, $6 FROM roles r WHERE r.name = $1
		 RETURNING id, role_id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.RoleName, user.UserName, user.FullName, user.Email, user.PasswordHash, user.DateOfBirth,
	).Scan(&user.ID, &user.RoleID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("unknown role %q: %w", user.RoleName, common.ErrorNotFound)
		}
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT u.id, u.role_id, r.name, u.username, u.full_name, u.email, u.password, u.dob, u.created_at, u.updated_at
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE u.username = $1
		 `
	return r.getOne(ctx, query, userName)
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT u.id, u.role_id, r.name, u.username, u.full_name, u.email, u.password, u.dob, u.created_at, u.updated_at
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE u.id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.RoleID, &user.RoleName, &user.UserName, &user.FullName,
		&user.Email, &user.PasswordHash, &user.DateOfBirth, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsInvalidText(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
