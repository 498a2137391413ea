package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/dbx"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/shopspring/decimal"
)

// accountSelect reads from a relation aliased "a" and joins the owner's name.
const accountSelect = `
		SELECT a.id, a.user_id, u.full_name, a.account_number, a.account_name, a.account_type,
		       a.balance, a.created_at, a.updated_at, a.deleted_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		WITH a AS (
			INSERT INTO accounts (user_id, account_number, account_name, account_type)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)` + accountSelect + `
		FROM a JOIN users u ON u.id = a.user_id`

	created, err := scanAccount(r.db.QueryRowContext(ctx, query,
		account.UserID, account.AccountNumber, account.AccountName, string(account.AccountType)))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	query := accountSelect + `
		FROM accounts a JOIN users u ON u.id = a.user_id
		WHERE a.account_number = $1 AND a.deleted_at IS NULL`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) ([]*models.Account, error) {
	query := accountSelect + `
		FROM accounts a JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1 AND a.deleted_at IS NULL
		ORDER BY a.created_at, a.account_number`

	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]*models.Account, error) {
	query := accountSelect + `
		FROM accounts a JOIN users u ON u.id = a.user_id
		WHERE a.deleted_at IS NULL
		ORDER BY a.created_at, a.account_number`

	return r.list(ctx, query)
}

func (r *PostgresRepository) Update(ctx context.Context, accountNumber, userID, name string, accountType models.AccountType) (*models.Account, error) {
	query := `
		WITH a AS (
			UPDATE accounts
			SET account_name = $3, account_type = $4, updated_at = now()
			WHERE account_number = $1 AND user_id = $2 AND deleted_at IS NULL
			RETURNING *
		)` + accountSelect + `
		FROM a JOIN users u ON u.id = a.user_id`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, accountNumber, userID, name, string(accountType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, accountNumber string) error {
	query := `
		UPDATE accounts
		SET deleted_at = now(), updated_at = now()
		WHERE account_number = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, accountNumber)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return r.missing(ctx, accountNumber)
	}
	return nil
}

func (r *PostgresRepository) UpdateBalance(ctx context.Context, accountNumber string, delta decimal.Decimal) (*models.Account, error) {
	query := `
		WITH a AS (
			UPDATE accounts
			SET balance = balance + $2, updated_at = now()
			WHERE account_number = $1 AND deleted_at IS NULL
			RETURNING *
		)` + accountSelect + `
		FROM a JOIN users u ON u.id = a.user_id`

	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, accountNumber, delta))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missing(ctx, accountNumber)
		}
		if dbx.IsCheckViolation(err) {
			return nil, common.ErrorInsufficientFunds
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

// missing tells apart an unknown account number from one whose accounts are
// all soft-deleted.
func (r *PostgresRepository) missing(ctx context.Context, accountNumber string) error {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, accountNumber).Scan(&exists); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if exists {
		return common.ErrorAccountDeleted
	}
	return common.ErrorNotFound
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	acc := &models.Account{}
	var accountType string
	var deletedAt sql.NullTime

	err := row.Scan(&acc.ID, &acc.UserID, &acc.OwnerFullName, &acc.AccountNumber, &acc.AccountName,
		&accountType, &acc.Balance, &acc.CreatedAt, &acc.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	acc.AccountType = models.AccountType(accountType)
	if deletedAt.Valid {
		t := deletedAt.Time
		acc.DeletedAt = &t
	}
	return acc, nil
}
