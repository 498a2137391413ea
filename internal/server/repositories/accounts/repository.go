// Package accounts declares and implements storage of customer accounts.
// Deleted accounts keep their row with deleted_at set and are invisible to
// every lookup.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create inserts an account with a zero balance. An account number held
	// by another active account yields common.ErrorConflict.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	FindByUserID(ctx context.Context, userID string) ([]*models.Account, error)
	FindAll(ctx context.Context) ([]*models.Account, error)

	// Update changes name and type of an active account owned by userID.
	Update(ctx context.Context, accountNumber, userID, name string, accountType models.AccountType) (*models.Account, error)

	// Delete soft-deletes the account. Deleting twice yields
	// common.ErrorAccountDeleted, unknown numbers common.ErrorNotFound.
	Delete(ctx context.Context, accountNumber string) error

	// UpdateBalance adds delta to the balance in one statement and returns the
	// updated account. A result below zero yields common.ErrorInsufficientFunds.
	UpdateBalance(ctx context.Context, accountNumber string, delta decimal.Decimal) (*models.Account, error)
}
