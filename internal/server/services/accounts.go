package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/dbx"
	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/server/metrics"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

// maxNumberAttempts bounds account-number generation retries on collision.
const maxNumberAttempts = 5

// amountScale is the number of fractional digits balances are kept with.
const amountScale = 2

// maxAmount is the first amount that no longer fits NUMERIC(20,2).
var maxAmount = decimal.New(1, 18)

type OpenAccountInput struct {
	AccountName string             `validate:"required,max=100"`
	AccountType models.AccountType `validate:"required,oneof=SAVINGS CURRENT"`
}

type UpdateAccountInput struct {
	AccountName string             `validate:"required,max=100"`
	AccountType models.AccountType `validate:"required,oneof=SAVINGS CURRENT"`
}

type TransferResult struct {
	From *models.Account
	To   *models.Account
}

// AccountService manages accounts. Every balance change is an atomic
// increment executed inside a transaction owned by the service.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     *metrics.Metrics
	newNumber   func() (string, error)
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, mtr *metrics.Metrics) *AccountService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AccountService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "accounts"),
		metrics:     mtr,
		newNumber:   func() (string, error) { return common.MakeRandDigits(common.AccountNumberLength) },
	}
}

// Open creates an account for userID under a freshly generated number.
func (s *AccountService) Open(ctx context.Context, userID string, in OpenAccountInput) (*models.Account, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := s.newNumber()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}

		acc, err := repo.Create(ctx, &models.Account{
			UserID:        userID,
			AccountNumber: number,
			AccountName:   in.AccountName,
			AccountType:   in.AccountType,
		})
		if err == nil {
			s.logger.Info(ctx, "account opened", "user_id", userID, "account_number", acc.AccountNumber)
			return acc, nil
		}
		if !errors.Is(err, common.ErrorConflict) {
			return nil, err
		}
		s.logger.Debug(ctx, "account number collision", "attempt", attempt)
	}

	return nil, fmt.Errorf("%w: no free account number after %d attempts", common.ErrorInternal, maxNumberAttempts)
}

func (s *AccountService) Get(ctx context.Context, accountNumber string) (*models.Account, error) {
	return s.repomanager.Accounts(s.db).FindByAccountNumber(ctx, accountNumber)
}

func (s *AccountService) ListForUser(ctx context.Context, userID string) ([]*models.Account, error) {
	return s.repomanager.Accounts(s.db).FindByUserID(ctx, userID)
}

func (s *AccountService) ListAll(ctx context.Context) ([]*models.Account, error) {
	return s.repomanager.Accounts(s.db).FindAll(ctx)
}

// Update renames or retypes an account owned by userID.
func (s *AccountService) Update(ctx context.Context, userID, accountNumber string, in UpdateAccountInput) (*models.Account, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return s.repomanager.Accounts(s.db).Update(ctx, accountNumber, userID, in.AccountName, in.AccountType)
}

// Close soft-deletes the account.
func (s *AccountService) Close(ctx context.Context, accountNumber string) error {
	if err := s.repomanager.Accounts(s.db).Delete(ctx, accountNumber); err != nil {
		return err
	}
	s.logger.Info(ctx, "account closed", "account_number", accountNumber)
	return nil
}

func (s *AccountService) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (acc *models.Account, err error) {
	defer func() { s.metrics.RecordBalance("deposit", amount.InexactFloat64(), err) }()

	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Account, error) {
		return s.repomanager.Accounts(tx).UpdateBalance(ctx, accountNumber, amount)
	})
}

// Withdraw fails with common.ErrorInsufficientFunds when the balance would
// drop below zero; the balance is then left unchanged.
func (s *AccountService) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (acc *models.Account, err error) {
	defer func() { s.metrics.RecordBalance("withdraw", amount.InexactFloat64(), err) }()

	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Account, error) {
		return debit(ctx, s.repomanager, tx, accountNumber, amount)
	})
}

// Transfer moves amount between two accounts in one transaction. Rows are
// updated in account-number order so opposite transfers lock in the same
// order.
func (s *AccountService) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (res *TransferResult, err error) {
	defer func() { s.metrics.RecordBalance("transfer", amount.InexactFloat64(), err) }()

	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("%w: source and destination accounts are the same", common.ErrorValidation)
	}

	res, err = dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*TransferResult, error) {
		r := &TransferResult{}
		steps := []func() error{
			func() (err error) {
				r.From, err = debit(ctx, s.repomanager, tx, from, amount)
				return err
			},
			func() (err error) {
				r.To, err = s.repomanager.Accounts(tx).UpdateBalance(ctx, to, amount)
				return err
			},
		}
		if to < from {
			steps[0], steps[1] = steps[1], steps[0]
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return nil, err
			}
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "transfer completed", "from", from, "to", to, "amount", amount.StringFixed(amountScale))
	return res, nil
}

func debit(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, accountNumber string, amount decimal.Decimal) (*models.Account, error) {
	acc, err := m.Accounts(tx).UpdateBalance(ctx, accountNumber, amount.Neg())
	if err != nil {
		return nil, err
	}
	if acc.Balance.IsNegative() {
		return nil, common.ErrorInsufficientFunds
	}
	return acc, nil
}

// validateAmount requires a positive amount with at most two decimals that
// fits the balance column.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", common.ErrorValidation)
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", common.ErrorValidation, amountScale)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: amount is too large", common.ErrorValidation)
	}
	return nil
}
