package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeSavings AccountType = "SAVINGS"
	AccountTypeCurrent AccountType = "CURRENT"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	return t == AccountTypeSavings || t == AccountTypeCurrent
}

// Account is a customer account. Balance is a fixed-point decimal; it is
// only ever changed through atomic increments in the database.
type Account struct {
	ID            string
	UserID        string
	OwnerFullName string
	AccountNumber string
	AccountName   string
	AccountType   AccountType
	Balance       decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}
