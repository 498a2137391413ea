package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/dbx"
	"github.com/dmitrijs2005/gophbank/internal/server/auth"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/users"
	"github.com/shopspring/decimal"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- repository manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeSessionsRepo
	a *fakeAccountsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), s: newFakeSessionsRepo(), a: newFakeAccountsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository            { return m.u }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository      { return m.s }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository      { return m.a }

// --- users ---

type fakeUsersRepo struct {
	mu        sync.Mutex
	byName    map[string]*models.User
	createErr error
	getErr    error
	seq       int
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byName: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrorConflict
	}
	f.seq++
	cp := *u
	cp.ID = fmt.Sprintf("user-%d", f.seq)
	f.byName[u.UserName] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byName {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

// --- sessions ---

type fakeSessionsRepo struct {
	mu        sync.Mutex
	byJTI     map[string]*models.Session
	createErr error
	updateErr error
	findErr   error
	now       func() time.Time
}

func newFakeSessionsRepo() *fakeSessionsRepo {
	return &fakeSessionsRepo{byJTI: map[string]*models.Session{}, now: time.Now}
}

func (f *fakeSessionsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byJTI)
}

func (f *fakeSessionsRepo) get(jti string) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byJTI[jti]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (f *fakeSessionsRepo) Create(_ context.Context, s *models.Session) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byJTI[s.JTI]; ok {
		return nil, common.ErrorConflict
	}
	cp := *s
	cp.ID = "session-" + s.JTI
	cp.CreatedAt, cp.UpdatedAt = f.now(), f.now()
	f.byJTI[s.JTI] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSessionsRepo) FindByJTI(_ context.Context, jti string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.byJTI[jti]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionsRepo) UpdateToken(_ context.Context, jti, hash string, expiresAt time.Time) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	s, ok := f.byJTI[jti]
	if !ok || s.RevokedAt != nil {
		return nil, common.ErrorNotFound
	}
	s.TokenHash, s.TokenExpired, s.UpdatedAt = hash, expiresAt, f.now()
	cp := *s
	return &cp, nil
}

func (f *fakeSessionsRepo) Revoke(_ context.Context, jti string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byJTI[jti]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if s.RevokedAt == nil {
		now := f.now()
		s.RevokedAt, s.UpdatedAt = &now, now
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionsRepo) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.byJTI {
		if s.UserID == userID && s.RevokedAt == nil {
			now := f.now()
			s.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

// --- accounts ---

// fakeAccountsRepo keeps balances in memory and rejects negative results the
// way the balance CHECK constraint does.
type fakeAccountsRepo struct {
	mu         sync.Mutex
	byNumber   map[string]*models.Account
	conflicts  int
	balanceLog []string
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{byNumber: map[string]*models.Account{}}
}

func (f *fakeAccountsRepo) put(number, userID, balance string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byNumber[number] = &models.Account{
		ID: "acc-" + number, UserID: userID, AccountNumber: number,
		AccountName: "test", AccountType: models.AccountTypeCurrent,
		Balance: decimal.RequireFromString(balance),
	}
}

func (f *fakeAccountsRepo) balance(number string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byNumber[number].Balance
}

func (f *fakeAccountsRepo) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return nil, common.ErrorConflict
	}
	if old, ok := f.byNumber[a.AccountNumber]; ok && old.DeletedAt == nil {
		return nil, common.ErrorConflict
	}
	cp := *a
	cp.ID = "acc-" + a.AccountNumber
	cp.Balance = decimal.Zero
	f.byNumber[a.AccountNumber] = &cp
	out := cp
	return &out, nil
}

func (f *fakeAccountsRepo) FindByAccountNumber(_ context.Context, number string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byNumber[number]
	if !ok || a.DeletedAt != nil {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsRepo) FindByUserID(_ context.Context, userID string) ([]*models.Account, error) {
	return f.filter(func(a *models.Account) bool { return a.UserID == userID }), nil
}

func (f *fakeAccountsRepo) FindAll(context.Context) ([]*models.Account, error) {
	return f.filter(func(*models.Account) bool { return true }), nil
}

func (f *fakeAccountsRepo) filter(keep func(*models.Account) bool) []*models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Account{}
	for _, a := range f.byNumber {
		if a.DeletedAt == nil && keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out
}

func (f *fakeAccountsRepo) Update(_ context.Context, number, userID, name string, t models.AccountType) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byNumber[number]
	if !ok || a.DeletedAt != nil || a.UserID != userID {
		return nil, common.ErrorNotFound
	}
	a.AccountName, a.AccountType = name, t
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsRepo) Delete(_ context.Context, number string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byNumber[number]
	if !ok {
		return common.ErrorNotFound
	}
	if a.DeletedAt != nil {
		return common.ErrorAccountDeleted
	}
	now := time.Now()
	a.DeletedAt = &now
	return nil
}

func (f *fakeAccountsRepo) UpdateBalance(_ context.Context, number string, delta decimal.Decimal) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceLog = append(f.balanceLog, number+":"+delta.String())
	a, ok := f.byNumber[number]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if a.DeletedAt != nil {
		return nil, common.ErrorAccountDeleted
	}
	next := a.Balance.Add(delta)
	if next.IsNegative() {
		return nil, common.ErrorInsufficientFunds
	}
	a.Balance = next
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsRepo) log() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.balanceLog, ",")
}

// --- crypto ---

// plainHasher stands in for both password and token hashing.
type plainHasher struct {
	hashErr error
}

func (h plainHasher) Hash(s string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "h(" + s + ")", nil
}

func (h plainHasher) Compare(s, hashed string) bool { return "h("+s+")" == hashed }

// fakeIssuer hands out opaque, always distinct tokens and remembers their
// claims. Expiry is judged against now.
type fakeIssuer struct {
	mu      sync.Mutex
	n       int
	claims  map[string]*auth.Claims
	expires map[string]time.Time
	now     func() time.Time
	failOn  int
}

func newFakeIssuer(now func() time.Time) *fakeIssuer {
	return &fakeIssuer{claims: map[string]*auth.Claims{}, expires: map[string]time.Time{}, now: now}
}

func (f *fakeIssuer) Issue(sub, username, fullName, role string, ttl time.Duration, jti string) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.failOn != 0 && f.n == f.failOn {
		return "", time.Time{}, errBoom{}
	}
	tok := fmt.Sprintf("token-%d", f.n)
	exp := f.now().Add(ttl)
	c := &auth.Claims{Username: username, FullName: fullName, Role: role}
	c.Subject, c.ID = sub, jti
	f.claims[tok] = c
	f.expires[tok] = exp
	return tok, exp, nil
}

func (f *fakeIssuer) Parse(tok string) (*auth.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.claims[tok]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	if !f.now().Before(f.expires[tok]) {
		return nil, common.ErrTokenExpired
	}
	cp := *c
	return &cp, nil
}
