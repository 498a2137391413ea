package admin

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/server/auth"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/dmitrijs2005/gophbank/internal/server/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	registered  services.RegisterInput
	actor       *auth.Claims
	loginErr    error
	role        string
	authErrs    []error
	refreshed   int
	revoked     []string
	accessToken string
}

func (f *fakeAuth) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	f.registered = in
	return &models.User{ID: "user-9", UserName: in.Username}, nil
}

func (f *fakeAuth) RegisterByAdmin(_ context.Context, actor *auth.Claims, in services.RegisterInput) (*models.User, error) {
	if actor == nil || actor.Role != common.RoleAdmin {
		return nil, common.ErrorUnauthorized
	}
	f.actor = actor
	f.registered = in
	return &models.User{ID: "user-9", UserName: in.Username, RoleName: in.Role}, nil
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*services.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if password != "P@ssw0rd!" {
		return nil, common.ErrorBadCredentials
	}
	f.accessToken = "access-1"
	return &services.LoginResult{
		User:         &models.User{ID: "user-1", UserName: username, FullName: "Alice Doe", RoleName: f.role},
		SessionID:    "jti-1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}, nil
}

func (f *fakeAuth) RefreshWithToken(_ context.Context, token string) (*services.RefreshResult, error) {
	if token != "refresh-1" {
		return nil, common.ErrInvalidToken
	}
	f.refreshed++
	f.accessToken = "access-2"
	return &services.RefreshResult{SessionID: "jti-1", AccessToken: "access-2", AccessTokenExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeAuth) Revoke(_ context.Context, jti string) (*models.Session, error) {
	f.revoked = append(f.revoked, jti)
	return &models.Session{JTI: jti}, nil
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	if len(f.authErrs) > 0 {
		err := f.authErrs[0]
		f.authErrs = f.authErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if token != f.accessToken {
		return nil, common.ErrInvalidToken
	}
	c := &auth.Claims{Username: "alice", Role: f.role}
	c.Subject, c.ID = "user-1", "jti-1"
	return c, nil
}

type fakeAccounts struct {
	byNumber map[string]*models.Account
	opened   services.OpenAccountInput
	calls    []string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byNumber: map[string]*models.Account{
		"1111111111": {AccountNumber: "1111111111", UserID: "user-1", AccountName: "Mine", AccountType: models.AccountTypeCurrent, OwnerFullName: "Alice Doe", Balance: decimal.RequireFromString("50")},
		"2222222222": {AccountNumber: "2222222222", UserID: "user-2", AccountName: "Theirs", AccountType: models.AccountTypeSavings, OwnerFullName: "Bob Roe", Balance: decimal.Zero},
	}}
}

func (f *fakeAccounts) Open(_ context.Context, userID string, in services.OpenAccountInput) (*models.Account, error) {
	f.opened = in
	acc := &models.Account{AccountNumber: "3333333333", UserID: userID, AccountName: in.AccountName, AccountType: in.AccountType}
	f.byNumber[acc.AccountNumber] = acc
	return acc, nil
}

func (f *fakeAccounts) Get(_ context.Context, number string) (*models.Account, error) {
	acc, ok := f.byNumber[number]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return acc, nil
}

func (f *fakeAccounts) ListForUser(_ context.Context, userID string) ([]*models.Account, error) {
	f.calls = append(f.calls, "list:"+userID)
	var out []*models.Account
	for _, n := range []string{"1111111111", "2222222222", "3333333333"} {
		if a, ok := f.byNumber[n]; ok && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) ListAll(context.Context) ([]*models.Account, error) {
	f.calls = append(f.calls, "listall")
	return []*models.Account{f.byNumber["1111111111"], f.byNumber["2222222222"]}, nil
}

func (f *fakeAccounts) Close(_ context.Context, number string) error {
	f.calls = append(f.calls, "close:"+number)
	return nil
}

func (f *fakeAccounts) Deposit(_ context.Context, number string, amount decimal.Decimal) (*models.Account, error) {
	f.calls = append(f.calls, "deposit:"+number+":"+amount.String())
	acc := f.byNumber[number]
	acc.Balance = acc.Balance.Add(amount)
	return acc, nil
}

func (f *fakeAccounts) Withdraw(_ context.Context, number string, amount decimal.Decimal) (*models.Account, error) {
	f.calls = append(f.calls, "withdraw:"+number+":"+amount.String())
	acc := f.byNumber[number]
	if acc.Balance.LessThan(amount) {
		return nil, common.ErrorInsufficientFunds
	}
	acc.Balance = acc.Balance.Sub(amount)
	return acc, nil
}

func (f *fakeAccounts) Transfer(_ context.Context, from, to string, amount decimal.Decimal) (*services.TransferResult, error) {
	f.calls = append(f.calls, "transfer:"+from+":"+to+":"+amount.String())
	return &services.TransferResult{From: f.byNumber[from], To: f.byNumber[to]}, nil
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	old := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = old })
}

func newTestApp(t *testing.T, input string, role string) (*App, *fakeAuth, *fakeAccounts, *bytes.Buffer) {
	t.Helper()
	fa := &fakeAuth{role: role}
	fc := newFakeAccounts()
	out := &bytes.Buffer{}
	return newApp(fa, fc, strings.NewReader(input), out), fa, fc, out
}

func loggedIn(t *testing.T, input, role string) (*App, *fakeAuth, *fakeAccounts, *bytes.Buffer) {
	t.Helper()
	stubPassword(t, "P@ssw0rd!")
	a, fa, fc, out := newTestApp(t, "alice\n"+input, role)
	require.NoError(t, a.Login(context.Background()))
	return a, fa, fc, out
}

func TestRegister_PromptsAndCallsService(t *testing.T) {
	stubPassword(t, "P@ssw0rd!")
	a, fa, _, out := newTestApp(t, "alice\nAlice Doe\nalice@example.com\n1990-04-12\n", "")

	require.NoError(t, a.Register(context.Background()))

	assert.Equal(t, services.RegisterInput{
		Username: "alice", FullName: "Alice Doe", Email: "alice@example.com",
		DateOfBirth: "1990-04-12", Password: "P@ssw0rd!",
	}, fa.registered)
	assert.Contains(t, out.String(), "Registered alice")
}

func TestRegister_AdminAssignsRole(t *testing.T) {
	a, fa, _, out := loggedIn(t, "bob\nBob Roe\nbob@example.com\n1985-01-02\nadmin\n", common.RoleAdmin)

	require.NoError(t, a.Register(context.Background()))

	assert.Equal(t, common.RoleAdmin, fa.registered.Role)
	require.NotNil(t, fa.actor)
	assert.Equal(t, "user-1", fa.actor.UserID())
	assert.Contains(t, out.String(), "Role (ADMIN/CUSTOMER")
}

func TestLogin(t *testing.T) {
	a, _, _, out := loggedIn(t, "", common.RoleCustomer)

	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(alice CUSTOMER)", a.status())
	assert.Contains(t, out.String(), "session jti-1")
}

func TestLogin_BadCredentials(t *testing.T) {
	stubPassword(t, "wrong")
	a, _, _, _ := newTestApp(t, "alice\n", "")

	err := a.Login(context.Background())
	assert.ErrorIs(t, err, common.ErrorBadCredentials)
	assert.False(t, a.isLoggedIn())
}

func TestCommandsRequireLogin(t *testing.T) {
	a, _, _, _ := newTestApp(t, "", "")
	ctx := context.Background()

	assert.ErrorIs(t, a.Refresh(ctx), errNotLoggedIn)
	assert.ErrorIs(t, a.Revoke(ctx, nil), errNotLoggedIn)
	assert.ErrorIs(t, a.Accounts(ctx, nil), errNotLoggedIn)
	assert.ErrorIs(t, a.Deposit(ctx, []string{"1111111111", "1"}), errNotLoggedIn)
}

func TestOpenAndList(t *testing.T) {
	a, _, fc, out := loggedIn(t, "Rainy day\nsavings\n", common.RoleCustomer)
	ctx := context.Background()

	require.NoError(t, a.Open(ctx))
	assert.Equal(t, models.AccountTypeSavings, fc.opened.AccountType)

	require.NoError(t, a.Accounts(ctx, nil))
	assert.Contains(t, out.String(), "Opened account 3333333333")
	assert.Contains(t, out.String(), "1111111111")
	assert.Contains(t, out.String(), "50.00")
	assert.NotContains(t, out.String(), "2222222222")
}

func TestAccountsAll_AdminOnly(t *testing.T) {
	a, _, _, _ := loggedIn(t, "", common.RoleCustomer)
	assert.Error(t, a.Accounts(context.Background(), []string{"all"}))

	admin, _, fc, out := loggedIn(t, "", common.RoleAdmin)
	require.NoError(t, admin.Accounts(context.Background(), []string{"all"}))
	assert.Contains(t, fc.calls, "listall")
	assert.Contains(t, out.String(), "Bob Roe")
}

func TestDepositWithdrawTransfer(t *testing.T) {
	a, _, fc, out := loggedIn(t, "", common.RoleCustomer)
	ctx := context.Background()

	require.NoError(t, a.Deposit(ctx, []string{"2222222222", "5.25"}))
	require.NoError(t, a.Withdraw(ctx, []string{"1111111111", "20"}))
	require.NoError(t, a.Transfer(ctx, []string{"1111111111", "2222222222", "10"}))

	assert.Equal(t, []string{
		"deposit:2222222222:5.25",
		"withdraw:1111111111:20",
		"transfer:1111111111:2222222222:10",
	}, fc.calls)
	assert.Contains(t, out.String(), "Balance of 1111111111: 30.00")
}

func TestWithdraw_ForeignAccountRejected(t *testing.T) {
	a, _, fc, _ := loggedIn(t, "", common.RoleCustomer)

	err := a.Withdraw(context.Background(), []string{"2222222222", "1"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, fc.calls)
}

func TestMutations_BadInput(t *testing.T) {
	a, _, _, _ := loggedIn(t, "", common.RoleCustomer)
	ctx := context.Background()

	assert.Error(t, a.Deposit(ctx, []string{"1111111111"}))
	assert.Error(t, a.Deposit(ctx, []string{"1111111111", "ten"}))
	assert.Error(t, a.Transfer(ctx, []string{"1111111111", "1"}))
	assert.Error(t, a.CloseAccount(ctx, nil))
}

func TestCloseAccount(t *testing.T) {
	a, _, fc, out := loggedIn(t, "", common.RoleCustomer)

	require.NoError(t, a.CloseAccount(context.Background(), []string{"1111111111"}))
	assert.Equal(t, []string{"close:1111111111"}, fc.calls)
	assert.Contains(t, out.String(), "Account 1111111111 closed")
}

func TestEnsureSession_RefreshesExpiredToken(t *testing.T) {
	a, fa, _, _ := loggedIn(t, "", common.RoleCustomer)
	fa.authErrs = []error{common.ErrTokenExpired}

	require.NoError(t, a.Accounts(context.Background(), nil))
	assert.Equal(t, 1, fa.refreshed)
	assert.Equal(t, "access-2", a.login.AccessToken)
}

func TestEnsureSession_RevokedLogsOut(t *testing.T) {
	a, fa, _, _ := loggedIn(t, "", common.RoleCustomer)
	fa.authErrs = []error{common.ErrorSessionRevoked}

	err := a.Accounts(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrorSessionRevoked)
	assert.False(t, a.isLoggedIn())
}

func TestRevoke(t *testing.T) {
	a, fa, _, _ := loggedIn(t, "", common.RoleCustomer)
	ctx := context.Background()

	assert.Error(t, a.Revoke(ctx, []string{"other-jti"}), "customers cannot revoke other sessions")
	require.NoError(t, a.Revoke(ctx, nil))
	assert.Equal(t, []string{"jti-1"}, fa.revoked)
	assert.False(t, a.isLoggedIn())
}
