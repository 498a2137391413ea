package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/dmitrijs2005/gophbank/internal/server/services"
	"github.com/shopspring/decimal"
)

var errNotLoggedIn = errors.New("not logged in, use 'login' first")

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}

// Register signs up a customer. A logged-in admin is also asked for the
// role and registers on behalf of the new user.
func (a *App) Register(ctx context.Context) error {
	asAdmin := a.isAdmin()
	if asAdmin {
		if err := a.ensureSession(ctx); err != nil {
			return err
		}
	}

	in := services.RegisterInput{}
	prompts := []struct {
		label string
		dst   *string
	}{
		{"User name", &in.Username},
		{"Full name", &in.FullName},
		{"Email", &in.Email},
		{"Date of birth (YYYY-MM-DD)", &in.DateOfBirth},
	}
	for _, p := range prompts {
		v, err := a.askRequired(p.label)
		if err != nil {
			return err
		}
		*p.dst = v
	}
	if asAdmin {
		role, err := a.ask("Role (ADMIN/CUSTOMER, empty for CUSTOMER)")
		if err != nil {
			return err
		}
		in.Role = strings.ToUpper(role)
	}

	password, err := a.askPassword("Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	in.Password = string(password)

	var user *models.User
	if asAdmin {
		user, err = a.auth.RegisterByAdmin(ctx, a.claims, in)
	} else {
		user, err = a.auth.Register(ctx, in)
	}
	if err != nil {
		return err
	}
	a.printf("Registered %s (%s)", user.UserName, user.ID)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	username, err := a.askRequired("User name")
	if err != nil {
		return err
	}
	password, err := a.askPassword("Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.auth.Login(ctx, username, string(password))
	if err != nil {
		return err
	}

	claims, err := a.auth.Authenticate(ctx, res.AccessToken)
	if err != nil {
		return err
	}
	a.login, a.claims = res, claims
	a.printf("Logged in as %s, session %s", res.User.FullName, res.SessionID)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	res, err := a.auth.RefreshWithToken(ctx, a.login.RefreshToken)
	if err != nil {
		return err
	}
	a.login.AccessToken = res.AccessToken
	a.login.AccessTokenExpiresAt = res.AccessTokenExpiresAt
	a.printf("Access token refreshed, valid until %s", res.AccessTokenExpiresAt.Format("2006-01-02 15:04:05"))
	return nil
}

// Revoke ends the current session, or the session given as argument.
func (a *App) Revoke(ctx context.Context, args []string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	jti := a.login.SessionID
	if len(args) > 0 {
		if !a.isAdmin() {
			return errors.New("only admins can revoke other sessions")
		}
		jti = args[0]
	}

	if _, err := a.auth.Revoke(ctx, jti); err != nil {
		return err
	}
	a.printf("Session %s revoked", jti)
	if jti == a.login.SessionID {
		a.login, a.claims = nil, nil
	}
	return nil
}

func (a *App) Open(ctx context.Context) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	name, err := a.askRequired("Account name")
	if err != nil {
		return err
	}
	typ, err := a.askRequired("Account type (SAVINGS/CURRENT)")
	if err != nil {
		return err
	}

	acc, err := a.accounts.Open(ctx, a.claims.UserID(), services.OpenAccountInput{
		AccountName: name,
		AccountType: models.AccountType(strings.ToUpper(typ)),
	})
	if err != nil {
		return err
	}
	a.printf("Opened account %s", acc.AccountNumber)
	return nil
}

func (a *App) Accounts(ctx context.Context, args []string) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	var list []*models.Account
	var err error
	if len(args) > 0 && args[0] == "all" {
		if !a.isAdmin() {
			return errors.New("only admins can list all accounts")
		}
		list, err = a.accounts.ListAll(ctx)
	} else {
		list, err = a.accounts.ListForUser(ctx, a.claims.UserID())
	}
	if err != nil {
		return err
	}

	if len(list) == 0 {
		a.printf("No accounts")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME\tTYPE\tOWNER\tBALANCE")
	for _, acc := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			acc.AccountNumber, acc.AccountName, acc.AccountType, acc.OwnerFullName, acc.Balance.StringFixed(2))
	}
	return tw.Flush()
}

func (a *App) Deposit(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("deposit <account> <amount>")
	}
	amount, err := a.prepareMutation(ctx, args[0], args[1], false)
	if err != nil {
		return err
	}
	acc, err := a.accounts.Deposit(ctx, args[0], amount)
	if err != nil {
		return err
	}
	a.printf("Balance of %s: %s", acc.AccountNumber, acc.Balance.StringFixed(2))
	return nil
}

func (a *App) Withdraw(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("withdraw <account> <amount>")
	}
	amount, err := a.prepareMutation(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	acc, err := a.accounts.Withdraw(ctx, args[0], amount)
	if err != nil {
		return err
	}
	a.printf("Balance of %s: %s", acc.AccountNumber, acc.Balance.StringFixed(2))
	return nil
}

func (a *App) Transfer(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("transfer <from> <to> <amount>")
	}
	amount, err := a.prepareMutation(ctx, args[0], args[2], true)
	if err != nil {
		return err
	}
	res, err := a.accounts.Transfer(ctx, args[0], args[1], amount)
	if err != nil {
		return err
	}
	a.printf("Balance of %s: %s", res.From.AccountNumber, res.From.Balance.StringFixed(2))
	return nil
}

func (a *App) CloseAccount(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("close <account>")
	}
	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	if err := a.checkOwner(ctx, args[0]); err != nil {
		return err
	}
	if err := a.accounts.Close(ctx, args[0]); err != nil {
		return err
	}
	a.printf("Account %s closed", args[0])
	return nil
}

// prepareMutation checks the session, parses amount and, when owned is set,
// requires the account to belong to the user.
func (a *App) prepareMutation(ctx context.Context, number, rawAmount string, owned bool) (decimal.Decimal, error) {
	if err := a.ensureSession(ctx); err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", rawAmount)
	}
	if owned {
		if err := a.checkOwner(ctx, number); err != nil {
			return decimal.Zero, err
		}
	}
	return amount, nil
}

func (a *App) checkOwner(ctx context.Context, number string) error {
	if a.isAdmin() {
		return nil
	}
	acc, err := a.accounts.Get(ctx, number)
	if err != nil {
		return err
	}
	if acc.UserID != a.claims.UserID() {
		return fmt.Errorf("account %s: %w", number, common.ErrorNotFound)
	}
	return nil
}

// ensureSession re-validates the access token against the session store and
// refreshes it once when it has expired.
func (a *App) ensureSession(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	claims, err := a.auth.Authenticate(ctx, a.login.AccessToken)
	if errors.Is(err, common.ErrTokenExpired) {
		if err := a.Refresh(ctx); err != nil {
			a.login, a.claims = nil, nil
			return err
		}
		claims, err = a.auth.Authenticate(ctx, a.login.AccessToken)
	}
	if err != nil {
		if errors.Is(err, common.ErrorSessionRevoked) || errors.Is(err, common.ErrRefreshTokenExpired) {
			a.login, a.claims = nil, nil
		}
		return err
	}
	a.claims = claims
	return nil
}
