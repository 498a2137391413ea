// Package admin implements the operator console: a line-oriented REPL that
// drives the auth and account services directly against the database.
package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/server"
	"github.com/dmitrijs2005/gophbank/internal/server/auth"
	"github.com/dmitrijs2005/gophbank/internal/server/config"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"github.com/dmitrijs2005/gophbank/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophbank/internal/server/services"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

// AuthAPI is the part of services.AuthService the console uses.
type AuthAPI interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	RegisterByAdmin(ctx context.Context, actor *auth.Claims, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	RefreshWithToken(ctx context.Context, refreshToken string) (*services.RefreshResult, error)
	Revoke(ctx context.Context, jti string) (*models.Session, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// AccountAPI is the part of services.AccountService the console uses.
type AccountAPI interface {
	Open(ctx context.Context, userID string, in services.OpenAccountInput) (*models.Account, error)
	Get(ctx context.Context, accountNumber string) (*models.Account, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Account, error)
	ListAll(ctx context.Context) ([]*models.Account, error)
	Close(ctx context.Context, accountNumber string) error
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*models.Account, error)
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (*models.Account, error)
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*services.TransferResult, error)
}

type App struct {
	auth     AuthAPI
	accounts AccountAPI
	reader   *bufio.Reader
	out      io.Writer
	closer   io.Closer

	passwordFromInput bool

	login  *services.LoginResult
	claims *auth.Claims
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stderr, slog.LevelWarn)

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := server.OpenDatabase(ctx, c.DatabaseDSN, rm)
	if err != nil {
		return nil, err
	}

	svc, err := server.NewServices(c, db, rm, logger, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := newApp(svc.Auth, svc.Accounts, os.Stdin, os.Stdout)
	a.closer = db
	a.passwordFromInput = !term.IsTerminal(int(os.Stdin.Fd()))
	return a, nil
}

func newApp(authAPI AuthAPI, accountAPI AccountAPI, in io.Reader, out io.Writer) *App {
	return &App{auth: authAPI, accounts: accountAPI, reader: bufio.NewReader(in), out: out}
}

func (a *App) Run(ctx context.Context) {
	if a.closer != nil {
		defer a.closer.Close()
	}
	fmt.Fprintln(a.out, "Welcome to GophBank admin console (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.login != nil
}

func (a *App) status() string {
	if a.login == nil {
		return ""
	}
	return fmt.Sprintf("(%s %s)", a.login.User.UserName, a.login.User.RoleName)
}

func (a *App) isAdmin() bool {
	return a.login != nil && a.login.User.RoleName == common.RoleAdmin
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}
