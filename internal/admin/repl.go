package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Refresh(ctx context.Context) error
	Revoke(ctx context.Context, args []string) error
	Open(ctx context.Context) error
	Accounts(ctx context.Context, args []string) error
	Deposit(ctx context.Context, args []string) error
	Withdraw(ctx context.Context, args []string) error
	Transfer(ctx context.Context, args []string) error
	CloseAccount(ctx context.Context, args []string) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop ends on EOF or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - register       create a user
//	  - login          open a session
//
//	Logged in:
//	  - refresh                      replace the access token
//	  - revoke [jti]                 end the current (or the given) session
//	  - open                         open an account
//	  - accounts [all]               list own (or, for admins, all) accounts
//	  - deposit <acct> <amount>
//	  - withdraw <acct> <amount>
//	  - transfer <from> <to> <amount>
//	  - close <acct>                 close an account
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "gb %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: refresh, revoke, open, accounts, deposit, withdraw, transfer, close, exit")
			} else {
				fmt.Fprintln(w, "Available commands: register, login, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "refresh":
			cmdErr = a.Refresh(ctx)
		case "revoke", "logout":
			cmdErr = a.Revoke(ctx, args)
		case "open":
			cmdErr = a.Open(ctx)
		case "accounts", "ls":
			cmdErr = a.Accounts(ctx, args)
		case "deposit":
			cmdErr = a.Deposit(ctx, args)
		case "withdraw":
			cmdErr = a.Withdraw(ctx, args)
		case "transfer":
			cmdErr = a.Transfer(ctx, args)
		case "close":
			cmdErr = a.CloseAccount(ctx, args)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(w, "error:", cmdErr)
		}
		if errors.Is(err, io.EOF) {
			return
		}
	}
}
