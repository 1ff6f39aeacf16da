package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Refresh(ctx context.Context) error
	Me(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	ConfirmEmail(ctx context.Context) error
	ResendConfirmation(ctx context.Context) error
	RequestPasswordReset(ctx context.Context) error
	ResetPassword(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit". Command
// prompts read from the same reader. Command errors are printed and the loop
// goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gophauth%s> ", statusFn()))
		line, rerr := reader.ReadString('\n')
		if rerr != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		var err error
		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, refresh, passwd, confirm, resend, logout, exit")
			} else {
				printlnFn("Available commands: register, login, confirm, resend, forgot, reset, exit")
			}
		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "refresh":
			err = a.Refresh(ctx)
		case "me":
			err = a.Me(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "passwd":
			err = a.ChangePassword(ctx)
		case "confirm":
			err = a.ConfirmEmail(ctx)
		case "resend":
			err = a.ResendConfirmation(ctx)
		case "forgot":
			err = a.RequestPasswordReset(ctx)
		case "reset":
			err = a.ResetPassword(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}
