package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

func (a *App) printUser(u *authrpc.User) {
	verified := "no"
	if u.EmailVerified {
		verified = "yes"
	}
	fmt.Fprintf(a.out, "id:       %s\nemail:    %s\nverified: %s\n", u.ID, u.Email, verified)
	if u.LastLoginAt != nil {
		fmt.Fprintf(a.out, "last login: %s\n", u.LastLoginAt.Local().Format(time.RFC1123))
	}
}

func (a *App) Register(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.client.Register(ctx, email, password)
	if err != nil {
		return err
	}
	a.email = u.Email
	fmt.Fprintln(a.out, "Registered. Check your inbox to confirm the address.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.email = u.Email
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	a.email = ""
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// ChangePassword logs the user out: the server closes every session.
func (a *App) ChangePassword(ctx context.Context) error {
	current, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	a.email = ""
	fmt.Fprintln(a.out, "Password changed. Please log in again.")
	return nil
}

func (a *App) ConfirmEmail(ctx context.Context) error {
	token, err := a.prompt("Enter confirmation token")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ConfirmEmail(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email confirmed")
	return nil
}

func (a *App) ResendConfirmation(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ResendConfirmation(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the address is registered, a confirmation email is on its way.")
	return nil
}

func (a *App) RequestPasswordReset(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.RequestPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the address is registered, a reset link is on its way.")
	return nil
}

func (a *App) ResetPassword(ctx context.Context) error {
	token, err := a.prompt("Enter reset token")
	if err != nil {
		return err
	}
	password, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ResetPassword(ctx, token, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password reset. You can log in now.")
	return nil
}
