package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	failOn   string
	calls    []string
}

func (f *fakeExec) call(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(context.Context) error {
	return f.call("register")
}
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.call("login")
}
func (f *fakeExec) Refresh(context.Context) error { return f.call("refresh") }
func (f *fakeExec) Me(context.Context) error      { return f.call("me") }
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.call("logout")
}
func (f *fakeExec) ChangePassword(context.Context) error       { return f.call("passwd") }
func (f *fakeExec) ConfirmEmail(context.Context) error         { return f.call("confirm") }
func (f *fakeExec) ResendConfirmation(context.Context) error   { return f.call("resend") }
func (f *fakeExec) RequestPasswordReset(context.Context) error { return f.call("forgot") }
func (f *fakeExec) ResetPassword(context.Context) error        { return f.call("reset") }

func captureOutput(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, fmt.Sprint(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_Dispatch(t *testing.T) {
	captureOutput(t)

	exec := &fakeExec{}
	in := "help\nregister\nlogin\n\nme\nrefresh\npasswd\nconfirm\nresend\nforgot\nreset\nlogout\nexit\nme\n"

	runREPL(context.Background(), exec, func() string { return "" }, rdr(in))

	assert.Equal(t, []string{"register", "login", "me", "refresh", "passwd", "confirm", "resend", "forgot", "reset", "logout"}, exec.calls)
}

func TestRunREPL_ErrorsAndUnknown(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{failOn: "me"}
	runREPL(context.Background(), exec, func() string { return "(ann)" }, rdr("me\nfoobar\n"))

	assert.Equal(t, []string{"me"}, exec.calls)
	assert.Contains(t, *out, "gophauth(ann)> ")
	assert.Contains(t, *out, "error:boom")
	assert.Contains(t, *out, "Unknown command:foobar")
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	out := captureOutput(t)

	runREPL(context.Background(), &fakeExec{loggedIn: true}, func() string { return "" }, rdr("help\nquit\n"))
	assert.Contains(t, *out, "Available commands: me, refresh, passwd, confirm, resend, logout, exit")
	assert.Contains(t, *out, "Bye!")
}
