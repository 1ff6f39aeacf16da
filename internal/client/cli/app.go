// Package cli is the interactive gophauth command-line client: a small REPL
// over the gRPC client for registering, logging in and managing the
// account.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
)

// AuthClient is the server API the commands use; *client.GRPCClient
// implements it.
type AuthClient interface {
	Register(ctx context.Context, email string, password []byte) (*authrpc.User, error)
	Login(ctx context.Context, email string, password []byte) (*authrpc.User, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*authrpc.User, error)
	ChangePassword(ctx context.Context, current, next []byte) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, password []byte) error
	ConfirmEmail(ctx context.Context, token string) error
	ResendConfirmation(ctx context.Context, email string) error
	LoggedIn() bool
	Close() error
}

var _ AuthClient = (*client.GRPCClient)(nil)

type App struct {
	config *config.Config
	client AuthClient
	reader *bufio.Reader
	out    io.Writer
	email  string
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return newApp(c, apiClient, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, ac AuthClient, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: ac, reader: bufio.NewReader(in), out: out}
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) status() string {
	if a.isLoggedIn() && a.email != "" {
		return "(" + a.email + ")"
	}
	return ""
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	printlnFn("Welcome to gophauth CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
}

// withTimeout bounds one server call.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
