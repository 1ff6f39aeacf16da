package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.InMemory = true
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrOps = "127.0.0.1:0"
	c.BcryptCost = 10
	return c
}

func TestNewApp_InMemoryRunsAndStops(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig(), io.Discard)
	require.NoError(t, err)
	require.NotNil(t, app.auth)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("app exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestNewApp_UnknownTokenFormat(t *testing.T) {
	c := memoryConfig()
	c.TokenFormat = "opaque"

	_, err := NewApp(context.Background(), c, io.Discard)
	assert.ErrorContains(t, err, "token codec")
}

func TestNewApp_BadPasetoKey(t *testing.T) {
	c := memoryConfig()
	c.TokenFormat = "paseto"
	c.PasetoSecretKeyHex = "zz"

	_, err := NewApp(context.Background(), c, io.Discard)
	assert.Error(t, err)
}

func TestRun_FailsOnBadAddress(t *testing.T) {
	c := memoryConfig()
	c.EndpointAddrGRPC = "127.0.0.1:99999"

	app, err := NewApp(context.Background(), c, io.Discard)
	require.NoError(t, err)
	assert.Error(t, app.Run(context.Background()))
}

func TestNewSender(t *testing.T) {
	c := memoryConfig()

	s, err := newSender(c, logging.Nop())
	require.NoError(t, err)
	assert.IsType(t, &mail.LogSender{}, s)

	c.MailHost = "smtp.example.com"
	c.MailUsername = "user"
	c.MailPassword = "pass"
	s, err = newSender(c, logging.Nop())
	require.NoError(t, err)
	assert.IsType(t, &mail.SMTPSender{}, s)
}
