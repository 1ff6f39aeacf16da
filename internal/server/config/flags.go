package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags overlays command-line flags.
//
//	-a string   gRPC bind address (e.g. ":50051")
//	-o string   ops (health, metrics) bind address
//	-d string   PostgreSQL DSN
//	-k string   Redis address
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      session and refresh token validity, minutes
//	-f string   frontend base URL used in mail links
//	-l string   log level
//	-m          run on in-memory stores
//
// Only these flags are parsed; flagx.FilterArgs drops everything else so the
// -c flag of the JSON layer does not collide.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-o", "-d", "-k", "-s", "-t", "-r", "-f", "-l", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrOps, "o", config.EndpointAddrOps, "ops address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "k", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.FrontendBaseURL, "f", config.FrontendBaseURL, "frontend base URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.InMemory, "m", config.InMemory, "use in-memory stores")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	sessionValidity := fs.Int("r", int(config.SessionValidityDuration.Minutes()), "session validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
		}
	})
	return nil
}
