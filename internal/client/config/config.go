// Package config loads runtime configuration for the gophauth CLI.
//
// Sources, later ones winning: built-in defaults, an optional JSON file
// (-c/-config or GOPHAUTH_CLIENT_CONFIG) and command-line flags:
//
//	-a string   address:port of the gRPC endpoint
//	-t int      request timeout in seconds
//
// JSON example:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "5s"
//	}
package config

import (
	"os"
	"time"
)

const ConfigEnvVar = "GOPHAUTH_CLIENT_CONFIG"

type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 5 * time.Second
}

func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
