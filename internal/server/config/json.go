package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "15m"-style strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC              string         `json:"endpoint_addr_grpc"`
	EndpointAddrOps               string         `json:"endpoint_addr_ops"`
	InMemory                      bool           `json:"in_memory"`
	DatabaseDSN                   string         `json:"database_dsn"`
	RedisAddr                     string         `json:"redis_addr"`
	RedisPassword                 string         `json:"redis_password"`
	RedisDB                       int            `json:"redis_db"`
	TokenFormat                   string         `json:"token_format"`
	SecretKey                     string         `json:"secret_key"`
	PasetoSecretKeyHex            string         `json:"paseto_secret_key_hex"`
	AccessTokenValidityDuration   timex.Duration `json:"access_token_validity_duration"`
	SessionValidityDuration       timex.Duration `json:"session_validity_duration"`
	CacheValidityDuration         timex.Duration `json:"cache_validity_duration"`
	ConfirmationValidityDuration  timex.Duration `json:"confirmation_validity_duration"`
	PasswordResetValidityDuration timex.Duration `json:"password_reset_validity_duration"`
	BcryptCost                    int            `json:"bcrypt_cost"`
	FrontendBaseURL               string         `json:"frontend_base_url"`
	FrontendEmailConfirmationPath string         `json:"frontend_email_confirmation_path"`
	FrontendPasswordResetPath     string         `json:"frontend_password_reset_path"`
	MailHost                      string         `json:"mail_host"`
	MailPort                      int            `json:"mail_port"`
	MailUsername                  string         `json:"mail_username"`
	MailPassword                  string         `json:"mail_password"`
	MailFrom                      string         `json:"mail_from"`
	MailTLS                       bool           `json:"mail_tls"`
	RateLimitWindow               timex.Duration `json:"rate_limit_window"`
	RateLimitMax                  int            `json:"rate_limit_max"`
	LogLevel                      string         `json:"log_level"`
	LogFormat                     string         `json:"log_format"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:              c.EndpointAddrGRPC,
		EndpointAddrOps:               c.EndpointAddrOps,
		InMemory:                      c.InMemory,
		DatabaseDSN:                   c.DatabaseDSN,
		RedisAddr:                     c.RedisAddr,
		RedisPassword:                 c.RedisPassword,
		RedisDB:                       c.RedisDB,
		TokenFormat:                   c.TokenFormat,
		SecretKey:                     c.SecretKey,
		PasetoSecretKeyHex:            c.PasetoSecretKeyHex,
		AccessTokenValidityDuration:   timex.Duration{Duration: c.AccessTokenValidityDuration},
		SessionValidityDuration:       timex.Duration{Duration: c.SessionValidityDuration},
		CacheValidityDuration:         timex.Duration{Duration: c.CacheValidityDuration},
		ConfirmationValidityDuration:  timex.Duration{Duration: c.ConfirmationValidityDuration},
		PasswordResetValidityDuration: timex.Duration{Duration: c.PasswordResetValidityDuration},
		BcryptCost:                    c.BcryptCost,
		FrontendBaseURL:               c.FrontendBaseURL,
		FrontendEmailConfirmationPath: c.FrontendEmailConfirmationPath,
		FrontendPasswordResetPath:     c.FrontendPasswordResetPath,
		MailHost:                      c.MailHost,
		MailPort:                      c.MailPort,
		MailUsername:                  c.MailUsername,
		MailPassword:                  c.MailPassword,
		MailFrom:                      c.MailFrom,
		MailTLS:                       c.MailTLS,
		RateLimitWindow:               timex.Duration{Duration: c.RateLimitWindow},
		RateLimitMax:                  c.RateLimitMax,
		LogLevel:                      c.LogLevel,
		LogFormat:                     c.LogFormat,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.EndpointAddrOps = j.EndpointAddrOps
	c.InMemory = j.InMemory
	c.DatabaseDSN = j.DatabaseDSN
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.TokenFormat = j.TokenFormat
	c.SecretKey = j.SecretKey
	c.PasetoSecretKeyHex = j.PasetoSecretKeyHex
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.SessionValidityDuration = j.SessionValidityDuration.Duration
	c.CacheValidityDuration = j.CacheValidityDuration.Duration
	c.ConfirmationValidityDuration = j.ConfirmationValidityDuration.Duration
	c.PasswordResetValidityDuration = j.PasswordResetValidityDuration.Duration
	c.BcryptCost = j.BcryptCost
	c.FrontendBaseURL = j.FrontendBaseURL
	c.FrontendEmailConfirmationPath = j.FrontendEmailConfirmationPath
	c.FrontendPasswordResetPath = j.FrontendPasswordResetPath
	c.MailHost = j.MailHost
	c.MailPort = j.MailPort
	c.MailUsername = j.MailUsername
	c.MailPassword = j.MailPassword
	c.MailFrom = j.MailFrom
	c.MailTLS = j.MailTLS
	c.RateLimitWindow = j.RateLimitWindow.Duration
	c.RateLimitMax = j.RateLimitMax
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
}

// parseJson overlays the JSON file named by -c/-config (or GOPHAUTH_CONFIG).
// Keys missing from the file keep their current values. No path means no-op.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args, ConfigEnvVar)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	c.apply(config)
	return nil
}
