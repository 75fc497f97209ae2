// Package config holds the Envelope Custodian settings, loaded the same way
// as the controller's: defaults, then an optional JSON file, then flags.
package config

import "time"

// Config holds runtime settings for the Envelope Custodian.
type Config struct {
	EndpointAddrHTTP string
	LogLevel         string

	// ServerPrivateKey is the base64 X25519 private key the custodian opens
	// and seals envelopes with.
	ServerPrivateKey string

	VaultAddr string
	// VaultToken authenticates directly; when empty the AppRole credentials
	// below are used to log in.
	VaultToken        string
	VaultRoleID       string
	VaultSecretID     string
	VaultAuthMount    string
	VaultKVMount      string
	VaultPathPrefix   string
	VaultTimeout      time.Duration
	VaultRetries      int
	MaxRequestBodyLen int64
}

// LoadDefaults populates Config with development defaults.
// NOTE: the private key and token here are for local use only.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8081"
	c.LogLevel = "info"

	c.ServerPrivateKey = ""

	c.VaultAddr = "http://127.0.0.1:8200"
	c.VaultToken = "dev-only-token"
	c.VaultRoleID = ""
	c.VaultSecretID = ""
	c.VaultAuthMount = "approle"
	c.VaultKVMount = "secret"
	c.VaultPathPrefix = "ekss"
	c.VaultTimeout = 10 * time.Second
	c.VaultRetries = 2
	c.MaxRequestBodyLen = 16 << 20
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
