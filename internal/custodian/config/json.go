package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/ghgadelivery/internal/flagx"
	"github.com/dmitrijs2005/ghgadelivery/internal/timex"
)

// JsonConfig is the file representation of Config.
type JsonConfig struct {
	EndpointAddrHTTP  string         `json:"endpoint_addr_http"`
	LogLevel          string         `json:"log_level"`
	ServerPrivateKey  string         `json:"server_private_key"`
	VaultAddr         string         `json:"vault_url"`
	VaultToken        string         `json:"vault_token"`
	VaultRoleID       string         `json:"vault_role_id"`
	VaultSecretID     string         `json:"vault_secret_id"`
	VaultAuthMount    string         `json:"vault_auth_mount_path"`
	VaultKVMount      string         `json:"vault_kv_mount"`
	VaultPathPrefix   string         `json:"vault_path"`
	VaultTimeout      timex.Duration `json:"vault_timeout"`
	VaultRetries      int            `json:"vault_retries"`
	MaxRequestBodyLen int64          `json:"max_request_body"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:  c.EndpointAddrHTTP,
		LogLevel:          c.LogLevel,
		ServerPrivateKey:  c.ServerPrivateKey,
		VaultAddr:         c.VaultAddr,
		VaultToken:        c.VaultToken,
		VaultRoleID:       c.VaultRoleID,
		VaultSecretID:     c.VaultSecretID,
		VaultAuthMount:    c.VaultAuthMount,
		VaultKVMount:      c.VaultKVMount,
		VaultPathPrefix:   c.VaultPathPrefix,
		VaultTimeout:      timex.Duration{Duration: c.VaultTimeout},
		VaultRetries:      c.VaultRetries,
		MaxRequestBodyLen: c.MaxRequestBodyLen,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.LogLevel = j.LogLevel
	c.ServerPrivateKey = j.ServerPrivateKey
	c.VaultAddr = j.VaultAddr
	c.VaultToken = j.VaultToken
	c.VaultRoleID = j.VaultRoleID
	c.VaultSecretID = j.VaultSecretID
	c.VaultAuthMount = j.VaultAuthMount
	c.VaultKVMount = j.VaultKVMount
	c.VaultPathPrefix = j.VaultPathPrefix
	c.VaultTimeout = j.VaultTimeout.Duration
	c.VaultRetries = j.VaultRetries
	c.MaxRequestBodyLen = j.MaxRequestBodyLen
}

// parseJson overlays values from the JSON file named by -c/-config.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}
	c.apply(config)
}
