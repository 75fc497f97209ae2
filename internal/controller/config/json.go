package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/ghgadelivery/internal/flagx"
	"github.com/dmitrijs2005/ghgadelivery/internal/timex"
)

// JsonConfig is the file representation of Config. Durations use
// timex.Duration so both "90s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	DatabaseDSN      string `json:"database_dsn"`
	LogLevel         string `json:"log_level"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	ConsumerGroup string `json:"consumer_group"`
	ConsumerName  string `json:"consumer_name"`

	FileRegisteredTopic      string `json:"file_registered_topic"`
	FileStagedTopic          string `json:"file_staged_topic"`
	FileDeletionRequestTopic string `json:"file_deletion_request_topic"`
	StagingRequestedTopic    string `json:"staging_requested_topic"`
	FileDeletedTopic         string `json:"file_deleted_topic"`
	DownloadServedTopic      string `json:"download_served_topic"`
	DeadLetterTopic          string `json:"dead_letter_topic"`

	EventMaxRetries   uint64         `json:"event_max_retries"`
	EventRetryBackoff timex.Duration `json:"event_retry_backoff"`
	DeadLetterEnabled bool           `json:"dead_letter_enabled"`

	WorkOrderSecret        string         `json:"work_order_secret"`
	DRSServerURI           string         `json:"drs_server_uri"`
	PresignedURLExpiration timex.Duration `json:"presigned_url_expiration"`

	StagingSpeedMBps int64          `json:"staging_speed"`
	RetryAfterMin    int64          `json:"retry_after_min"`
	RetryAfterMax    int64          `json:"retry_after_max"`
	StagingTicketTTL timex.Duration `json:"staging_ticket_ttl"`

	OutboxCacheTimeoutDays int            `json:"outbox_cache_timeout"`
	JanitorInterval        timex.Duration `json:"janitor_interval"`

	CustodianBaseURL string         `json:"custodian_base_url"`
	CustodianTimeout timex.Duration `json:"custodian_timeout"`
	CustodianRetries int            `json:"custodian_retries"`

	StorageNodes map[string]StorageNode `json:"storage_nodes"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:         c.EndpointAddrHTTP,
		DatabaseDSN:              c.DatabaseDSN,
		LogLevel:                 c.LogLevel,
		RedisAddr:                c.RedisAddr,
		RedisPassword:            c.RedisPassword,
		RedisDB:                  c.RedisDB,
		ConsumerGroup:            c.ConsumerGroup,
		ConsumerName:             c.ConsumerName,
		FileRegisteredTopic:      c.FileRegisteredTopic,
		FileStagedTopic:          c.FileStagedTopic,
		FileDeletionRequestTopic: c.FileDeletionRequestTopic,
		StagingRequestedTopic:    c.StagingRequestedTopic,
		FileDeletedTopic:         c.FileDeletedTopic,
		DownloadServedTopic:      c.DownloadServedTopic,
		DeadLetterTopic:          c.DeadLetterTopic,
		EventMaxRetries:          c.EventMaxRetries,
		EventRetryBackoff:        timex.Duration{Duration: c.EventRetryBackoff},
		DeadLetterEnabled:        c.DeadLetterEnabled,
		WorkOrderSecret:          c.WorkOrderSecret,
		DRSServerURI:             c.DRSServerURI,
		PresignedURLExpiration:   timex.Duration{Duration: c.PresignedURLExpiration},
		StagingSpeedMBps:         c.StagingSpeedMBps,
		RetryAfterMin:            c.RetryAfterMin,
		RetryAfterMax:            c.RetryAfterMax,
		StagingTicketTTL:         timex.Duration{Duration: c.StagingTicketTTL},
		OutboxCacheTimeoutDays:   c.OutboxCacheTimeoutDays,
		JanitorInterval:          timex.Duration{Duration: c.JanitorInterval},
		CustodianBaseURL:         c.CustodianBaseURL,
		CustodianTimeout:         timex.Duration{Duration: c.CustodianTimeout},
		CustodianRetries:         c.CustodianRetries,
		StorageNodes:             c.StorageNodes,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.DatabaseDSN = j.DatabaseDSN
	c.LogLevel = j.LogLevel
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.ConsumerGroup = j.ConsumerGroup
	c.ConsumerName = j.ConsumerName
	c.FileRegisteredTopic = j.FileRegisteredTopic
	c.FileStagedTopic = j.FileStagedTopic
	c.FileDeletionRequestTopic = j.FileDeletionRequestTopic
	c.StagingRequestedTopic = j.StagingRequestedTopic
	c.FileDeletedTopic = j.FileDeletedTopic
	c.DownloadServedTopic = j.DownloadServedTopic
	c.DeadLetterTopic = j.DeadLetterTopic
	c.EventMaxRetries = j.EventMaxRetries
	c.EventRetryBackoff = j.EventRetryBackoff.Duration
	c.DeadLetterEnabled = j.DeadLetterEnabled
	c.WorkOrderSecret = j.WorkOrderSecret
	c.DRSServerURI = j.DRSServerURI
	c.PresignedURLExpiration = j.PresignedURLExpiration.Duration
	c.StagingSpeedMBps = j.StagingSpeedMBps
	c.RetryAfterMin = j.RetryAfterMin
	c.RetryAfterMax = j.RetryAfterMax
	c.StagingTicketTTL = j.StagingTicketTTL.Duration
	c.OutboxCacheTimeoutDays = j.OutboxCacheTimeoutDays
	c.JanitorInterval = j.JanitorInterval.Duration
	c.CustodianBaseURL = j.CustodianBaseURL
	c.CustodianTimeout = j.CustodianTimeout.Duration
	c.CustodianRetries = j.CustodianRetries
	c.StorageNodes = j.StorageNodes
}

// parseJson overlays values from the JSON file named by -c/-config.
// Keys missing from the file keep their current value. An unreadable file
// or invalid JSON panics, as there is no sensible way to continue.
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
