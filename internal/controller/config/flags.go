package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/flagx"
)

// parseFlags overrides selected fields from the command line.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-l string   log level
//	-r string   Redis address
//	-s string   work-order token secret
//	-u string   DRS server URI
//	-k string   Envelope Custodian base URL
//	-speed int  staging speed, MB/s
//	-retry-min / -retry-max int  Retry-After bounds, seconds
//	-janitor int  janitor interval, minutes (0 disables)
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("controller", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.WorkOrderSecret, "s", config.WorkOrderSecret, "work order token secret")
	fs.StringVar(&config.DRSServerURI, "u", config.DRSServerURI, "DRS server URI")
	fs.StringVar(&config.CustodianBaseURL, "k", config.CustodianBaseURL, "envelope custodian base URL")
	fs.Int64Var(&config.StagingSpeedMBps, "speed", config.StagingSpeedMBps, "staging speed (MB/s)")
	fs.Int64Var(&config.RetryAfterMin, "retry-min", config.RetryAfterMin, "minimum Retry-After (seconds)")
	fs.Int64Var(&config.RetryAfterMax, "retry-max", config.RetryAfterMax, "maximum Retry-After (seconds)")
	janitor := fs.Int("janitor", int(config.JanitorInterval.Minutes()), "outbox janitor interval (in minutes, 0 disables)")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "janitor" {
			config.JanitorInterval = time.Duration(*janitor) * time.Minute
		}
	})
}
