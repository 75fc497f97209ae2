package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/ghgadelivery/internal/flagx"
)

// parseFlags overrides selected fields from the command line.
//
//	-a string  HTTP bind address
//	-l string  log level
//	-k string  server private key (base64)
//	-v string  vault address
//	-t string  vault token
//	-p string  vault path prefix
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("custodian", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.ServerPrivateKey, "k", config.ServerPrivateKey, "server private key (base64)")
	fs.StringVar(&config.VaultAddr, "v", config.VaultAddr, "vault address")
	fs.StringVar(&config.VaultToken, "t", config.VaultToken, "vault token")
	fs.StringVar(&config.VaultPathPrefix, "p", config.VaultPathPrefix, "vault path prefix")

	if err := flagx.ParseKnown(fs, os.Args[1:]); err != nil {
		panic(err)
	}
}
