package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

var serverFlags = []string{
	"-a", "-g", "-e", "-storage", "-m", "-mongo-db", "-d", "-s",
	"-client-url", "-mail", "-log-level", "-conceal-unknown-email",
}

// parseFlags applies command-line overrides.
//
//	-a string        HTTP bind address (e.g. ":5000")
//	-g string        gRPC health bind address
//	-e string        environment name ("production", "development", ...)
//	-storage string  mongo | postgres | memory
//	-m string        MongoDB URI
//	-mongo-db string MongoDB database name
//	-d string        PostgreSQL DSN
//	-s string        session signing secret
//	-client-url      frontend origin
//	-mail string     log | smtp | nats
//	-log-level       debug | info | warn | error
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port to listen on")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment name")
	fs.StringVar(&config.StorageDriver, "storage", config.StorageDriver, "storage driver")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "MongoDB URI")
	fs.StringVar(&config.MongoDatabase, "mongo-db", config.MongoDatabase, "MongoDB database")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session signing secret")
	fs.StringVar(&config.ClientURL, "client-url", config.ClientURL, "frontend origin")
	fs.StringVar(&config.Mail.Transport, "mail", config.Mail.Transport, "mail transport")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.BoolVar(&config.ConcealUnknownEmail, "conceal-unknown-email", config.ConcealUnknownEmail,
		"answer forgot-password for unknown emails as if they existed")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}
