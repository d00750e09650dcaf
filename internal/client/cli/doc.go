// Package cli implements authctl, a command-line front end for the
// authkeeper HTTP API.
//
// Each auth operation is a cobra subcommand. Missing values are prompted
// for interactively and passwords are read without echo. The session cookie
// issued by signup and login is kept in a file, so later invocations such as
// whoami run as the same account.
package cli
