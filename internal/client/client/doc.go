// Package client talks to the authkeeper HTTP API.
//
// HTTPClient wraps each auth endpoint in a method and keeps the session
// cookie between process runs through a SessionStore. Responses with an
// error status come back as *APIError; a server that cannot be reached
// yields an error matching ErrUnavailable.
package client
