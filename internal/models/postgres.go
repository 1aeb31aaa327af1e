package models

import (
	"fmt"
	"net/url"
	"time"
)

// PostgresConfig holds the connection settings of the cashier database.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// URL returns a libpq-style connection URL usable by pgx.
func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	} else {
		u.User = url.User(c.Username)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}

// PostgresDumpResult holds the result of a pg_dump operation.
type PostgresDumpResult struct {
	OutputPath string
	SizeBytes  int64
	Duration   time.Duration
	Stderr     string // diagnostic output of pg_dump, for server-side logs only
	Error      error
}
