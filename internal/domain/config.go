package domain

import "time"

// Config is the site configuration handlers and services read at runtime.
type Config struct {
	FQDN           string
	JWTSecret      string
	AdminEmails    []string
	SignedURLTTL   time.Duration
	MaxUploadBytes int64
}
