package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Credentials for the vendor login page. These come from the environment
// only, never from flags, so they stay out of process listings.
type Credentials struct {
	Username string `env:"SMARTHOME_USERNAME,notEmpty"`
	Password string `env:"SMARTHOME_PASSWORD,notEmpty"`
}

func LoadCredentials() (*Credentials, error) {
	creds := &Credentials{}
	if err := env.Parse(creds); err != nil {
		return nil, fmt.Errorf("failed to load smarthome credentials: %w", err)
	}
	return creds, nil
}
