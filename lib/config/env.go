// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/bureau-foundation/wifisync/lib/secret"
)

// Environment holds the values that never live in the config file.
type Environment struct {
	// ServerURL is the ChurchTools instance, e.g. https://example.church.tools.
	ServerURL string

	// APIUser is the ChurchTools login of the sync account.
	APIUser string

	// APIPassword is the sync account's ChurchTools password. The same
	// password logs the account into Matrix.
	APIPassword *secret.Buffer

	// KeyPassphrase unlocks a passphrase-protected age identity. Nil
	// when unset.
	KeyPassphrase *secret.Buffer

	// OTelEndpoint is the OTLP/HTTP collector. Empty disables export.
	OTelEndpoint string
}

// Close releases the secret buffers.
func (e *Environment) Close() error {
	if e.APIPassword != nil {
		e.APIPassword.Close()
	}
	if e.KeyPassphrase != nil {
		e.KeyPassphrase.Close()
	}
	return nil
}

type rawEnvironment struct {
	ServerURL     string `env:"CT_SERVER_URL,required,notEmpty"`
	APIUser       string `env:"CT_API_USER,required,notEmpty"`
	APIPassword   string `env:"CT_API_USER_PWD,required,notEmpty,unset"`
	KeyPassphrase string `env:"WIFISYNC_KEY_PASSPHRASE,unset"`
	OTelEndpoint  string `env:"WIFISYNC_OTEL_ENDPOINT"`
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process
// environment. Variables already set are not overridden. A missing
// file is an error: the caller asked for it explicitly.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: loading env file %s: %w", path, err)
	}
	return nil
}

// LoadEnvironment reads the secrets from the process environment.
func LoadEnvironment() (*Environment, error) {
	return loadEnvironment(env.Options{})
}

// LoadEnvironmentFrom reads the secrets from the given map instead of
// the process environment.
func LoadEnvironmentFrom(values map[string]string) (*Environment, error) {
	return loadEnvironment(env.Options{Environment: values})
}

func loadEnvironment(options env.Options) (*Environment, error) {
	var raw rawEnvironment
	if err := env.ParseWithOptions(&raw, options); err != nil {
		return nil, fmt.Errorf("config: missing required environment variables: %w", err)
	}

	password, err := secret.NewFromString(raw.APIPassword)
	if err != nil {
		return nil, fmt.Errorf("config: protecting CT_API_USER_PWD: %w", err)
	}
	environment := &Environment{
		ServerURL:    raw.ServerURL,
		APIUser:      raw.APIUser,
		APIPassword:  password,
		OTelEndpoint: raw.OTelEndpoint,
	}
	if raw.KeyPassphrase != "" {
		environment.KeyPassphrase, err = secret.NewFromString(raw.KeyPassphrase)
		if err != nil {
			environment.Close()
			return nil, fmt.Errorf("config: protecting WIFISYNC_KEY_PASSPHRASE: %w", err)
		}
	}
	return environment, nil
}

// LoadKeyPassphrase reads only WIFISYNC_KEY_PASSPHRASE, for commands
// that open the credential store without talking to either API. It
// returns nil when the variable is unset.
func LoadKeyPassphrase() (*secret.Buffer, error) {
	var raw struct {
		KeyPassphrase string `env:"WIFISYNC_KEY_PASSPHRASE,unset"`
	}
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("config: reading WIFISYNC_KEY_PASSPHRASE: %w", err)
	}
	if raw.KeyPassphrase == "" {
		return nil, nil
	}
	passphrase, err := secret.NewFromString(raw.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("config: protecting WIFISYNC_KEY_PASSPHRASE: %w", err)
	}
	return passphrase, nil
}
