package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ErrPropertyNotFound is returned by a Provider that has no value for the
// requested application/property pair.
var ErrPropertyNotFound = errors.New("property not found")

// Provider reads configuration properties keyed by application and property name.
type Provider interface {
	Read(application, property string) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(application, property string) (string, error)

// Read implements Provider.
func (f ProviderFunc) Read(application, property string) (string, error) {
	return f(application, property)
}

// FileProvider serves properties from the config file's properties map.
type FileProvider struct {
	Properties map[string]map[string]string
}

// NewFileProvider returns a provider over cfg.Properties.
func NewFileProvider(cfg *Config) *FileProvider {
	return &FileProvider{Properties: cfg.Properties}
}

// Read implements Provider.
func (p *FileProvider) Read(application, property string) (string, error) {
	if v, ok := p.Properties[application][property]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%s/%s: %w", application, property, ErrPropertyNotFound)
}

// EnvPrefix prefixes every environment variable read by EnvProvider.
const EnvPrefix = "CLAIMSTORE"

// EnvProvider serves properties from environment variables named
// CLAIMSTORE_<APPLICATION>_<PROPERTY>, upper-cased, with every character
// outside [A-Z0-9] replaced by an underscore.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider returns a provider reading the process environment.
// When envFile is non-empty and exists, it is loaded first with godotenv;
// variables already present in the environment are not overridden.
func NewEnvProvider(envFile string) (*EnvProvider, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return &EnvProvider{lookup: os.LookupEnv}, nil
}

// EnvName returns the environment variable name for an application/property pair.
func EnvName(application, property string) string {
	return EnvPrefix + "_" + envSegment(application) + "_" + envSegment(property)
}

func envSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Read implements Provider.
func (p *EnvProvider) Read(application, property string) (string, error) {
	if v, ok := p.lookup(EnvName(application, property)); ok {
		return v, nil
	}
	return "", fmt.Errorf("%s/%s: %w", application, property, ErrPropertyNotFound)
}

// Chain consults providers in order. The first value found wins; a failure
// other than ErrPropertyNotFound stops the chain and is returned as is.
type Chain []Provider

// Read implements Provider.
func (c Chain) Read(application, property string) (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		v, err := p.Read(application, property)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrPropertyNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s/%s: %w", application, property, ErrPropertyNotFound)
}
