package config

import (
	"fmt"

	"github.com/mvn-raffle/photoproxy/pkg/auth"
)

// APIKey represents an API key configuration
type APIKey struct {
	Role   string `yaml:"role" validate:"oneof=admin viewer"`
	APIKey string `yaml:"api_key" validate:"required,min=16"`
	Name   string `yaml:"name,omitempty"`
}

// AllAPIKeys returns the configured keys, with AdminAPIKey as an "admin" entry.
func (c *Config) AllAPIKeys() []APIKey {
	keys := make([]APIKey, 0, len(c.Server.APIKeys)+1)
	if c.Server.AdminAPIKey != "" {
		keys = append(keys, APIKey{Role: auth.Admin.String(), APIKey: c.Server.AdminAPIKey, Name: "admin"})
	}
	return append(keys, c.Server.APIKeys...)
}

// FindAPIKeyByKey finds an API key by its key value
func FindAPIKeyByKey(apiKeys []APIKey, key string) (*APIKey, bool) {
	for _, ak := range apiKeys {
		if ak.APIKey == key {
			return &ak, true
		}
	}
	return nil, false
}

func validateAPIKeys(keys []APIKey) error {
	seen := make(map[string]string, len(keys))
	for _, k := range keys {
		if len(k.APIKey) < 16 {
			return fmt.Errorf("invalid config: api key %q is shorter than 16 characters", k.Name)
		}
		if other, dup := seen[k.APIKey]; dup {
			return fmt.Errorf("invalid config: api keys %q and %q share a value", other, k.Name)
		}
		seen[k.APIKey] = k.Name
	}
	return nil
}
