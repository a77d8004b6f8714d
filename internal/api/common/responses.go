package common

import (
	"github.com/mvn-raffle/photoproxy/pkg/upstream"
	"github.com/mvn-raffle/photoproxy/pkg/vendorauth"
)

// UserInfoResponse describes the calling API key
type UserInfoResponse struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// CacheInfo summarises the photo cache
type CacheInfo struct {
	Backend    string `json:"backend"`
	Entries    int    `json:"entries"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// HealthInfo is returned by GET /health?info=true
type HealthInfo struct {
	Status      string                 `json:"status"`
	InstanceID  string                 `json:"instance_id"`
	PublicURL   string                 `json:"public_url,omitempty"`
	Credentials vendorauth.Status      `json:"credentials"`
	Cache       CacheInfo              `json:"cache"`
	RateLimit   upstream.LimiterStatus `json:"rate_limit"`
}
