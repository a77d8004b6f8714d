package common

import "github.com/mvn-raffle/photoproxy/pkg/vendorauth"

// UpdateCredentialsRequest replaces the vendor session
type UpdateCredentialsRequest struct {
	SessionCookie string `json:"session_cookie" validate:"required"`
	TenantCookie  string `json:"tenant_cookie" validate:"required"`
	CSRFToken     string `json:"csrf_token,omitempty"`
	BearerToken   string `json:"bearer_token,omitempty"`
}

// Credential converts the request into a vendor credential
func (r *UpdateCredentialsRequest) Credential() vendorauth.Credential {
	return vendorauth.Credential{
		SessionCookie: r.SessionCookie,
		TenantCookie:  r.TenantCookie,
		CSRFToken:     r.CSRFToken,
		BearerToken:   r.BearerToken,
	}
}
