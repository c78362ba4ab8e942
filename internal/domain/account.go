package domain

// GatewayAccount is a merchant's configuration for one provider.
type GatewayAccount struct {
	ID                  int64
	Provider            Provider
	Credentials         map[string]string
	CorporateSurcharges CorporateSurcharges
	RequiresThreeDS     bool
	Live                bool
	Description         string
}

// Credential returns a credential value or "".
func (a *GatewayAccount) Credential(key string) string {
	if a == nil || a.Credentials == nil {
		return ""
	}
	return a.Credentials[key]
}

// Credential keys understood by the gateway integrations.
const (
	CredentialMerchantID = "merchant_id"
	CredentialUsername   = "username"
	CredentialPassword   = "password"
	CredentialSHAIn      = "sha_in_passphrase"
	CredentialSHAOut     = "sha_out_passphrase"
	CredentialAPIKey     = "api_key"
	CredentialWebhookKey = "webhook_secret"
)
