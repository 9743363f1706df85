package model

// TokenBundle is the success payload of the access-token exchange. The signed
// token body is fixed once minted; only ExpiresIn is recomputed relative to
// "now" when a cached bundle is served again.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"` // always "Not Supported"
	TokenType    string `json:"token_type"`    // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"`    // seconds until expiry
	Expiration   int64  `json:"expiration"`    // unix seconds
	Scope        string `json:"scope"`
}
