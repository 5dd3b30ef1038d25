package model

import "github.com/m-mizutani/goerr/v2"

// AuthContext carries the calendar provider credentials a session runs with.
// An end-user OAuth token wins over a service credentials file. With neither,
// application default credentials are used.
type AuthContext struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`

	CredentialsFile string `json:"-"`
}

// UserToken reports whether the end-user OAuth path is configured.
func (x AuthContext) UserToken() bool {
	return x.AccessToken != "" || x.RefreshToken != ""
}

func (x AuthContext) Validate() error {
	if x.RefreshToken != "" && (x.ClientID == "" || x.ClientSecret == "") {
		return goerr.Wrap(ErrConfiguration, "refresh token requires OAuth client ID and secret")
	}
	return nil
}
