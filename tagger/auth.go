package tagger

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/garlicnation/commontags"
)

// Authenticator obtains tagger tokens with the OAuth2 client-credentials
// grant. Every call requests a fresh token.
type Authenticator struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

// NewAuthenticator returns an Authenticator for the given client
// credentials. httpClient may be nil.
func NewAuthenticator(tokenURL, clientID, clientSecret string, scopes []string, httpClient *http.Client) *Authenticator {
	return &Authenticator{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		},
		httpClient: httpClient,
	}
}

// Authenticate implements commontags.Authenticator.
func (a *Authenticator) Authenticate(ctx context.Context) (commontags.Token, error) {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	tok, err := a.config.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			switch retrieveErr.Response.StatusCode {
			case http.StatusUnauthorized, http.StatusBadRequest:
				return "", errors.Wrap(ErrUnauthorized, retrieveErr.Error())
			case http.StatusTooManyRequests:
				return "", errors.Wrap(ErrRateLimited, "authenticating image tagger")
			}
		}
		return "", errors.Wrap(err, "authenticating image tagger")
	}
	if tok.AccessToken == "" {
		return "", errors.Wrap(ErrUnauthorized, "empty access token")
	}
	return commontags.Token(tok.AccessToken), nil
}
