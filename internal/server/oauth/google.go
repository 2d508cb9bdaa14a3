// Package oauth integrates external identity providers. The rest of the
// server only sees verified identities; provider plumbing stays here.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rmaia/authd/internal/common"
)

// Identity is a verified external identity as reported by a provider.
type Identity struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

// IdentityProvider starts the authorization flow and exchanges the
// resulting code for a verified identity.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

const (
	googleAuthEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	googleUserinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleProvider implements IdentityProvider against Google's OAuth2
// endpoints using the authorization code flow.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	redirectURL  string

	client           *http.Client
	tokenEndpoint    string
	userinfoEndpoint string
}

// NewGoogleProvider constructs a provider with the given client credentials.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		clientID:         clientID,
		clientSecret:     clientSecret,
		redirectURL:      redirectURL,
		client:           &http.Client{Timeout: 10 * time.Second},
		tokenEndpoint:    googleTokenEndpoint,
		userinfoEndpoint: googleUserinfoEndpoint,
	}
}

// AuthURL builds the authorization redirect that starts a login, carrying
// the caller-supplied anti-forgery state.
func (p *GoogleProvider) AuthURL(state string) string {
	q := url.Values{
		"client_id":     {p.clientID},
		"redirect_uri":  {p.redirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return googleAuthEndpoint + "?" + q.Encode()
}

// Exchange redeems the authorization code for an access token and fetches
// the userinfo document. Identities without a verified email are rejected
// as unauthorized.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	accessToken, err := p.redeemCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return p.fetchUserinfo(ctx, accessToken)
}

func (p *GoogleProvider) redeemCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
		"redirect_uri":  {p.redirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", common.ErrorUnauthorized
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", common.ErrorUnauthorized
	}
	return body.AccessToken, nil
}

func (p *GoogleProvider) fetchUserinfo(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.ErrorUnauthorized
	}

	var body struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding userinfo response: %w", err)
	}
	if body.Email == "" {
		return nil, common.ErrorUnauthorized
	}

	return &Identity{
		Subject:    body.ID,
		Email:      body.Email,
		GivenName:  body.GivenName,
		FamilyName: body.FamilyName,
		Picture:    body.Picture,
	}, nil
}
