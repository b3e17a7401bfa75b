package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OAuthExchanger performs a standard refresh_token grant against the commerce
// platform's token endpoint.
type OAuthExchanger struct {
	TokenURL   string
	HTTPClient *http.Client
}

// NewOAuthExchanger returns an exchanger for the given token endpoint.
func NewOAuthExchanger(tokenURL string) *OAuthExchanger {
	return &OAuthExchanger{
		TokenURL:   tokenURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Exchange posts the refresh grant and parses the token response.
func (e *OAuthExchanger) Exchange(ctx context.Context, clientID, clientSecret, refreshToken string) (Token, error) {
	if e.TokenURL == "" {
		return Token{}, fmt.Errorf("oauth: token URL not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Token{}, fmt.Errorf("oauth: token endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("oauth: decode token response: %w", err)
	}
	return Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresIn:    time.Duration(body.ExpiresIn) * time.Second,
	}, nil
}
