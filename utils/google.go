package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleProfile struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleOAuth runs the authorization-code flow and reads the signed-in
// user's profile.
type GoogleOAuth struct {
	config      *oauth2.Config
	client      *resty.Client
	userInfoURL string
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		client:      resty.New().SetTimeout(15 * time.Second),
		userInfoURL: googleUserInfoURL,
	}
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Profile exchanges the callback code and fetches the user's profile.
func (g *GoogleOAuth) Profile(ctx context.Context, code string) (GoogleProfile, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("google: exchange code: %w", err)
	}

	var profile GoogleProfile
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(token.AccessToken).
		SetHeader("Accept", "application/json").
		SetResult(&profile).
		Get(g.userInfoURL)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("google: fetch profile: %w", err)
	}
	if resp.StatusCode() != 200 {
		return GoogleProfile{}, fmt.Errorf("google: profile request failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	if profile.Email == "" || !profile.VerifiedEmail {
		return GoogleProfile{}, errors.New("google: account has no verified email")
	}
	return profile, nil
}
