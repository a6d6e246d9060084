package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/server/config"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	oauthStateTTL = 10 * time.Minute
)

var (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	githubAPIBase     = "https://api.github.com"
)

type oauthUser struct {
	Email     string
	Name      string
	AvatarURL string
}

type oauthProvider struct {
	config   *oauth2.Config
	userInfo func(ctx context.Context, client *http.Client) (*oauthUser, error)
}

// OAuthService signs users in through Google or GitHub.
type OAuthService struct {
	identity  *IdentityService
	providers map[string]*oauthProvider
	states    *cache.Cache
}

// NewOAuthService enables every provider that has a client id configured.
func NewOAuthService(identity *IdentityService, cfg *config.Config) *OAuthService {
	base := strings.TrimRight(cfg.OAuthRedirectBase, "/")
	redirect := func(name string) string {
		return base + "/api/auth/oauth/" + name + "/callback"
	}

	providers := map[string]*oauthProvider{}
	if cfg.GoogleClientID != "" {
		providers[ProviderGoogle] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  redirect(ProviderGoogle),
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.email",
					"https://www.googleapis.com/auth/userinfo.profile",
				},
				Endpoint: google.Endpoint,
			},
			userInfo: googleUser,
		}
	}
	if cfg.GitHubClientID != "" {
		providers[ProviderGitHub] = &oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				RedirectURL:  redirect(ProviderGitHub),
				Scopes:       []string{"read:user", "user:email"},
				Endpoint:     github.Endpoint,
			},
			userInfo: githubUser,
		}
	}
	return newOAuthService(identity, providers)
}

func newOAuthService(identity *IdentityService, providers map[string]*oauthProvider) *OAuthService {
	return &OAuthService{
		identity:  identity,
		providers: providers,
		states:    cache.New(oauthStateTTL, 2*oauthStateTTL),
	}
}

// AuthURL returns the provider's consent page URL carrying a fresh state.
func (s *OAuthService) AuthURL(provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", common.ErrUnknownProvider
	}

	state, err := common.MakeRandHexString(16)
	if err != nil {
		return "", common.ErrorInternal
	}
	s.states.SetDefault(state, provider)

	return p.config.AuthCodeURL(state), nil
}

// Callback completes the code flow: it checks state, exchanges code,
// fetches the provider's profile and signs the matching account in.
func (s *OAuthService) Callback(ctx context.Context, provider, state, code string) (*TokenPair, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, common.ErrUnknownProvider
	}

	v, ok := s.states.Get(state)
	if !ok || v.(string) != provider {
		return nil, common.ErrInvalidOAuthState
	}
	s.states.Delete(state)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", common.ErrorUnauthorized, err)
	}

	u, err := p.userInfo(ctx, p.config.Client(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("error fetching %s user: %w", provider, err)
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: %s account has no verified email", common.ErrorUnauthorized, provider)
	}

	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = email
	}

	prof, err := s.identity.repomanager.Profiles(s.identity.db).UpsertByEmail(ctx, &models.Profile{
		Email:     email,
		Name:      name,
		AvatarURL: u.AvatarURL,
		Role:      common.RoleStudent,
		Status:    s.identity.signupStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("error upserting profile: %w", err)
	}

	return s.identity.issue(ctx, s.identity.db, prof)
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func googleUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var u struct {
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, client, googleUserInfoURL, &u); err != nil {
		return nil, err
	}
	if !u.VerifiedEmail {
		u.Email = ""
	}
	return &oauthUser{Email: u.Email, Name: u.Name, AvatarURL: u.Picture}, nil
}

func githubUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var u struct {
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, githubAPIBase+"/user", &u); err != nil {
		return nil, err
	}

	// The public profile email is optional; the emails endpoint tells
	// which address is primary and verified.
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, githubAPIBase+"/user/emails", &emails); err != nil {
		return nil, err
	}

	out := &oauthUser{Name: u.Name, AvatarURL: u.AvatarURL}
	if out.Name == "" {
		out.Name = u.Login
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			out.Email = e.Email
			break
		}
	}
	if out.Email == "" {
		for _, e := range emails {
			if e.Verified {
				out.Email = e.Email
				break
			}
		}
	}
	return out, nil
}

// Providers lists the enabled provider names.
func (s *OAuthService) Providers() []string {
	var names []string
	for _, n := range []string{ProviderGoogle, ProviderGitHub} {
		if _, ok := s.providers[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

