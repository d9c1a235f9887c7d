package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/panyam/authbase"
)

type GithubOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the URL to fetch user info from.  Defaults to
	// GitHub's API.  Can be overridden for testing.
	UserInfoURL string
}

func NewGithubOAuth2(clientId string, clientSecret string, callbackUrl string, handleProfile HandleProfileFunc) *GithubOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"))
	}

	out := GithubOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleProfile),
		UserInfoURL: "https://api.github.com/user",
	}
	out.BaseOAuth2.AuthFailureUrl = "/auth/github/fail/"
	out.BaseOAuth2.oauthConfig.Endpoint = github.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"read:user", "user:email",
	}

	out.mux.HandleFunc("/callback/", out.handleCallback)

	return &out
}

func (g *GithubOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !checkState(w, r) {
		return
	}

	code := r.FormValue("code")
	token, err := g.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		slog.Info("invalid code exchange", "err", err)
	} else {
		var profile authbase.OAuthProfile
		profile, err = g.fetchProfile(token)
		if err == nil {
			g.HandleProfile(profile, token, w, r)
		}
	}
	if err != nil {
		slog.Info("redirecting due to error", "err", err)
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
	}
}

func (g *GithubOAuth2) fetchProfile(token *oauth2.Token) (authbase.OAuthProfile, error) {
	var profile authbase.OAuthProfile

	req, err := http.NewRequest("GET", g.UserInfoURL, nil)
	if err != nil {
		return profile, fmt.Errorf("failed to create request: %s", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.getHTTPClient().Do(req)
	if err != nil {
		return profile, fmt.Errorf("failed getting user info from github: %s", err.Error())
	}
	defer resp.Body.Close()

	contents, err := io.ReadAll(resp.Body)
	if err != nil {
		return profile, fmt.Errorf("failed read response: %s", err.Error())
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return profile, fmt.Errorf("failed to parse user info: %s", err.Error())
	}

	profile = authbase.OAuthProfile{
		Provider: authbase.ProviderGithub,
		Email:    stringField(userInfo, "email"),
		Name:     stringField(userInfo, "name"),
		Image:    stringField(userInfo, "avatar_url"),
	}
	// GitHub ids are numeric.
	switch id := userInfo["id"].(type) {
	case string:
		profile.ProviderAccountID = id
	case float64:
		profile.ProviderAccountID = strconv.FormatInt(int64(id), 10)
	}
	if profile.Name == "" {
		profile.Name = stringField(userInfo, "login")
	}
	if profile.ProviderAccountID == "" || profile.Email == "" {
		return profile, fmt.Errorf("provider did not return an id and email")
	}
	return profile, nil
}
