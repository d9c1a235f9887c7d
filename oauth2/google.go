package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/panyam/authbase"
)

type GoogleOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the URL to fetch user info from.  Defaults to
	// Google's API.  Can be overridden for testing.
	UserInfoURL string
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleProfile HandleProfileFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if callbackUrl == "" {
		callbackUrl = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}

	out := GoogleOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleProfile),
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
	out.BaseOAuth2.AuthFailureUrl = "/auth/google/fail/"
	out.BaseOAuth2.oauthConfig.Endpoint = google.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
	}

	out.mux.HandleFunc("/callback/", out.handleCallback)

	return &out
}

func (g *GoogleOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
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

func (g *GoogleOAuth2) fetchProfile(token *oauth2.Token) (authbase.OAuthProfile, error) {
	var profile authbase.OAuthProfile

	resp, err := g.getHTTPClient().Get(g.UserInfoURL + "?access_token=" + token.AccessToken)
	if err != nil {
		return profile, fmt.Errorf("failed getting user info: %s", err.Error())
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
		Provider: authbase.ProviderGoogle,
		Email:    stringField(userInfo, "email"),
		Name:     stringField(userInfo, "name"),
		Image:    stringField(userInfo, "picture"),
	}
	switch id := userInfo["id"].(type) {
	case string:
		profile.ProviderAccountID = id
	case float64:
		profile.ProviderAccountID = strconv.FormatInt(int64(id), 10)
	}
	if profile.ProviderAccountID == "" || profile.Email == "" {
		return profile, fmt.Errorf("provider did not return an id and email")
	}
	return profile, nil
}
