package oauth2_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/panyam/authbase"
	"github.com/panyam/authbase/oauth2"
	oauth2lib "golang.org/x/oauth2"
)

// mockOAuthServer creates a mock OAuth provider server that handles:
// - /token endpoint for token exchange
// - /userinfo endpoint for user data retrieval
type mockOAuthServer struct {
	server           *httptest.Server
	tokenEndpoint    string
	userInfoEndpoint string

	// Configuration for responses
	tokenResponse    map[string]any
	userInfoResponse map[string]any
	tokenError       bool
	userInfoError    bool
}

func newMockOAuthServer() *mockOAuthServer {
	mock := &mockOAuthServer{
		tokenResponse: map[string]any{
			"access_token":  "mock_access_token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "mock_refresh_token",
		},
		userInfoResponse: map[string]any{
			"id":      "12345",
			"email":   "testuser@example.com",
			"name":    "Test User",
			"picture": "https://example.com/photo.jpg",
		},
	}

	mux := http.NewServeMux()

	// Token endpoint
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if mock.tokenError {
			http.Error(w, "token exchange failed", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.tokenResponse)
	})

	// User info endpoint
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if mock.userInfoError {
			http.Error(w, "user info failed", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.userInfoResponse)
	})

	mock.server = httptest.NewServer(mux)
	mock.tokenEndpoint = mock.server.URL + "/token"
	mock.userInfoEndpoint = mock.server.URL + "/userinfo"

	return mock
}

func (m *mockOAuthServer) Close() {
	m.server.Close()
}

// TestOauthRedirector tests the OAuth redirect handler
func TestOauthRedirector(t *testing.T) {
	config := &oauth2lib.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/callback",
		Scopes:       []string{"email", "profile"},
		Endpoint: oauth2lib.Endpoint{
			AuthURL:  "https://provider.example.com/auth",
			TokenURL: "https://provider.example.com/token",
		},
	}

	redirector := oauth2.OauthRedirector(config)

	t.Run("redirects to OAuth provider", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		if rr.Code != http.StatusFound {
			t.Errorf("Expected status %d, got %d", http.StatusFound, rr.Code)
		}

		location := rr.Header().Get("Location")
		if !strings.HasPrefix(location, "https://provider.example.com/auth") {
			t.Errorf("Expected redirect to OAuth provider, got: %s", location)
		}

		parsedURL, err := url.Parse(location)
		if err != nil {
			t.Fatalf("Failed to parse redirect URL: %v", err)
		}
		query := parsedURL.Query()
		if query.Get("client_id") != "test-client-id" {
			t.Errorf("Expected client_id in URL")
		}
		if query.Get("redirect_uri") != "http://localhost:8080/callback" {
			t.Errorf("Expected redirect_uri in URL")
		}
		if query.Get("response_type") != "code" {
			t.Errorf("Expected response_type=code in URL")
		}
		if query.Get("state") == "" {
			t.Errorf("Expected state parameter in URL")
		}
	})

	t.Run("sets oauthstate cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		var oauthStateCookie *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == "oauthstate" {
				oauthStateCookie = c
				break
			}
		}

		if oauthStateCookie == nil {
			t.Error("Expected oauthstate cookie to be set")
		} else if oauthStateCookie.Value == "" {
			t.Error("Expected oauthstate cookie to have a value")
		}
	})

	t.Run("sets callback URL cookie when provided", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?callbackURL=/dashboard", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		var callbackCookie *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == "oauthCallbackURL" {
				callbackCookie = c
				break
			}
		}

		if callbackCookie == nil {
			t.Error("Expected oauthCallbackURL cookie to be set")
		} else if callbackCookie.Value != "/dashboard" {
			t.Errorf("Expected callback URL '/dashboard', got '%s'", callbackCookie.Value)
		}
	})

	t.Run("state in URL matches cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		var cookieState string
		for _, c := range rr.Result().Cookies() {
			if c.Name == "oauthstate" {
				cookieState = c.Value
				break
			}
		}

		location := rr.Header().Get("Location")
		parsedURL, _ := url.Parse(location)
		urlState := parsedURL.Query().Get("state")

		if cookieState != urlState {
			t.Errorf("State mismatch: cookie=%s, url=%s", cookieState, urlState)
		}
	})
}

// TestGoogleOAuth2Callback tests the Google OAuth callback handler
func TestGoogleOAuth2Callback(t *testing.T) {
	mock := newMockOAuthServer()
	defer mock.Close()

	var handledProfile authbase.OAuthProfile
	var handledCalled bool

	googleAuth := oauth2.NewGoogleOAuth2(
		"test-client-id",
		"test-client-secret",
		"http://localhost:8080/callback",
		func(profile authbase.OAuthProfile, token *oauth2lib.Token, w http.ResponseWriter, r *http.Request) {
			handledCalled = true
			handledProfile = profile
			w.WriteHeader(http.StatusOK)
		},
	)

	// Point everything at the mock server
	googleAuth.UserInfoURL = mock.userInfoEndpoint
	googleAuth.SetHTTPClient(mock.server.Client())
	googleAuth.SetOAuthEndpoint(oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.tokenEndpoint,
	})

	t.Run("rejects missing state cookie", func(t *testing.T) {
		handledCalled = false

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=test_state", nil)
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called without state cookie")
		}
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		handledCalled = false

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=wrong_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "correct_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "invalid oauth") {
			t.Errorf("Expected invalid oauth error, got: %s", rr.Body.String())
		}
		if handledCalled {
			t.Error("HandleProfile should not be called with mismatched state")
		}
	})

	t.Run("successful callback normalizes the profile", func(t *testing.T) {
		handledCalled = false

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if !handledCalled {
			t.Fatalf("HandleProfile should be called. Status: %d, Body: %s", rr.Code, rr.Body.String())
		}
		if handledProfile.Provider != authbase.ProviderGoogle {
			t.Errorf("Expected google provider, got %q", handledProfile.Provider)
		}
		if handledProfile.ProviderAccountID != "12345" {
			t.Errorf("Expected provider account id 12345, got %q", handledProfile.ProviderAccountID)
		}
		if handledProfile.Email != "testuser@example.com" {
			t.Errorf("Expected email, got %q", handledProfile.Email)
		}
		if handledProfile.Image != "https://example.com/photo.jpg" {
			t.Errorf("Expected picture to map to Image, got %q", handledProfile.Image)
		}
	})

	t.Run("numeric provider id is stringified", func(t *testing.T) {
		handledCalled = false
		mock.userInfoResponse["id"] = float64(98765)
		defer func() { mock.userInfoResponse["id"] = "12345" }()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if !handledCalled {
			t.Fatalf("HandleProfile should be called. Status: %d", rr.Code)
		}
		if handledProfile.ProviderAccountID != "98765" {
			t.Errorf("Expected stringified id 98765, got %q", handledProfile.ProviderAccountID)
		}
	})

	t.Run("redirects to failure URL when exchange fails", func(t *testing.T) {
		handledCalled = false
		mock.tokenError = true
		defer func() { mock.tokenError = false }()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if handledCalled {
			t.Error("HandleProfile should not be called when exchange fails")
		}
		if rr.Code != http.StatusTemporaryRedirect {
			t.Errorf("Expected redirect, got %d", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/auth/google/fail/" {
			t.Errorf("Expected failure redirect, got %q", loc)
		}
	})

	t.Run("redirects to failure URL when profile has no email", func(t *testing.T) {
		handledCalled = false
		delete(mock.userInfoResponse, "email")
		defer func() { mock.userInfoResponse["email"] = "testuser@example.com" }()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if handledCalled {
			t.Error("HandleProfile should not be called without an email")
		}
		if rr.Code != http.StatusTemporaryRedirect {
			t.Errorf("Expected redirect, got %d", rr.Code)
		}
	})
}

// TestGithubOAuth2Callback tests the GitHub OAuth callback handler
func TestGithubOAuth2Callback(t *testing.T) {
	mock := newMockOAuthServer()
	defer mock.Close()
	mock.userInfoResponse = map[string]any{
		"id":         float64(424242),
		"email":      "octocat@example.com",
		"login":      "octocat",
		"avatar_url": "https://avatars.example.com/u/424242",
	}

	var handledProfile authbase.OAuthProfile
	var handledCalled bool

	githubAuth := oauth2.NewGithubOAuth2(
		"test-client-id",
		"test-client-secret",
		"http://localhost:8080/callback",
		func(profile authbase.OAuthProfile, token *oauth2lib.Token, w http.ResponseWriter, r *http.Request) {
			handledCalled = true
			handledProfile = profile
			w.WriteHeader(http.StatusOK)
		},
	)
	githubAuth.UserInfoURL = mock.userInfoEndpoint
	githubAuth.SetHTTPClient(mock.server.Client())
	githubAuth.SetOAuthEndpoint(oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.tokenEndpoint,
	})

	req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=valid_state", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
	rr := httptest.NewRecorder()

	githubAuth.Handler().ServeHTTP(rr, req)

	if !handledCalled {
		t.Fatalf("HandleProfile should be called. Status: %d, Body: %s", rr.Code, rr.Body.String())
	}
	if handledProfile.Provider != authbase.ProviderGithub {
		t.Errorf("Expected github provider, got %q", handledProfile.Provider)
	}
	if handledProfile.ProviderAccountID != "424242" {
		t.Errorf("Expected provider account id 424242, got %q", handledProfile.ProviderAccountID)
	}
	// With no display name the login becomes the name.
	if handledProfile.Name != "octocat" {
		t.Errorf("Expected login fallback for name, got %q", handledProfile.Name)
	}
	if handledProfile.Image != "https://avatars.example.com/u/424242" {
		t.Errorf("Expected avatar_url to map to Image, got %q", handledProfile.Image)
	}
}
