package services

import (
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
)

// loginPath is the fixed form-login endpoint under every server base URL.
const loginPath = "/sf/sfmain/do/login"

type authenticator struct {
	prompter interfaces.PasswordPrompter
	timeout  time.Duration
	logger   arbor.ILogger
}

// NewAuthenticator creates the session authenticator. The prompter is
// consulted when a server's configured password is blank.
func NewAuthenticator(cfg *common.Config, prompter interfaces.PasswordPrompter, logger arbor.ILogger) interfaces.Authenticator {
	return &authenticator{
		prompter: prompter,
		timeout:  time.Duration(cfg.Downloader.TimeoutSeconds) * time.Second,
		logger:   logger,
	}
}

// Login posts the credentials to the server's login endpoint. Success is
// detected by the auth cookie appearing in the response cookies; on
// success the whole cookie set becomes the server's session. On failure
// the session is cleared so the next fetch retries the login.
func (a *authenticator) Login(server *models.ServerInfo) error {
	a.logger.Info().Str("server", server.URL).Msg("logging in")

	if common.IsBlank(server.Password) {
		password, err := a.prompter.Password(server)
		if err != nil {
			return err
		}
		server.Password = password
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return common.NewInternalError("cookie_jar", "failed to create cookie jar").WithCause(err)
	}

	client := resty.New().
		SetCookieJar(jar).
		SetTimeout(a.timeout)

	resp, err := client.R().
		SetFormData(map[string]string{
			"sfsubmit": "submit",
			"username": server.Username,
			"password": server.Password,
		}).
		Post(server.URL + loginPath)
	if err != nil {
		return common.NewNetworkError("login_post", fmt.Sprintf("login request to %s failed", server.URL)).WithCause(err)
	}

	baseURL, err := url.Parse(server.URL)
	if err != nil {
		return common.NewConfigurationError("server_url", fmt.Sprintf("invalid server url %q", server.URL)).WithCause(err)
	}

	// The login response redirects; the jar has accumulated the cookies
	// of the whole exchange.
	session := make(map[string]string)
	for _, cookie := range jar.Cookies(baseURL) {
		session[cookie.Name] = cookie.Value
	}

	if _, ok := session[models.AuthCookieName]; !ok {
		server.ClearSession()
		a.logger.Warn().Str("server", server.URL).Int("status", resp.StatusCode()).Msg("login rejected")
		return common.NewAuthError("login_rejected",
			fmt.Sprintf("server %s refused the login for user %q", server.URL, server.Username))
	}

	server.SetSession(session)
	a.logger.Info().Str("server", server.URL).Msg("login successful")
	return nil
}

type noPasswordPrompt struct{}

// NoPasswordPrompt returns a prompter for headless operation: servers
// without a configured password fail authentication instead of blocking
// on input.
func NoPasswordPrompt() interfaces.PasswordPrompter {
	return noPasswordPrompt{}
}

func (noPasswordPrompt) Password(server *models.ServerInfo) (string, error) {
	return "", common.NewAuthError("no_password",
		fmt.Sprintf("no password configured for server %q and no prompt available", server.Id))
}
