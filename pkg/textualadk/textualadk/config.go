package textualadk

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultApiUrl is the address of a locally running ADK api server.
const DefaultApiUrl = "http://localhost:8000"

// DefaultAppName is the ADK application hosting the coordinator agent.
const DefaultAppName = "coordinator"

// DefaultSpecialistDelay paces the specialist follow-up after the primary
// answer.
const DefaultSpecialistDelay = time.Second

// Config holds the ADK endpoint and identity settings.
//
// Values are resolved once by NewConfig; the With* methods return copies.
type Config struct {
	baseURL   string
	appName   string
	userID    string
	sessionID string
}

// NewConfig builds a Config. Empty arguments fall back to ADK_API_URL and
// ADK_APP_NAME, then to the package defaults. ADK_USER_ID and ADK_SESSION_ID
// pin the session identity when set; otherwise the Session mints ids.
func NewConfig(baseURL, appName string) Config {
	config := Config{
		baseURL: strings.TrimSpace(baseURL),
		appName: strings.TrimSpace(appName),
	}
	if config.baseURL == "" {
		config.baseURL = os.Getenv("ADK_API_URL")
		if config.baseURL == "" {
			config.baseURL = DefaultApiUrl
		}
	}
	if config.appName == "" {
		config.appName = os.Getenv("ADK_APP_NAME")
		if config.appName == "" {
			config.appName = DefaultAppName
		}
	}
	config.baseURL = strings.TrimRight(config.baseURL, "/")
	config.userID = strings.TrimSpace(os.Getenv("ADK_USER_ID"))
	config.sessionID = strings.TrimSpace(os.Getenv("ADK_SESSION_ID"))
	return config
}

func (c Config) BaseURL() string   { return c.baseURL }
func (c Config) AppName() string   { return c.appName }
func (c Config) UserID() string    { return c.userID }
func (c Config) SessionID() string { return c.sessionID }

func (c Config) WithBaseURL(baseURL string) Config {
	c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return c
}

func (c Config) WithAppName(appName string) Config {
	c.appName = strings.TrimSpace(appName)
	return c
}

// WithIdentity pins the user and session ids instead of minting them.
func (c Config) WithIdentity(userID, sessionID string) Config {
	c.userID = strings.TrimSpace(userID)
	c.sessionID = strings.TrimSpace(sessionID)
	return c
}

func (c Config) validate() error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: missing ADK base URL (ADK_API_URL)", ErrInvalidConfig)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid ADK base URL %q", ErrInvalidConfig, c.baseURL)
	}
	if c.appName == "" {
		return fmt.Errorf("%w: missing ADK app name (ADK_APP_NAME)", ErrInvalidConfig)
	}
	return nil
}
