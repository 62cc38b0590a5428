package fetcher

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-list-loader/internal/config"
)

// AuthorizationHeader is the header carrying the static API token.
const AuthorizationHeader = "authorization"

// Settings is built once at startup and handed to the Fetcher.
type Settings struct {
	BaseURL    string
	AuthToken  string
	AuthScheme string
	Headers    map[string]string
	Timeout    time.Duration
}

// SettingsFromConfig extracts fetcher settings from the process config.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}
	}
	return Settings{
		BaseURL:    cfg.BaseURL,
		AuthToken:  cfg.AuthToken,
		AuthScheme: cfg.AuthScheme,
		Timeout:    cfg.RequestTimeout,
	}
}

// Authorization returns the authorization header value, or "" without a token.
// An empty scheme sends the token verbatim.
func (s Settings) Authorization() string {
	token := strings.TrimSpace(s.AuthToken)
	if token == "" {
		return ""
	}
	if scheme := strings.TrimSpace(s.AuthScheme); scheme != "" {
		return scheme + " " + token
	}
	return token
}

// Resolve turns a source path or absolute URL into an absolute endpoint.
func (s Settings) Resolve(pathOrURL string) (string, error) {
	pathOrURL = strings.TrimSpace(pathOrURL)
	if pathOrURL == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if u, err := url.Parse(pathOrURL); err == nil && u.IsAbs() {
		return pathOrURL, validateEndpoint(pathOrURL)
	}

	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		return "", fmt.Errorf("relative endpoint %q requires a base url", pathOrURL)
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimLeft(pathOrURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", pathOrURL, err)
	}
	resolved := baseURL.ResolveReference(ref).String()
	return resolved, validateEndpoint(resolved)
}

// validateEndpoint accepts only absolute http(s) URLs with a host.
func validateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}
