package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"featlock/internal/core/domain"
	"go.trai.ch/zerr"
)

// Environment credentials override every other source and apply to all
// registries.
const (
	envToken    = "FEATLOCK_REGISTRY_TOKEN"
	envUser     = "FEATLOCK_REGISTRY_USER"
	envPassword = "FEATLOCK_REGISTRY_PASSWORD"
)

// authCache holds resolved Authorization headers per registry host.
type authCache struct {
	mu      sync.RWMutex
	headers map[string]string
}

func newAuthCache() *authCache {
	return &authCache{headers: make(map[string]string)}
}

func (a *authCache) header(registry string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.headers[registry]
}

func (a *authCache) set(registry, header string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.headers[registry] = header
}

func (a *authCache) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.headers = make(map[string]string)
}

// credential is a resolved registry credential. A token is used as a bearer
// token directly; a username and password pair is exchanged at the token
// endpoint or sent as basic auth, depending on the challenge.
type credential struct {
	token    string
	username string
	password string
}

// challenge is a parsed WWW-Authenticate header.
type challenge struct {
	scheme string
	params map[string]string
}

// authorize negotiates an Authorization header for the registry from the
// challenge in a 401 or 403 response and stores it for subsequent requests.
// Errors from this path carry sentinel identity and redacted metadata only;
// credential material never appears in them.
func (c *Client) authorize(ctx context.Context, registry string, hdr http.Header) error {
	ch := parseChallenge(hdr.Get("WWW-Authenticate"))
	cred, ok := c.lookupCredential(registry)

	switch ch.scheme {
	case "bearer":
		if cred.token != "" {
			c.auth.set(registry, "Bearer "+cred.token)
			return nil
		}
		header, err := c.exchangeToken(ctx, registry, ch.params, cred)
		if err != nil {
			return err
		}
		c.auth.set(registry, header)
		return nil
	case "basic":
		if !ok || cred.username == "" {
			return zerr.With(domain.ErrAuthRequired, "registry", registry)
		}
		c.auth.set(registry, basicHeader(cred.username, cred.password))
		return nil
	default:
		return zerr.With(domain.ErrAuthRequired, "registry", registry)
	}
}

// tokenResponse is the token endpoint payload. Registries answer with either
// field name.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// exchangeToken requests a bearer token from the challenge realm, forwarding
// the service and scope parameters. Anonymous exchange is attempted when no
// credential is available.
func (c *Client) exchangeToken(ctx context.Context, registry string, params map[string]string, cred credential) (string, error) {
	realm := params["realm"]
	if realm == "" {
		return "", zerr.With(zerr.Wrap(domain.ErrAuthRequired, "bearer challenge has no realm"), "registry", registry)
	}
	endpoint, err := url.Parse(realm)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrAuthFailed, "bearer realm is not a valid url"), "registry", registry)
	}
	query := endpoint.Query()
	if service := params["service"]; service != "" {
		query.Set("service", service)
	}
	if scope := params["scope"]; scope != "" {
		query.Set("scope", scope)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return "", zerr.Wrap(err, "failed to build token request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if cred.username != "" {
		req.SetBasicAuth(cred.username, cred.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return "", zerr.With(domain.ErrNetworkTimeout, "url", redactURL(endpoint.String()))
		}
		return "", zerr.With(domain.ErrAuthFailed, "url", redactURL(endpoint.String()))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if cred.username == "" {
			return "", zerr.With(domain.ErrAuthRequired, "registry", registry)
		}
		failedErr := zerr.With(domain.ErrAuthFailed, "registry", registry)
		return "", zerr.With(failedErr, "status_code", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		failedErr := zerr.With(domain.ErrAuthFailed, "status_code", resp.StatusCode)
		return "", zerr.With(failedErr, "url", redactURL(endpoint.String()))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONResponseBytes))
	if err != nil {
		return "", zerr.Wrap(domain.ErrAuthFailed, "failed to read token response")
	}
	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", zerr.Wrap(domain.ErrAuthFailed, "token endpoint returned an unparseable response")
	}
	value := token.Token
	if value == "" {
		value = token.AccessToken
	}
	if value == "" {
		return "", zerr.Wrap(domain.ErrAuthFailed, "token endpoint returned no token")
	}
	return "Bearer " + value, nil
}

// lookupCredential resolves a credential for a registry host, trying the
// environment, tool settings, and the docker credential store in that order.
func (c *Client) lookupCredential(registry string) (credential, bool) {
	if token := os.Getenv(envToken); token != "" {
		return credential{token: token}, true
	}
	if user, pass := os.Getenv(envUser), os.Getenv(envPassword); user != "" && pass != "" {
		return credential{username: user, password: pass}, true
	}

	rs := c.settings.RegistryFor(registry)
	if rs.Token != "" {
		return credential{token: rs.Token}, true
	}
	if rs.Username != "" && rs.Password != "" {
		return credential{username: rs.Username, password: rs.Password}, true
	}

	return dockerConfigCredential(registry)
}

// dockerConfig is the subset of ~/.docker/config.json the client reads.
// Credential helpers are not consulted; only inline auth entries are usable.
type dockerConfig struct {
	Auths map[string]dockerAuth `json:"auths"`
}

type dockerAuth struct {
	Auth     string `json:"auth"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func dockerConfigCredential(registry string) (credential, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return credential{}, false
	}

	//nolint:gosec // Path is fixed below the user home directory
	data, err := os.ReadFile(filepath.Join(home, ".docker", "config.json"))
	if err != nil {
		return credential{}, false
	}

	var cfg dockerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return credential{}, false
	}

	for key, entry := range cfg.Auths {
		if normalizeRegistryHost(key) != registry {
			continue
		}
		if entry.Auth != "" {
			decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
			if err != nil {
				continue
			}
			user, pass, ok := strings.Cut(string(decoded), ":")
			if !ok {
				continue
			}
			return credential{username: user, password: pass}, true
		}
		if entry.Username != "" && entry.Password != "" {
			return credential{username: entry.Username, password: entry.Password}, true
		}
	}
	return credential{}, false
}

// normalizeRegistryHost reduces a docker config auth key to a bare host,
// e.g. "https://index.docker.io/v1/" to "index.docker.io".
func normalizeRegistryHost(key string) string {
	key = strings.TrimPrefix(key, "https://")
	key = strings.TrimPrefix(key, "http://")
	if slash := strings.Index(key, "/"); slash >= 0 {
		key = key[:slash]
	}
	return key
}

// parseChallenge parses a WWW-Authenticate header into its scheme and
// parameters. Quoted parameter values may contain commas.
func parseChallenge(header string) challenge {
	header = strings.TrimSpace(header)
	if header == "" {
		return challenge{}
	}

	scheme, rest, _ := strings.Cut(header, " ")
	ch := challenge{scheme: strings.ToLower(scheme), params: make(map[string]string)}
	for _, part := range splitChallengeParams(rest) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		ch.params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return ch
}

// splitChallengeParams splits comma separated auth params, leaving commas
// inside quoted values alone.
func splitChallengeParams(s string) []string {
	var parts []string
	start := 0
	inQuotes := false
	for i := range len(s) {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func basicHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
