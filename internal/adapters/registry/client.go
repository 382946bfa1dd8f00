// Package registry implements the RegistryClient port against the OCI
// distribution API.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"featlock/internal/build"
	"featlock/internal/core/domain"
	"featlock/internal/core/ports"
	"github.com/opencontainers/go-digest"
	"go.trai.ch/zerr"
)

const (
	// maxTagPages and maxTagsCollected bound tag list pagination.
	maxTagPages      = 10
	maxTagsCollected = 1000

	// maxJSONResponseBytes caps manifest and tag list bodies; maxBlobBytes
	// caps blob downloads.
	maxJSONResponseBytes = 10 << 20
	maxBlobBytes         = 50 << 20

	defaultRetryAttempts = 3
	defaultBaseBackoff   = 500 * time.Millisecond
)

// Client implements ports.RegistryClient over HTTP with response caching,
// per-registry authentication, and bounded retries.
type Client struct {
	log       ports.Logger
	cache     ports.ContentStore
	client    *http.Client
	userAgent string
	backoff   time.Duration
	attempts  int
	settings  domain.Settings
	auth      *authCache
	now       func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

// WithBaseBackoff sets the initial retry backoff.
func WithBaseBackoff(backoff time.Duration) Option {
	return func(c *Client) { c.backoff = backoff }
}

// WithNow replaces the clock used for cache freshness.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a registry client backed by the given response cache.
func NewClient(log ports.Logger, cache ports.ContentStore, opts ...Option) *Client {
	c := &Client{
		log:       log,
		cache:     cache,
		client:    &http.Client{Timeout: domain.DefaultFetchTimeout},
		userAgent: "featlock/" + build.Version,
		backoff:   defaultBaseBackoff,
		attempts:  defaultRetryAttempts,
		auth:      newAuthCache(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure applies tool settings to the client. Call it before issuing
// requests; it resets cached authorizations so changed credentials take
// effect.
func (c *Client) Configure(settings domain.Settings) {
	c.settings = settings
	c.client.Timeout = settings.EffectiveFetchTimeout()
	c.auth.reset()
}

// FetchManifest retrieves the manifest for a reference together with its
// canonical digest. Digest-pinned references are served from the response
// cache when possible and are verified against the fetched body.
func (c *Client) FetchManifest(ctx context.Context, ref domain.FeatureRef) (domain.Manifest, digest.Digest, error) {
	if ref.IsDigestPinned() {
		if cached := c.cachedManifest(domain.ManifestCacheKey(ref.Reference())); cached != nil {
			return cached.Manifest, cached.Digest, nil
		}
	}

	reqURL := c.manifestURL(ref)
	body, hdr, err := c.fetchWithRetry(ctx, ref.Registry, reqURL, domain.MediaTypeManifest, maxJSONResponseBytes)
	if err != nil {
		return domain.Manifest{}, "", err
	}

	canonical := canonicalDigest(hdr, body)
	if ref.IsDigestPinned() {
		want := digest.Digest(ref.Version)
		if computed := digest.FromBytes(body); computed != want {
			mismatchErr := zerr.With(domain.ErrDigestMismatch, "expected", want.String())
			mismatchErr = zerr.With(mismatchErr, "actual", computed.String())
			return domain.Manifest{}, "", zerr.With(mismatchErr, "url", redactURL(reqURL))
		}
		canonical = want
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		parseErr := zerr.Wrap(errors.Join(domain.ErrRegistryResponse, err), "failed to parse manifest")
		return domain.Manifest{}, "", zerr.With(parseErr, "url", redactURL(reqURL))
	}

	c.storeManifest(ref, canonical, manifest)
	return manifest, canonical, nil
}

// ListTags retrieves the published tags for a reference's repository,
// following pagination. The registry's order is preserved; duplicates across
// page boundaries are dropped. Fresh cached listings are served without a
// network round trip.
func (c *Client) ListTags(ctx context.Context, ref domain.FeatureRef) ([]string, error) {
	key := domain.TagListCacheKey(ref.Registry, ref.Repository())
	if cached := c.cachedTagList(key); cached != nil && !cached.Expired(c.now(), c.settings.EffectiveTagListTTL()) {
		return cached.Tags, nil
	}

	collected := make([]string, 0, 64)
	next := c.baseURL(ref.Registry) + "/v2/" + ref.Repository() + "/tags/list"
	for pages := 0; next != "" && pages < maxTagPages && len(collected) < maxTagsCollected; pages++ {
		body, hdr, err := c.fetchWithRetry(ctx, ref.Registry, next, "application/json", maxJSONResponseBytes)
		if err != nil {
			return nil, err
		}

		var page domain.TagList
		if err := json.Unmarshal(body, &page); err != nil {
			parseErr := zerr.Wrap(errors.Join(domain.ErrRegistryResponse, err), "failed to parse tag list")
			return nil, zerr.With(parseErr, "url", redactURL(next))
		}
		collected = append(collected, page.Tags...)
		next = nextPageURL(next, hdr.Get("Link"))
	}

	tags := dedupeTags(collected)
	if err := c.cache.PutTagList(key, domain.CachedTagList{
		Repository: ref.Repository(),
		Tags:       tags,
		FetchedAt:  c.now(),
	}); err != nil {
		c.log.Warn("response cache write failed: " + err.Error())
	}
	return tags, nil
}

// FetchBlob retrieves a blob and verifies its content against the requested
// digest before returning.
func (c *Client) FetchBlob(ctx context.Context, ref domain.FeatureRef, dgst digest.Digest) ([]byte, error) {
	if err := dgst.Validate(); err != nil {
		invalidErr := zerr.Wrap(errors.Join(domain.ErrRegistryResponse, err), "invalid blob digest in descriptor")
		return nil, zerr.With(invalidErr, "digest", dgst.String())
	}

	reqURL := c.baseURL(ref.Registry) + "/v2/" + ref.Repository() + "/blobs/" + dgst.String()
	body, _, err := c.fetchWithRetry(ctx, ref.Registry, reqURL, "application/octet-stream", maxBlobBytes)
	if err != nil {
		return nil, err
	}

	verifier := dgst.Verifier()
	if _, err := verifier.Write(body); err != nil {
		return nil, zerr.Wrap(err, "failed to verify blob")
	}
	if !verifier.Verified() {
		mismatchErr := zerr.With(domain.ErrDigestMismatch, "digest", dgst.String())
		return nil, zerr.With(mismatchErr, "url", redactURL(reqURL))
	}
	return body, nil
}

// fetchWithRetry wraps fetch in the retry loop, retrying only errors
// isRetryable accepts.
func (c *Client) fetchWithRetry(ctx context.Context, registry, reqURL, accept string, limit int64) ([]byte, http.Header, error) {
	var body []byte
	var hdr http.Header
	err := retryWithBackoff(ctx, c.attempts, c.backoff, func(_ int) (bool, error) {
		b, h, err := c.fetch(ctx, registry, reqURL, accept, limit)
		if err != nil {
			return isRetryable(err), err
		}
		body, hdr = b, h
		return false, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return body, hdr, nil
}

// fetch performs one logical request: on a 401 or 403 it negotiates
// authorization once and repeats the request with the resolved header.
func (c *Client) fetch(ctx context.Context, registry, reqURL, accept string, limit int64) ([]byte, http.Header, error) {
	body, hdr, status, err := c.once(ctx, registry, reqURL, accept, limit)
	if err != nil {
		return nil, nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if err := c.authorize(ctx, registry, hdr); err != nil {
			return nil, nil, err
		}
		body, hdr, status, err = c.once(ctx, registry, reqURL, accept, limit)
		if err != nil {
			return nil, nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			failedErr := zerr.With(domain.ErrAuthFailed, "registry", registry)
			return nil, nil, zerr.With(failedErr, "status_code", status)
		}
	}

	switch {
	case status == http.StatusOK:
		return body, hdr, nil
	case status == http.StatusNotFound:
		return nil, nil, zerr.With(domain.ErrFeatureNotFound, "url", redactURL(reqURL))
	default:
		respErr := zerr.With(domain.ErrRegistryResponse, "status_code", status)
		return nil, nil, zerr.With(respErr, "url", redactURL(reqURL))
	}
}

// once performs a single HTTP round trip and reads at most limit body bytes.
func (c *Client) once(ctx context.Context, registry, reqURL, accept string, limit int64) ([]byte, http.Header, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, nil, 0, zerr.Wrap(err, "failed to build registry request")
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	if auth := c.auth.header(registry); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, 0, classifyTransport(err, reqURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, nil, 0, classifyTransport(err, reqURL)
	}
	if int64(len(body)) > limit {
		oversizeErr := zerr.Wrap(domain.ErrRegistryResponse, "response body exceeds size limit")
		return nil, nil, 0, zerr.With(oversizeErr, "url", redactURL(reqURL))
	}
	return body, resp.Header, resp.StatusCode, nil
}

func (c *Client) baseURL(registry string) string {
	scheme := "https"
	if c.settings.RegistryFor(registry).PlainHTTP {
		scheme = "http"
	}
	return scheme + "://" + registry
}

func (c *Client) manifestURL(ref domain.FeatureRef) string {
	target := ref.Tag()
	if ref.IsDigestPinned() {
		target = ref.Version
	}
	return c.baseURL(ref.Registry) + "/v2/" + ref.Repository() + "/manifests/" + target
}

func (c *Client) cachedManifest(key string) *domain.CachedManifest {
	cached, err := c.cache.GetManifest(key)
	if err != nil {
		c.log.Warn("response cache read failed: " + err.Error())
		return nil
	}
	return cached
}

func (c *Client) cachedTagList(key string) *domain.CachedTagList {
	cached, err := c.cache.GetTagList(key)
	if err != nil {
		c.log.Warn("response cache read failed: " + err.Error())
		return nil
	}
	return cached
}

// storeManifest records a fetched manifest under its canonical reference so
// later digest-pinned fetches of the same content hit the cache.
func (c *Client) storeManifest(ref domain.FeatureRef, dgst digest.Digest, manifest domain.Manifest) {
	canonicalRef := ref.ID() + "@" + dgst.String()
	entry := domain.CachedManifest{
		Reference:    ref.Reference(),
		CanonicalRef: canonicalRef,
		Digest:       dgst,
		Manifest:     manifest,
		FetchedAt:    c.now(),
	}
	if err := c.cache.PutManifest(domain.ManifestCacheKey(canonicalRef), entry); err != nil {
		c.log.Warn("response cache write failed: " + err.Error())
	}
}

// canonicalDigest returns the registry's content digest header when present
// and valid, and the digest of the raw body otherwise. The tag plays no part.
func canonicalDigest(hdr http.Header, body []byte) digest.Digest {
	if raw := hdr.Get("Docker-Content-Digest"); raw != "" {
		if d, err := digest.Parse(raw); err == nil {
			return d
		}
	}
	return digest.FromBytes(body)
}

// dedupeTags drops duplicate tags while keeping the registry's order.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// nextPageURL extracts the rel="next" target from a Link header and resolves
// it against the current page URL, since registries may answer with relative
// targets.
func nextPageURL(current, linkHeader string) string {
	next := parseLinkNext(linkHeader)
	if next == "" {
		return ""
	}
	currentURL, err := url.Parse(current)
	if err != nil {
		return ""
	}
	nextURL, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return currentURL.ResolveReference(nextURL).String()
}

// parseLinkNext extracts the URL with rel="next" from an RFC 5988 Link
// header. Returns empty string when there is no next page.
func parseLinkNext(header string) string {
	if header == "" {
		return ""
	}

	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}

		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}

	return ""
}

// classifyTransport maps a transport failure onto the domain error set.
func classifyTransport(err error, reqURL string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return zerr.With(domain.ErrNetworkTimeout, "url", redactURL(reqURL))
	}
	return zerr.With(zerr.Wrap(err, "registry request failed"), "url", redactURL(reqURL))
}

// isRetryable reports whether a failed request is worth repeating. Missing
// content, rejected credentials, and digest mismatches are final; server-side
// errors and transport failures are not.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrFeatureNotFound),
		errors.Is(err, domain.ErrAuthRequired),
		errors.Is(err, domain.ErrAuthFailed),
		errors.Is(err, domain.ErrDigestMismatch),
		errors.Is(err, context.Canceled):
		return false
	}
	if errors.Is(err, domain.ErrRegistryResponse) {
		var zErr *zerr.Error
		if errors.As(err, &zErr) {
			if code, ok := zErr.Metadata()["status_code"].(int); ok {
				return code >= http.StatusInternalServerError
			}
		}
		return false
	}
	return true
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error metadata.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
