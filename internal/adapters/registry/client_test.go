package registry_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"featlock/internal/adapters/cas"
	"featlock/internal/adapters/registry"
	"featlock/internal/core/domain"
	"featlock/internal/core/ports/mocks"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

// newTestClient starts a server for the handler and returns a client
// configured to reach it over plain HTTP, together with the server's host.
func newTestClient(t *testing.T, handler http.Handler, opts ...registry.Option) (*registry.Client, string) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).AnyTimes()

	cache, err := cas.NewStore(t.TempDir())
	require.NoError(t, err)

	client := registry.NewClient(log, cache, append([]registry.Option{registry.WithBaseBackoff(time.Millisecond)}, opts...)...)
	client.Configure(plainSettings(host))
	return client, host
}

func plainSettings(host string) domain.Settings {
	return domain.Settings{
		Registries: map[string]domain.RegistrySettings{host: {PlainHTTP: true}},
	}
}

func featRef(host, version string) domain.FeatureRef {
	return domain.FeatureRef{Registry: host, Namespace: "acme", Name: "go", Version: version}
}

func testManifest() domain.Manifest {
	return domain.Manifest{
		SchemaVersion: 2,
		MediaType:     domain.MediaTypeManifest,
		Config: domain.Descriptor{
			MediaType: "application/vnd.devcontainers",
			Digest:    digest.Digest("sha256:" + strings.Repeat("a", 64)),
			Size:      2,
		},
		Layers: []domain.Descriptor{{
			MediaType: domain.MediaTypeFeatureLayer,
			Digest:    digest.Digest("sha256:" + strings.Repeat("b", 64)),
			Size:      4,
		}},
	}
}

func TestFetchManifest_CanonicalDigest(t *testing.T) {
	body, err := json.Marshal(testManifest())
	require.NoError(t, err)
	headerDigest := digest.FromString("advertised")

	t.Run("From Header", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/acme/go/manifests/1", r.URL.Path)
			assert.Equal(t, domain.MediaTypeManifest, r.Header.Get("Accept"))
			assert.Equal(t, "featlock/dev", r.Header.Get("User-Agent"))
			w.Header().Set("Docker-Content-Digest", headerDigest.String())
			_, _ = w.Write(body)
		}))

		manifest, dgst, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.NoError(t, err)
		assert.Equal(t, headerDigest, dgst)
		assert.Equal(t, 2, manifest.SchemaVersion)
		assert.Len(t, manifest.Layers, 1)
	})

	t.Run("From Body", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(body)
		}))

		_, dgst, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.NoError(t, err)
		assert.Equal(t, digest.FromBytes(body), dgst)
	})

	t.Run("Invalid Header Falls Back To Body", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Docker-Content-Digest", "garbage")
			_, _ = w.Write(body)
		}))

		_, dgst, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.NoError(t, err)
		assert.Equal(t, digest.FromBytes(body), dgst)
	})
}

func TestFetchManifest_DigestPinned(t *testing.T) {
	body, err := json.Marshal(testManifest())
	require.NoError(t, err)
	pinned := digest.FromBytes(body)

	t.Run("Verified", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/acme/go/manifests/"+pinned.String(), r.URL.Path)
			_, _ = w.Write(body)
		}))

		_, dgst, err := client.FetchManifest(context.Background(), featRef(host, pinned.String()))
		require.NoError(t, err)
		assert.Equal(t, pinned, dgst)
	})

	t.Run("Mismatch", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			_, _ = w.Write([]byte(`{"schemaVersion":2}`))
		}))

		_, _, err := client.FetchManifest(context.Background(), featRef(host, pinned.String()))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDigestMismatch)
		assert.Equal(t, int32(1), requests.Load())
	})
}

func TestFetchManifest_CacheHit(t *testing.T) {
	body, err := json.Marshal(testManifest())
	require.NoError(t, err)
	pinned := digest.FromBytes(body)

	t.Run("Pinned Refetch", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			_, _ = w.Write(body)
		}))
		ref := featRef(host, pinned.String())

		_, first, err := client.FetchManifest(context.Background(), ref)
		require.NoError(t, err)
		_, second, err := client.FetchManifest(context.Background(), ref)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("Tag Then Pinned", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			_, _ = w.Write(body)
		}))

		_, canonical, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.NoError(t, err)

		_, dgst, err := client.FetchManifest(context.Background(), featRef(host, canonical.String()))
		require.NoError(t, err)
		assert.Equal(t, canonical, dgst)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("Tag Fetch Always Hits The Network", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			_, _ = w.Write(body)
		}))
		ref := featRef(host, "1")

		_, _, err := client.FetchManifest(context.Background(), ref)
		require.NoError(t, err)
		_, _, err = client.FetchManifest(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, int32(2), requests.Load())
	})
}

func TestFetchManifest_Errors(t *testing.T) {
	t.Run("Not Found", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))

		_, _, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrFeatureNotFound)
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("Client Error Not Retried", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))

		_, _, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRegistryResponse)

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, http.StatusBadRequest, zErr.Metadata()["status_code"])
		assert.Equal(t, int32(1), requests.Load())
	})

	t.Run("Malformed Body", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))

		_, _, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRegistryResponse)
	})
}

func TestFetchManifest_RetriesServerErrors(t *testing.T) {
	body, err := json.Marshal(testManifest())
	require.NoError(t, err)

	t.Run("Recovers", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if requests.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write(body)
		}))

		_, _, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.NoError(t, err)
		assert.Equal(t, int32(3), requests.Load())
	})

	t.Run("Exhausted", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		_, _, err := client.FetchManifest(context.Background(), featRef(host, "1"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRegistryResponse)
		assert.Equal(t, int32(3), requests.Load())
	})
}

func TestFetchManifest_Timeout(t *testing.T) {
	client, host := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	settings := plainSettings(host)
	settings.FetchTimeout = 30 * time.Millisecond
	client.Configure(settings)

	_, _, err := client.FetchManifest(context.Background(), featRef(host, "1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetworkTimeout)
}

func TestListTags(t *testing.T) {
	t.Run("Single Page", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/acme/go/tags/list", r.URL.Path)
			_, _ = w.Write([]byte(`{"name":"acme/go","tags":["1","1.2","2"]}`))
		}))

		tags, err := client.ListTags(context.Background(), featRef(host, ""))
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "1.2", "2"}, tags)
	})

	t.Run("Paginated With Relative Link", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			if r.URL.Query().Get("last") == "" {
				w.Header().Set("Link", `</v2/acme/go/tags/list?last=b>; rel="next"`)
				_, _ = w.Write([]byte(`{"name":"acme/go","tags":["a","b"]}`))
				return
			}
			_, _ = w.Write([]byte(`{"name":"acme/go","tags":["b","c"]}`))
		}))

		tags, err := client.ListTags(context.Background(), featRef(host, ""))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, tags)
		assert.Equal(t, int32(2), requests.Load())
	})

	t.Run("Page Cap", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
			w.Header().Set("Link", `</v2/acme/go/tags/list?last=b>; rel="next"`)
			_, _ = w.Write([]byte(`{"name":"acme/go","tags":["a","b"]}`))
		}))

		tags, err := client.ListTags(context.Background(), featRef(host, ""))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, tags)
		assert.Equal(t, int32(10), requests.Load())
	})

	t.Run("Not Found", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.ListTags(context.Background(), featRef(host, ""))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrFeatureNotFound)
	})
}

func TestListTags_CachedWithinTTL(t *testing.T) {
	now := time.Now()
	var requests atomic.Int32
	client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"name":"acme/go","tags":["1","2"]}`))
	}), registry.WithNow(func() time.Time { return now }))

	tags, err := client.ListTags(context.Background(), featRef(host, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tags)
	assert.Equal(t, int32(1), requests.Load())

	tags, err = client.ListTags(context.Background(), featRef(host, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tags)
	assert.Equal(t, int32(1), requests.Load())

	now = now.Add(10 * time.Minute)

	_, err = client.ListTags(context.Background(), featRef(host, ""))
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetchBlob(t *testing.T) {
	content := []byte("feature layer tarball bytes")
	dgst := digest.FromBytes(content)

	t.Run("Verified", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/acme/go/blobs/"+dgst.String(), r.URL.Path)
			_, _ = w.Write(content)
		}))

		blob, err := client.FetchBlob(context.Background(), featRef(host, "1"), dgst)
		require.NoError(t, err)
		assert.Equal(t, content, blob)
	})

	t.Run("Mismatch", func(t *testing.T) {
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("tampered bytes"))
		}))

		_, err := client.FetchBlob(context.Background(), featRef(host, "1"), dgst)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrDigestMismatch)
	})

	t.Run("Invalid Digest", func(t *testing.T) {
		var requests atomic.Int32
		client, host := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			requests.Add(1)
		}))

		_, err := client.FetchBlob(context.Background(), featRef(host, "1"), "not-a-digest")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrRegistryResponse)
		assert.Equal(t, int32(0), requests.Load())
	})
}
