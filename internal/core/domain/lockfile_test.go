package domain_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"featlock/internal/core/domain"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	digestA = "sha256:" + strings.Repeat("a", 64)
	digestB = "sha256:" + strings.Repeat("b", 64)
)

func TestLockfilePathFor(t *testing.T) {
	tests := []struct {
		configPath string
		want       string
	}{
		{".devcontainer/devcontainer.json", ".devcontainer/devcontainer-lock.json"},
		{".devcontainer.json", ".devcontainer-lock.json"},
		{"devcontainer.json", "devcontainer-lock.json"},
		{"/work/project/.devcontainer.json", "/work/project/.devcontainer-lock.json"},
	}

	for _, tt := range tests {
		t.Run(tt.configPath, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), domain.LockfilePathFor(filepath.FromSlash(tt.configPath)))
		})
	}
}

func TestLockfile_MarshalCanonical(t *testing.T) {
	lf := domain.NewLockfile()
	lf.Features["ghcr.io/devcontainers/features/node"] = domain.LockfileEntry{
		Version:   "1.6.3",
		Resolved:  "ghcr.io/devcontainers/features/node@" + digestB,
		Integrity: digestB,
		DependsOn: []string{"ghcr.io/devcontainers/features/go"},
	}
	lf.Features["ghcr.io/devcontainers/features/go"] = domain.LockfileEntry{
		Version:   "1.2.0",
		Resolved:  "ghcr.io/devcontainers/features/go@" + digestA,
		Integrity: digestA,
	}

	got, err := lf.MarshalCanonical()
	require.NoError(t, err)

	want := fmt.Sprintf(`{
  "features": {
    "ghcr.io/devcontainers/features/go": {
      "integrity": %q,
      "resolved": %q,
      "version": "1.2.0"
    },
    "ghcr.io/devcontainers/features/node": {
      "dependsOn": [
        "ghcr.io/devcontainers/features/go"
      ],
      "integrity": %q,
      "resolved": %q,
      "version": "1.6.3"
    }
  }
}
`, digestA, "ghcr.io/devcontainers/features/go@"+digestA, digestB, "ghcr.io/devcontainers/features/node@"+digestB)

	assert.Equal(t, want, string(got))

	// Same logical content must produce byte-identical output.
	again, err := lf.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestLockfile_MarshalCanonical_Empty(t *testing.T) {
	got, err := domain.NewLockfile().MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"features\": {}\n}\n", string(got))
}

func TestParseLockfile_RoundTrip(t *testing.T) {
	lf := domain.NewLockfile()
	lf.Features["ghcr.io/devcontainers/features/go"] = domain.LockfileEntry{
		Version:   "1.2.0",
		Resolved:  "ghcr.io/devcontainers/features/go@" + digestA,
		Integrity: digestA,
	}

	data, err := lf.MarshalCanonical()
	require.NoError(t, err)

	parsed, err := domain.ParseLockfile(data)
	require.NoError(t, err)
	assert.Equal(t, lf.Features, parsed.Features)
}

func TestParseLockfile_Malformed(t *testing.T) {
	_, err := domain.ParseLockfile([]byte("{not json"))
	if !errors.Is(err, domain.ErrLockfileInvalid) {
		t.Fatalf("expected ErrLockfileInvalid, got %v", err)
	}
}

func TestLockfile_Validate(t *testing.T) {
	valid := func() domain.Lockfile {
		lf := domain.NewLockfile()
		lf.Features["ghcr.io/x/a"] = domain.LockfileEntry{
			Version:   "1.0.0",
			Resolved:  "ghcr.io/x/a@" + digestA,
			Integrity: digestA,
		}
		return lf
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("lenient version accepted", func(t *testing.T) {
		lf := valid()
		e := lf.Features["ghcr.io/x/a"]
		e.Version = "1"
		lf.Features["ghcr.io/x/a"] = e
		require.NoError(t, lf.Validate())
	})

	t.Run("unparseable version", func(t *testing.T) {
		lf := valid()
		e := lf.Features["ghcr.io/x/a"]
		e.Version = "one"
		lf.Features["ghcr.io/x/a"] = e
		if err := lf.Validate(); !errors.Is(err, domain.ErrLockfileInvalid) {
			t.Fatalf("expected ErrLockfileInvalid, got %v", err)
		}
	})

	t.Run("resolved without digest", func(t *testing.T) {
		lf := valid()
		e := lf.Features["ghcr.io/x/a"]
		e.Resolved = "ghcr.io/x/a:1.0.0"
		lf.Features["ghcr.io/x/a"] = e
		if err := lf.Validate(); !errors.Is(err, domain.ErrLockfileInvalid) {
			t.Fatalf("expected ErrLockfileInvalid, got %v", err)
		}
	})

	t.Run("malformed integrity", func(t *testing.T) {
		lf := valid()
		e := lf.Features["ghcr.io/x/a"]
		e.Integrity = "sha256:short"
		lf.Features["ghcr.io/x/a"] = e
		if err := lf.Validate(); !errors.Is(err, domain.ErrLockfileInvalid) {
			t.Fatalf("expected ErrLockfileInvalid, got %v", err)
		}
	})

	t.Run("dependsOn references unknown feature", func(t *testing.T) {
		lf := valid()
		e := lf.Features["ghcr.io/x/a"]
		e.DependsOn = []string{"ghcr.io/x/ghost"}
		lf.Features["ghcr.io/x/a"] = e
		if err := lf.Validate(); !errors.Is(err, domain.ErrLockfileInvalid) {
			t.Fatalf("expected ErrLockfileInvalid, got %v", err)
		}
	})

	t.Run("dependency cycle", func(t *testing.T) {
		lf := valid()
		a := lf.Features["ghcr.io/x/a"]
		a.DependsOn = []string{"ghcr.io/x/b"}
		lf.Features["ghcr.io/x/a"] = a
		lf.Features["ghcr.io/x/b"] = domain.LockfileEntry{
			Version:   "2.0.0",
			Resolved:  "ghcr.io/x/b@" + digestB,
			Integrity: digestB,
			DependsOn: []string{"ghcr.io/x/a"},
		}

		err := lf.Validate()
		if !errors.Is(err, domain.ErrLockfileInvalid) {
			t.Fatalf("expected ErrLockfileInvalid, got %v", err)
		}
		if !errors.Is(err, domain.ErrCycleDetected) {
			t.Fatalf("expected ErrCycleDetected, got %v", err)
		}
	})
}

func TestLockfile_Merge(t *testing.T) {
	existing := domain.NewLockfile()
	existing.Features["ghcr.io/x/a"] = domain.LockfileEntry{Version: "1.0.0", Resolved: "ghcr.io/x/a@" + digestA, Integrity: digestA}
	existing.Features["ghcr.io/x/keep"] = domain.LockfileEntry{Version: "3.0.0", Resolved: "ghcr.io/x/keep@" + digestB, Integrity: digestB}

	updated := domain.NewLockfile()
	updated.Features["ghcr.io/x/a"] = domain.LockfileEntry{Version: "1.1.0", Resolved: "ghcr.io/x/a@" + digestB, Integrity: digestB}

	merged := existing.Merge(updated)

	// Updated entries win; unrelated entries survive; inputs stay untouched.
	assert.Equal(t, "1.1.0", merged.Features["ghcr.io/x/a"].Version)
	assert.Equal(t, "3.0.0", merged.Features["ghcr.io/x/keep"].Version)
	assert.Equal(t, "1.0.0", existing.Features["ghcr.io/x/a"].Version)
}

func TestLockfile_Compare(t *testing.T) {
	onDisk := domain.NewLockfile()
	onDisk.Features["ghcr.io/x/a"] = domain.LockfileEntry{Version: "1.0.0", Resolved: "ghcr.io/x/a@" + digestA, Integrity: digestA}

	t.Run("matched", func(t *testing.T) {
		status, details := onDisk.Compare(onDisk)
		assert.Equal(t, domain.LockMatched, status)
		assert.Empty(t, details)
	})

	t.Run("version drift", func(t *testing.T) {
		generated := domain.NewLockfile()
		generated.Features["ghcr.io/x/a"] = domain.LockfileEntry{Version: "1.1.0", Resolved: "ghcr.io/x/a@" + digestB, Integrity: digestB}

		status, details := onDisk.Compare(generated)
		assert.Equal(t, domain.LockMismatch, status)
		assert.NotEmpty(t, details)
	})

	t.Run("feature missing from lockfile", func(t *testing.T) {
		generated := domain.NewLockfile()
		generated.Features["ghcr.io/x/a"] = onDisk.Features["ghcr.io/x/a"]
		generated.Features["ghcr.io/x/new"] = domain.LockfileEntry{Version: "1.0.0", Resolved: "ghcr.io/x/new@" + digestB, Integrity: digestB}

		status, details := onDisk.Compare(generated)
		assert.Equal(t, domain.LockMismatch, status)
		require.Len(t, details, 1)
		assert.Contains(t, details[0], "ghcr.io/x/new")
	})

	t.Run("stale lockfile entry", func(t *testing.T) {
		status, details := onDisk.Compare(domain.NewLockfile())
		assert.Equal(t, domain.LockMismatch, status)
		require.Len(t, details, 1)
		assert.Contains(t, details[0], "no longer configured")
	})
}

func TestGenerateLockfile(t *testing.T) {
	features := []domain.ResolvedFeature{
		{
			DeclaredRef:  "ghcr.io/x/a:1",
			ID:           "ghcr.io/x/a",
			State:        domain.StateResolved,
			Registry:     true,
			Metadata:     domain.FeatureMetadata{ID: "a", Version: "1.2.0"},
			CanonicalRef: "ghcr.io/x/a@" + digestA,
			Digest:       digest.Digest(digestA),
			Versions:     domain.VersionTriple{Wanted: "1.2.0"},
			DependsOn:    []string{"ghcr.io/x/b", "ghcr.io/x/outside"},
		},
		{
			DeclaredRef:  "ghcr.io/x/b",
			ID:           "ghcr.io/x/b",
			State:        domain.StateResolved,
			Registry:     true,
			Metadata:     domain.FeatureMetadata{ID: "b", Version: "2.0.0"},
			CanonicalRef: "ghcr.io/x/b@" + digestB,
			Digest:       digest.Digest(digestB),
			Versions:     domain.VersionTriple{Wanted: "2.0.0"},
		},
		{
			// Local references never produce lockfile entries.
			DeclaredRef: "./local/feature",
			ID:          "./local/feature",
			State:       domain.StateResolved,
		},
		{
			// Failed references never produce lockfile entries.
			DeclaredRef: "ghcr.io/x/broken",
			ID:          "ghcr.io/x/broken",
			State:       domain.StateFailed,
			Registry:    true,
		},
	}

	lf := domain.GenerateLockfile(features)

	require.Len(t, lf.Features, 2)
	assert.Equal(t, "1.2.0", lf.Features["ghcr.io/x/a"].Version)
	assert.Equal(t, "ghcr.io/x/a@"+digestA, lf.Features["ghcr.io/x/a"].Resolved)
	assert.Equal(t, digestA, lf.Features["ghcr.io/x/a"].Integrity)
	// dependsOn keeps only edges to locked features, so the file always validates.
	assert.Equal(t, []string{"ghcr.io/x/b"}, lf.Features["ghcr.io/x/a"].DependsOn)

	require.NoError(t, lf.Validate())
}
