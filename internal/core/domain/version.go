package domain

import (
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/zerr"
	"golang.org/x/mod/semver"
)

// PinKind classifies the version pin carried by a declared reference. The pin
// decides how the wanted version is computed from the published tag list.
type PinKind int

const (
	// PinLatest tracks the highest stable version. Untagged references and
	// an explicit "latest" tag both resolve this way.
	PinLatest PinKind = iota

	// PinExact names one full version, for example "1.2.3".
	PinExact

	// PinMajor tracks the highest stable version within a major line, for
	// example "1".
	PinMajor

	// PinMinor tracks the highest stable version within a minor line, for
	// example "1.2".
	PinMinor

	// PinDigest pins content by manifest digest. The wanted version comes
	// from published metadata, not from the tag list.
	PinDigest
)

// ClassifyPin derives the pin kind from a parsed reference. An unparseable
// version pin is a configuration error and fails with ErrInvalidVersionPin
// before any network traffic happens.
func ClassifyPin(ref FeatureRef) (PinKind, error) {
	if ref.IsDigestPinned() {
		if _, err := digest.Parse(ref.Version); err != nil {
			return 0, zerr.With(zerr.With(ErrInvalidVersionPin, "reference", ref.Reference()), "pin", ref.Version)
		}
		return PinDigest, nil
	}
	tag := ref.Tag()
	if tag == "" || tag == "latest" {
		return PinLatest, nil
	}
	if IsStrictVersion(tag) {
		return PinExact, nil
	}
	core := tag
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	switch strings.Count(core, ".") {
	case 0:
		if isNumeric(core) {
			return PinMajor, nil
		}
	case 1:
		if canon := semver.Canonical("v" + tag); canon != "" {
			return PinMinor, nil
		}
	}
	return 0, zerr.With(zerr.With(ErrInvalidVersionPin, "reference", ref.Reference()), "pin", tag)
}

// IsStrictVersion reports whether s is a full semantic version of the form
// major.minor.patch with an optional pre-release. Shorthand forms ("1",
// "1.2") and v-prefixed tags do not qualify; they are never version
// candidates.
func IsStrictVersion(s string) bool {
	if s == "" || strings.HasPrefix(s, "v") {
		return false
	}
	if !semver.IsValid("v" + s) {
		return false
	}
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

// CompareVersions orders two strict versions per semantic versioning
// precedence. The result is -1, 0, or +1.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// FilterVersionTags keeps the tags that are strict semantic versions and
// returns them sorted ascending. Publication order of the tag list carries no
// meaning, so every consumer works from this sorted view.
func FilterVersionTags(tags []string) []string {
	versions := make([]string, 0, len(tags))
	for _, tag := range tags {
		if IsStrictVersion(tag) {
			versions = append(versions, tag)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) < 0
	})
	return versions
}

// LatestVersion returns the highest stable version among the given tags.
// Pre-releases never become latest. The second return is false when no stable
// version exists.
func LatestVersion(tags []string) (string, bool) {
	latest := ""
	for _, v := range FilterVersionTags(tags) {
		if semver.Prerelease("v"+v) != "" {
			continue
		}
		if latest == "" || CompareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest, latest != ""
}

// WantedVersion computes the version the pin asks for, given the published
// tags. For digest pins the wanted version comes from feature metadata and
// metadataVersion is consulted instead of the tag list. The second return is
// false when the pin cannot be satisfied from the available information.
func WantedVersion(kind PinKind, pin string, tags []string, metadataVersion string) (string, bool) {
	switch kind {
	case PinExact:
		return pin, true
	case PinDigest:
		return metadataVersion, metadataVersion != ""
	case PinLatest:
		return LatestVersion(tags)
	case PinMajor, PinMinor:
		want := ""
		prefix := "v" + pin
		for _, v := range FilterVersionTags(tags) {
			if semver.Prerelease("v"+v) != "" {
				continue
			}
			if kind == PinMajor && semver.Major("v"+v) != prefix {
				continue
			}
			if kind == PinMinor && semver.MajorMinor("v"+v) != prefix {
				continue
			}
			if want == "" || CompareVersions(v, want) > 0 {
				want = v
			}
		}
		return want, want != ""
	}
	return "", false
}

// MajorOf extracts the major component of a version, accepting lenient forms
// such as "1" or "1.2". The second return is false for unparseable input.
func MajorOf(version string) (string, bool) {
	if version == "" {
		return "", false
	}
	major := semver.Major("v" + version)
	if major == "" {
		return "", false
	}
	return strings.TrimPrefix(major, "v"), true
}

// CanonicalVersion expands lenient forms to a full version, so "1" becomes
// "1.0.0" and "1.2" becomes "1.2.0". Strict versions pass through unchanged.
// The second return is false for unparseable input.
func CanonicalVersion(version string) (string, bool) {
	if IsStrictVersion(version) {
		return version, true
	}
	canon := semver.Canonical("v" + version)
	if canon == "" {
		return "", false
	}
	return strings.TrimPrefix(canon, "v"), true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
