package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// LockfileEntry records the pinned state of one resolved feature.
type LockfileEntry struct {
	Version   string   `json:"version"`
	Resolved  string   `json:"resolved"`
	Integrity string   `json:"integrity"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// Lockfile maps feature ids (registry reference without tag or digest) to
// their pinned entries. It provides a reproducible snapshot of the resolved
// feature set.
type Lockfile struct {
	Features map[string]LockfileEntry `json:"features"`
}

// NewLockfile creates an empty lockfile.
func NewLockfile() Lockfile {
	return Lockfile{Features: make(map[string]LockfileEntry)}
}

// LockfilePathFor derives the lockfile path from a configuration path. The
// lockfile sits next to the configuration and mirrors its hidden-file prefix,
// so ".devcontainer.json" pairs with ".devcontainer-lock.json" and
// "devcontainer.json" with "devcontainer-lock.json".
func LockfilePathFor(configPath string) string {
	dir := filepath.Dir(configPath)
	base := filepath.Base(configPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"-lock.json")
}

// Entry returns the entry for a feature id and whether it exists.
func (l Lockfile) Entry(id string) (LockfileEntry, bool) {
	e, ok := l.Features[id]
	return e, ok
}

// IDs returns the locked feature ids in sorted order.
func (l Lockfile) IDs() []string {
	ids := make([]string, 0, len(l.Features))
	for id := range l.Features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Merge overlays updated entries onto the receiver. Entries present in both
// take the updated value; entries only in the receiver survive unchanged. The
// receiver is not modified.
func (l Lockfile) Merge(updated Lockfile) Lockfile {
	merged := NewLockfile()
	for id, e := range l.Features {
		merged.Features[id] = e
	}
	for id, e := range updated.Features {
		merged.Features[id] = e
	}
	return merged
}

// Validate checks every entry for structural soundness: a parseable version,
// a digest-qualified resolved reference, a well-formed integrity digest, and
// dependsOn references that exist and form no cycle.
func (l Lockfile) Validate() error {
	for _, id := range l.IDs() {
		e := l.Features[id]
		if _, ok := CanonicalVersion(e.Version); !ok {
			return zerr.With(zerr.With(zerr.Wrap(ErrLockfileInvalid, "invalid version"), "feature", id), "version", e.Version)
		}
		if !strings.Contains(e.Resolved, "@sha256:") {
			return zerr.With(zerr.With(zerr.Wrap(ErrLockfileInvalid, "resolved reference is not digest-pinned"), "feature", id), "resolved", e.Resolved)
		}
		if !isIntegrityDigest(e.Integrity) {
			return zerr.With(zerr.With(zerr.Wrap(ErrLockfileInvalid, "malformed integrity digest"), "feature", id), "integrity", e.Integrity)
		}
		for _, dep := range e.DependsOn {
			if _, ok := l.Features[dep]; !ok {
				return zerr.With(zerr.With(zerr.Wrap(ErrLockfileInvalid, "dependsOn references unknown feature"), "feature", id), "dependency", dep)
			}
		}
	}

	graph := NewGraph()
	for _, id := range l.IDs() {
		node := GraphNode{ID: NewInternedString(id)}
		for _, dep := range l.Features[id].DependsOn {
			node.DependsOn = append(node.DependsOn, NewInternedString(dep))
		}
		if err := graph.AddFeature(node); err != nil {
			return zerr.Wrap(err, "lockfile entries collide")
		}
	}
	if err := graph.Validate(); err != nil {
		return errors.Join(ErrLockfileInvalid, err)
	}
	return nil
}

// MarshalCanonical renders the lockfile in its canonical on-disk form: keys
// sorted recursively, two-space indentation, and a trailing newline. Writing
// the same logical content always produces byte-identical output.
func (l Lockfile) MarshalCanonical() ([]byte, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, zerr.Wrap(err, "marshal lockfile")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, zerr.Wrap(err, "reparse lockfile for canonical form")
	}
	var buf bytes.Buffer
	if err := writeCanonicalJSON(&buf, tree, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ParseLockfile decodes lockfile bytes. Unknown fields are tolerated so newer
// writers do not break older readers.
func ParseLockfile(data []byte) (Lockfile, error) {
	var l Lockfile
	if err := json.Unmarshal(data, &l); err != nil {
		return Lockfile{}, zerr.Wrap(ErrLockfileInvalid, zerr.Wrap(err, "parse lockfile").Error())
	}
	if l.Features == nil {
		l.Features = make(map[string]LockfileEntry)
	}
	return l, nil
}

// LockStatus is the outcome of comparing a lockfile on disk against the
// entries the current configuration resolves to.
type LockStatus int

const (
	// LockMatched means the lockfile agrees with the configuration.
	LockMatched LockStatus = iota
	// LockMismatch means entries differ or are missing for configured
	// features.
	LockMismatch
	// LockMissing means no lockfile exists where one is required.
	LockMissing
)

// String returns the status name for log and error output.
func (s LockStatus) String() string {
	switch s {
	case LockMatched:
		return "matched"
	case LockMismatch:
		return "mismatch"
	case LockMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Compare diffs the receiver (the lockfile on disk) against the entries the
// configuration currently resolves to. The returned details name each
// divergence and are sorted by feature id.
func (l Lockfile) Compare(generated Lockfile) (LockStatus, []string) {
	var details []string
	for _, id := range generated.IDs() {
		want := generated.Features[id]
		got, ok := l.Features[id]
		if !ok {
			details = append(details, fmt.Sprintf("feature %s is not in the lockfile", id))
			continue
		}
		if got.Version != want.Version {
			details = append(details, fmt.Sprintf("feature %s: locked version %s, resolved %s", id, got.Version, want.Version))
		}
		if got.Resolved != want.Resolved {
			details = append(details, fmt.Sprintf("feature %s: locked reference %s, resolved %s", id, got.Resolved, want.Resolved))
		}
		if got.Integrity != want.Integrity {
			details = append(details, fmt.Sprintf("feature %s: integrity changed", id))
		}
	}
	for _, id := range l.IDs() {
		if _, ok := generated.Features[id]; !ok {
			details = append(details, fmt.Sprintf("feature %s is locked but no longer configured", id))
		}
	}
	sort.Strings(details)
	if len(details) > 0 {
		return LockMismatch, details
	}
	return LockMatched, nil
}

func isIntegrityDigest(s string) bool {
	const prefix = "sha256:"
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	hex := s[len(prefix):]
	if len(hex) != 64 {
		return false
	}
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

func writeCanonicalJSON(buf *bytes.Buffer, v any, depth int) error {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			buf.WriteString("{}")
			return nil
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteString("{\n")
		for i, k := range keys {
			writeIndent(buf, depth+1)
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return zerr.Wrap(err, "marshal object key")
			}
			buf.Write(keyJSON)
			buf.WriteString(": ")
			if err := writeCanonicalJSON(buf, t[k], depth+1); err != nil {
				return err
			}
			if i < len(keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		writeIndent(buf, depth)
		buf.WriteByte('}')
		return nil
	case []any:
		if len(t) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, elem := range t {
			writeIndent(buf, depth+1)
			if err := writeCanonicalJSON(buf, elem, depth+1); err != nil {
				return err
			}
			if i < len(t)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		writeIndent(buf, depth)
		buf.WriteByte(']')
		return nil
	default:
		leaf, err := json.Marshal(t)
		if err != nil {
			return zerr.Wrap(err, "marshal value")
		}
		buf.Write(leaf)
		return nil
	}
}

func writeIndent(buf *bytes.Buffer, depth int) {
	for range depth {
		buf.WriteString("  ")
	}
}
