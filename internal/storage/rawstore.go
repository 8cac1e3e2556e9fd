package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// DefaultDir is where payloads land when no data dir is configured
const DefaultDir = "data"

// RawStore keeps the unmodified API payloads on disk, one file per match
// and kind: <dir>/match_<id>.json and <dir>/timeline_<id>.json
type RawStore struct {
	dir string
}

// NewRawStore creates a store rooted at dir, creating it on demand
func NewRawStore(dir string) (*RawStore, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return &RawStore{dir: dir}, nil
}

// Dir returns the root directory
func (s *RawStore) Dir() string {
	return s.dir
}

// Path returns where the payload of the given kind is stored
func (s *RawStore) Path(kind Kind, matchID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", kind, matchID))
}

// SaveMatch validates and writes a match payload
func (s *RawStore) SaveMatch(matchID string, payload []byte) (string, error) {
	return s.save(KindMatch, matchID, payload)
}

// SaveTimeline validates and writes a timeline payload
func (s *RawStore) SaveTimeline(matchID string, payload []byte) (string, error) {
	return s.save(KindTimeline, matchID, payload)
}

func (s *RawStore) save(kind Kind, matchID string, payload []byte) (string, error) {
	if err := checkMatchID(matchID); err != nil {
		return "", err
	}
	payloadID, err := validate(kind, payload)
	if err != nil {
		return "", err
	}
	if payloadID != matchID {
		return "", fmt.Errorf("%w: metadata.matchId %q does not match %q", ErrInvalidPayload, payloadID, matchID)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	buf.WriteByte('\n')

	path := s.Path(kind, matchID)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// writeFileAtomic replaces path in one step so a crash never leaves a
// half-written payload behind
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// checkMatchID rejects ids that would not stay a single file name inside
// the data dir
func checkMatchID(matchID string) error {
	switch {
	case matchID == "":
		return fmt.Errorf("%w: empty match id", ErrInvalidPayload)
	case strings.ContainsAny(matchID, `/\`), strings.Contains(matchID, ".."),
		filepath.Base(matchID) != matchID:
		return fmt.Errorf("%w: unsafe match id %q", ErrInvalidPayload, matchID)
	}
	return nil
}

// Validate checks the minimal schema: a non-empty metadata.matchId and an
// info object. Match payloads must also carry an info.participants array.
func Validate(kind Kind, payload []byte) error {
	_, err := validate(kind, payload)
	return err
}

// validate returns the payload's metadata.matchId once the schema holds
func validate(kind Kind, payload []byte) (string, error) {
	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Metadata == nil || env.Metadata.MatchID == "" {
		return "", fmt.Errorf("%w: missing metadata.matchId", ErrInvalidPayload)
	}
	if !isJSONKind(env.Info, '{') {
		return "", fmt.Errorf("%w: missing info object", ErrInvalidPayload)
	}

	if kind == KindMatch {
		var info rawMatchInfo
		if err := json.Unmarshal(env.Info, &info); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if !isJSONKind(info.Participants, '[') {
			return "", fmt.Errorf("%w: info.participants is not an array", ErrInvalidPayload)
		}
	}
	return env.Metadata.MatchID, nil
}

func isJSONKind(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open
}

// Exists reports whether the payload of the given kind is on disk
func (s *RawStore) Exists(kind Kind, matchID string) bool {
	if checkMatchID(matchID) != nil {
		return false
	}
	info, err := os.Stat(s.Path(kind, matchID))
	return err == nil && !info.IsDir()
}

// HasMatch reports whether both payloads for a match are on disk
func (s *RawStore) HasMatch(matchID string) bool {
	return s.Exists(KindMatch, matchID) && s.Exists(KindTimeline, matchID)
}

// List returns the sorted paths of every stored payload of one kind
func (s *RawStore) List(kind Kind) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, string(kind)+"_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads a stored payload
func (s *RawStore) Load(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MatchIDFromPath recovers the match id from a stored payload path
func MatchIDFromPath(path string) (Kind, string, bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	for _, kind := range []Kind{KindMatch, KindTimeline} {
		prefix := string(kind) + "_"
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return kind, strings.TrimPrefix(name, prefix), true
		}
	}
	return "", "", false
}
