// Package nickname maintains the curated username-to-nickname mapping loaded
// from a JSON file and reloaded on a fixed interval.
package nickname

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/playerlist/errors"
)

// The nickname file is a flat JSON object keyed by username:
//
//	{"Alice": "Ace", "Bob": "Builder"}
//
// Any other shape, including nested objects, is rejected as a whole.
const fileSchema = `{
	"type": "object",
	"additionalProperties": {"type": "string"}
}`

var schema = gojsonschema.NewStringLoader(fileSchema)

// Store holds the nickname map. The map is replaced wholesale on each load;
// readers never observe a partially applied file.
type Store struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	nicknames map[string]string
}

// NewStore creates a nickname store for the given file path. An empty path
// yields a permanently empty store.
func NewStore(path string, interval time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:      path,
		interval:  interval,
		logger:    logger.With("component", "nickname"),
		nicknames: make(map[string]string),
	}
}

// Resolve returns the curated nickname for a username.
func (s *Store) Resolve(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nick, ok := s.nicknames[username]
	return nick, ok
}

// Size returns the number of loaded nicknames.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nicknames)
}

// Load reads the nickname file and swaps in the new mapping. A missing,
// unreadable or invalid file results in an empty mapping and a non-nil
// error; the store stays usable either way.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	loaded, err := s.read()
	if err != nil {
		loaded = make(map[string]string)
	}

	s.mu.Lock()
	s.nicknames = loaded
	s.mu.Unlock()

	return err
}

func (s *Store) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.WrapTransient(err, "nickname", "Load", "read nickname file")
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.WrapInvalid(err, "nickname", "Load", "parse nickname file")
	}
	if !result.Valid() {
		s.logValidationErrors(result)
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "nickname", "Load", "validate nickname file")
	}

	var loaded map[string]string
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, errors.WrapInvalid(err, "nickname", "Load", "decode nickname file")
	}
	if loaded == nil {
		loaded = make(map[string]string)
	}
	return loaded, nil
}

func (s *Store) logValidationErrors(result *gojsonschema.Result) {
	for _, desc := range result.Errors() {
		s.logger.Error("nickname file rejected",
			"field", desc.Field(),
			"reason", desc.Description())
	}
}

// Run loads the file once, then reloads on the configured interval until the
// context is cancelled. Load failures are logged and never stop the loop.
func (s *Store) Run(ctx context.Context) {
	if s.path == "" {
		s.logger.Info("nickname store disabled, no path configured")
		return
	}

	s.loadAndLog()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.loadAndLog()
		}
	}
}

func (s *Store) loadAndLog() {
	err := s.Load()
	switch {
	case err == nil:
		s.logger.Debug("nicknames loaded", "count", s.Size())
	case errors.IsTransient(err):
		s.logger.Warn("nickname file unavailable, serving without nicknames", "path", s.path, "error", err)
	default:
		s.logger.Error("nickname file invalid, serving without nicknames", "path", s.path, "error", err)
	}
}
