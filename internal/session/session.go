// Package session owns the identification session's bounded history list
// and the independently persisted favorites store. History lives only for
// the session; favorites survive it and therefore must never be written
// with a transient image reference.
package session

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldguide/fieldguide-go/internal/datastore"
	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/logging"
	"github.com/fieldguide/fieldguide-go/internal/predict"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	logger, _ = logging.ForService("session", serviceLevelVar)
}

const favoritesKey = "favorites"

// Kind distinguishes submission types, which carry different history caps.
type Kind string

const (
	KindImage Kind = "image"
	KindSound Kind = "sound"
	KindBatch Kind = "batch"
)

// Entry is one identification record. The warning flag from the
// originating response is preserved so consumers can tell "no confident
// classification" from a normal result without re-deriving it.
type Entry struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	ImageRef  string          `json:"image_ref"`
	Result    *predict.Result `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEntry builds an entry with a fresh stable identifier.
func NewEntry(kind Kind, imageRef string, result *predict.Result) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		ImageRef:  imageRef,
		Result:    result,
		Timestamp: time.Now(),
	}
}

// HasWarning reports whether the originating response carried a
// confidence warning.
func (e *Entry) HasWarning() bool {
	return e.Result != nil && e.Result.Warning != nil
}

// Class returns the predicted class name, or "".
func (e *Entry) Class() string {
	if e.Result == nil || e.Result.Prediction == nil {
		return ""
	}
	return e.Result.Prediction.Class
}

// ImageEncoder normalizes a possibly transient image reference into a
// self-contained encoded form safe to persist.
type ImageEncoder func(ref string) (string, error)

// Config holds the two independently configured history caps.
type Config struct {
	HistoryCapSingle int
	HistoryCapBatch  int
}

// Store is the session store.
type Store struct {
	mu        sync.Mutex
	store     datastore.Interface
	config    Config
	encoder   ImageEncoder
	history   []Entry
	favorites []Entry
}

// NewStore loads persisted favorites from the datastore. Unparsable
// persisted favorites degrade to an empty list rather than failing the
// session; a failed read is an error, since starting empty over an
// unreadable list would let the next mutation overwrite it.
func NewStore(store datastore.Interface, config Config, encoder ImageEncoder) (*Store, error) {
	if config.HistoryCapSingle <= 0 {
		config.HistoryCapSingle = 10
	}
	if config.HistoryCapBatch <= 0 {
		config.HistoryCapBatch = 20
	}
	if encoder == nil {
		encoder = DataURIEncoder
	}

	s := &Store{store: store, config: config, encoder: encoder}

	raw, err := store.Get(favoritesKey)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &s.favorites); err != nil {
			logger.Warn("unparsable persisted favorites, starting empty", "error", err)
			s.favorites = nil
		}
	case errors.Is(err, datastore.ErrKeyNotFound):
		// first run, nothing persisted yet
	default:
		return nil, errors.Newf("failed to read persisted favorites: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("session").
			Build()
	}
	return s, nil
}

// capFor returns the history cap for a submission kind: single-image
// submissions keep the short list, batch and audio the longer one.
func (s *Store) capFor(kind Kind) int {
	if kind == KindImage {
		return s.config.HistoryCapSingle
	}
	return s.config.HistoryCapBatch
}

// Append adds entries to the front of the history and truncates to the
// kind's cap immediately. All entries of one call share the submission
// kind (a batch appends together).
func (s *Store) Append(kind Kind, entries ...Entry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(append([]Entry{}, entries...), s.history...)
	if limit := s.capFor(kind); len(s.history) > limit {
		s.history = s.history[:limit]
	}
}

// History returns a copy of the history, newest first.
func (s *Store) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryLen returns the current history length.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// ClearHistory drops the session history. Favorites are untouched.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// sameFavorite is the heuristic favorite identity: classification equality
// plus a sub-second timestamp window. This is a heuristic, not a primary
// key: two rapid submissions of one species can collide and clock skew can
// miss a match. Exact removal goes through RemoveFavorite with the entry's
// stable ID.
func sameFavorite(a, b *Entry) bool {
	if a.Class() == "" || a.Class() != b.Class() {
		return false
	}
	delta := a.Timestamp.Sub(b.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta < time.Second
}

// ToggleFavorite adds the entry to favorites, or removes the matching
// favorite if one exists under the heuristic identity. Before persisting,
// the image reference is normalized to a self-contained form; if that
// fails the favorite is not written and a data-integrity error surfaces.
func (s *Store) ToggleFavorite(entry Entry) (added bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.favorites {
		if sameFavorite(&s.favorites[i], &entry) {
			removed := append(append([]Entry{}, s.favorites[:i]...), s.favorites[i+1:]...)
			if err := s.persistFavoritesLocked(removed); err != nil {
				return false, err
			}
			s.favorites = removed
			return false, nil
		}
	}

	encoded, err := s.encoder(entry.ImageRef)
	if err != nil {
		return false, errors.Newf("failed to encode favorite image: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("session").
			Context("image_ref_len", len(entry.ImageRef)).
			Build()
	}
	entry.ImageRef = encoded

	next := append([]Entry{entry}, s.favorites...)
	if err := s.persistFavoritesLocked(next); err != nil {
		return false, err
	}
	s.favorites = next
	logger.Info("favorite added", "entry_id", entry.ID, "class", entry.Class())
	return true, nil
}

// RemoveFavorite removes a favorite by its stable entry ID.
func (s *Store) RemoveFavorite(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Entry, 0, len(s.favorites))
	for i := range s.favorites {
		if s.favorites[i].ID != entryID {
			next = append(next, s.favorites[i])
		}
	}
	if len(next) == len(s.favorites) {
		return nil
	}
	if err := s.persistFavoritesLocked(next); err != nil {
		return err
	}
	s.favorites = next
	return nil
}

// IsFavorite reports whether a favorite matches the entry under the
// heuristic identity.
func (s *Store) IsFavorite(entry Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.favorites {
		if sameFavorite(&s.favorites[i], &entry) {
			return true
		}
	}
	return false
}

// Favorites returns a copy of the favorites, newest first.
func (s *Store) Favorites() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.favorites))
	copy(out, s.favorites)
	return out
}

// persistFavoritesLocked writes the given favorites list. Callers hold
// s.mu; s.favorites is only updated after a successful write so a failed
// persist never leaves memory and disk disagreeing.
func (s *Store) persistFavoritesLocked(favorites []Entry) error {
	encoded, err := json.Marshal(favorites)
	if err != nil {
		return errors.Newf("failed to encode favorites: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("session").
			Build()
	}
	return s.store.Put(favoritesKey, encoded)
}

// DataURIEncoder is the default ImageEncoder: data URIs pass through,
// file paths (image or audio) are read and inlined as base64 data URIs,
// anything else is rejected as a transient reference that would not
// survive the session.
func DataURIEncoder(ref string) (string, error) {
	if ref == "" {
		return "", errors.Newf("empty image reference").
			Category(errors.CategoryDataIntegrity).
			Component("session").
			Build()
	}
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return "", errors.Newf("failed to read image %s: %w", ref, err).
			Category(errors.CategoryDataIntegrity).
			Component("session").
			Build()
	}

	mime := "image/jpeg"
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".png":
		mime = "image/png"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	case ".wav":
		mime = "audio/wav"
	case ".mp3":
		mime = "audio/mpeg"
	case ".ogg":
		mime = "audio/ogg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
