// Package collection maintains the persisted ledger of species the user
// has unlocked through qualifying identifications. The ledger is a
// monotonic set: cardinality never decreases except through an explicit
// user-initiated reset.
package collection

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/fieldguide/fieldguide-go/internal/datastore"
	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/events"
	"github.com/fieldguide/fieldguide-go/internal/logging"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	logger, _ = logging.ForService("collection", serviceLevelVar)
}

const blobKey = "collected_species"

// Candidate is an identification result proposed for unlock. Only a
// resolved, warning-free candidate mutates the ledger.
type Candidate struct {
	ID         string
	Resolved   bool
	Label      string // display name for the notification
	HasWarning bool   // service-issued confidence warning on the triggering result
}

// Ledger is the persisted unlocked-species set.
type Ledger struct {
	mu       sync.Mutex
	store    datastore.Interface
	notifier *events.UnlockNotifier
	ids      map[string]struct{}
}

// NewLedger loads the persisted ledger from the store. An unparsable
// persisted value degrades silently to an empty ledger; a failed read is
// an error, since an empty ledger over unreadable state would shrink the
// set the moment the next unlock persists.
func NewLedger(store datastore.Interface, notifier *events.UnlockNotifier) (*Ledger, error) {
	ledger := &Ledger{
		store:    store,
		notifier: notifier,
		ids:      make(map[string]struct{}),
	}

	raw, err := store.Get(blobKey)
	if err != nil {
		if errors.Is(err, datastore.ErrKeyNotFound) {
			return ledger, nil
		}
		return nil, errors.Newf("failed to read collection ledger: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("collection").
			Build()
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		logger.Warn("unparsable collection ledger, starting empty", "error", err)
		return ledger, nil
	}
	for _, id := range ids {
		ledger.ids[id] = struct{}{}
	}
	return ledger, nil
}

// TryUnlock adds the candidate's species to the ledger. It reports whether
// the species is newly unlocked; repeating an unlock is a no-op. A
// candidate that is unresolved or carries a warning short-circuits with no
// mutation.
func (l *Ledger) TryUnlock(c Candidate) (newlyUnlocked bool, err error) {
	if !c.Resolved || c.ID == "" {
		logger.Debug("unlock skipped, unresolved identity")
		return false, nil
	}
	if c.HasWarning {
		logger.Debug("unlock skipped, warning on triggering result", "species_id", c.ID)
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.ids[c.ID]; exists {
		return false, nil
	}

	l.ids[c.ID] = struct{}{}
	if err := l.persistLocked(); err != nil {
		// keep the in-memory set consistent with what is on disk
		delete(l.ids, c.ID)
		return false, err
	}

	logger.Info("species unlocked", "species_id", c.ID, "total", len(l.ids))

	if l.notifier != nil {
		l.notifier.Publish(events.UnlockEvent{
			SpeciesID:   c.ID,
			SpeciesName: c.Label,
			Message:     "+1 Added to your Field Guide!",
		})
	}
	return true, nil
}

// Contains reports whether the species has been unlocked.
func (l *Ledger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ids[id]
	return ok
}

// Count returns the number of unlocked species.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// IDs returns the unlocked species IDs in sorted order.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset clears the ledger. This is the only path that shrinks it and must
// only run on explicit user action.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := l.ids
	l.ids = make(map[string]struct{})
	if err := l.persistLocked(); err != nil {
		l.ids = previous
		return err
	}
	logger.Info("collection ledger reset")
	return nil
}

// persistLocked writes the current set. Callers hold l.mu.
func (l *Ledger) persistLocked() error {
	ids := make([]string, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	encoded, err := json.Marshal(ids)
	if err != nil {
		return errors.Newf("failed to encode collection ledger: %w", err).
			Category(errors.CategoryDataIntegrity).
			Component("collection").
			Build()
	}
	return l.store.Put(blobKey, encoded)
}
