package collection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldguide/fieldguide-go/internal/datastore"
	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/events"
)

func resolved(id string) Candidate {
	return Candidate{ID: id, Resolved: true, Label: id}
}

func newTestLedger(t *testing.T, store datastore.Interface, notifier *events.UnlockNotifier) *Ledger {
	t.Helper()
	ledger, err := NewLedger(store, notifier)
	require.NoError(t, err)
	return ledger
}

func TestTryUnlockAddsAndPersists(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemoryStore()
	ledger := newTestLedger(t, store, nil)

	newly, err := ledger.TryUnlock(resolved("007.Parakeet_Auklet"))
	require.NoError(t, err)
	assert.True(t, newly)
	assert.True(t, ledger.Contains("007.Parakeet_Auklet"))
	assert.Equal(t, 1, ledger.Count())

	// a fresh ledger over the same store sees the persisted unlock
	reloaded := newTestLedger(t, store, nil)
	assert.True(t, reloaded.Contains("007.Parakeet_Auklet"))
}

func TestTryUnlockIsIdempotent(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, datastore.NewMemoryStore(), nil)

	first, err := ledger.TryUnlock(resolved("ADONIS"))
	require.NoError(t, err)
	second, err := ledger.TryUnlock(resolved("ADONIS"))
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, ledger.Count())
}

func TestTryUnlockShortCircuits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    Candidate
	}{
		{"unresolved identity", Candidate{ID: "", Resolved: false}},
		{"resolved flag false", Candidate{ID: "MONARCH", Resolved: false}},
		{"warning present", Candidate{ID: "MONARCH", Resolved: true, HasWarning: true}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := datastore.NewMemoryStore()
			ledger := newTestLedger(t, store, nil)

			newly, err := ledger.TryUnlock(tt.c)
			require.NoError(t, err)
			assert.False(t, newly)
			assert.Equal(t, 0, ledger.Count())

			// nothing persisted either
			_, err = store.Get("collected_species")
			assert.Error(t, err)
		})
	}
}

func TestUnparsablePersistedLedgerDegradesToEmpty(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemoryStore()
	require.NoError(t, store.Put("collected_species", []byte("{{{")))

	ledger := newTestLedger(t, store, nil)
	assert.Equal(t, 0, ledger.Count())

	// and it keeps working
	newly, err := ledger.TryUnlock(resolved("035.Purple_Finch"))
	require.NoError(t, err)
	assert.True(t, newly)
}

func TestNewUnlockPublishesNotification(t *testing.T) {
	t.Parallel()

	notifier := events.NewUnlockNotifierWithExpiry(time.Minute)
	ledger := newTestLedger(t, datastore.NewMemoryStore(), notifier)
	ch := notifier.Subscribe()

	_, err := ledger.TryUnlock(Candidate{ID: "ADONIS", Resolved: true, Label: "Adonis Blue"})
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, "ADONIS", ev.SpeciesID)
		assert.Equal(t, "Adonis Blue", ev.SpeciesName)
	case <-time.After(time.Second):
		t.Fatal("no unlock notification published")
	}

	// repeat unlock publishes nothing
	_, err = ledger.TryUnlock(Candidate{ID: "ADONIS", Resolved: true})
	require.NoError(t, err)
	assert.Empty(t, ch)
}

func TestResetClearsLedger(t *testing.T) {
	t.Parallel()

	store := datastore.NewMemoryStore()
	ledger := newTestLedger(t, store, nil)

	for _, id := range []string{"a", "b", "c"} {
		_, err := ledger.TryUnlock(resolved(id))
		require.NoError(t, err)
	}
	require.Equal(t, 3, ledger.Count())

	require.NoError(t, ledger.Reset())
	assert.Equal(t, 0, ledger.Count())

	reloaded := newTestLedger(t, store, nil)
	assert.Equal(t, 0, reloaded.Count())
}

func TestIDsSorted(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, datastore.NewMemoryStore(), nil)
	for _, id := range []string{"MONARCH", "ADONIS", "007.Parakeet_Auklet"} {
		_, err := ledger.TryUnlock(resolved(id))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"007.Parakeet_Auklet", "ADONIS", "MONARCH"}, ledger.IDs())
}

// failingStore simulates a datastore whose reads error without the key
// being absent.
type failingStore struct {
	datastore.Interface
	getErr error
}

func (f *failingStore) Get(key string) ([]byte, error) { return nil, f.getErr }

func TestUnreadablePersistedLedgerFailsConstruction(t *testing.T) {
	t.Parallel()

	store := &failingStore{
		Interface: datastore.NewMemoryStore(),
		getErr:    errors.Newf("disk read failed").Category(errors.CategoryDataIntegrity).Build(),
	}

	_, err := NewLedger(store, nil)
	require.Error(t, err, "a read failure must not degrade to an empty ledger the next unlock would persist over")
	assert.True(t, errors.HasCategory(err, errors.CategoryDataIntegrity))
}
