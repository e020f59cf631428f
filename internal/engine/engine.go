// Package engine orchestrates identification submissions: it calls the
// prediction service, then applies the resulting state changes (history
// append, ledger unlock, latest-result tracking) as one atomic step so no
// observer sees a history entry without its warning flag or an unlock
// without its entry.
package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fieldguide/fieldguide-go/internal/collection"
	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/identity"
	"github.com/fieldguide/fieldguide-go/internal/logging"
	"github.com/fieldguide/fieldguide-go/internal/predict"
	"github.com/fieldguide/fieldguide-go/internal/session"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	logger, _ = logging.ForService("engine", serviceLevelVar)
}

// Classifier is the remote submission surface. Satisfied by
// predict.Client.
type Classifier interface {
	PredictImage(ctx context.Context, filename string, image io.Reader) (*predict.Result, error)
	PredictSound(ctx context.Context, filename string, audio io.Reader) (*predict.Result, error)
}

// Outcome is the applied result of one submission.
type Outcome struct {
	Entry         session.Entry
	NewlyUnlocked bool
}

// BatchItem is one image of a batch submission.
type BatchItem struct {
	Filename string
	ImageRef string
	Image    io.Reader
}

// BatchOutcome reports a batch submission: applied entries plus the
// per-item failures that were skipped.
type BatchOutcome struct {
	Outcomes []Outcome
	Failed   map[string]error
}

// Engine wires the prediction client to the session store and the
// collection ledger.
type Engine struct {
	client   Classifier
	sessions *session.Store
	ledger   *collection.Ledger

	// mu serializes state application. Results apply in completion
	// order, so a newer submission that finishes last wins visibility
	// (last-applied-wins).
	mu     sync.Mutex
	latest *Outcome
}

// New creates an engine over the given collaborators.
func New(client Classifier, sessions *session.Store, ledger *collection.Ledger) *Engine {
	return &Engine{
		client:   client,
		sessions: sessions,
		ledger:   ledger,
	}
}

// SubmitImage classifies one image and applies the result.
func (e *Engine) SubmitImage(ctx context.Context, filename, imageRef string, image io.Reader) (*Outcome, error) {
	if image == nil {
		return nil, errors.Newf("an image must be selected before submitting").
			Category(errors.CategoryValidation).
			Component("engine").
			Build()
	}

	result, err := e.client.PredictImage(ctx, filename, image)
	if err != nil {
		return nil, err
	}
	return e.apply(session.KindImage, imageRef, result), nil
}

// SubmitSound classifies one audio clip and applies the result under the
// batch/audio history cap.
func (e *Engine) SubmitSound(ctx context.Context, filename, imageRef string, audio io.Reader) (*Outcome, error) {
	if audio == nil {
		return nil, errors.Newf("an audio file must be selected before submitting").
			Category(errors.CategoryValidation).
			Component("engine").
			Build()
	}

	result, err := e.client.PredictSound(ctx, filename, audio)
	if err != nil {
		return nil, err
	}
	return e.apply(session.KindSound, imageRef, result), nil
}

// SubmitBatch classifies several images in one submission. Items that fail
// are skipped and reported; valid results append to history together.
func (e *Engine) SubmitBatch(ctx context.Context, items []BatchItem) (*BatchOutcome, error) {
	if len(items) == 0 {
		return nil, errors.Newf("at least one image must be selected before submitting").
			Category(errors.CategoryValidation).
			Component("engine").
			Build()
	}

	batch := &BatchOutcome{Failed: make(map[string]error)}
	entries := make([]session.Entry, 0, len(items))
	results := make([]*predict.Result, 0, len(items))

	for _, item := range items {
		result, err := e.client.PredictImage(ctx, item.Filename, item.Image)
		if err != nil {
			logger.Warn("batch item failed", "filename", item.Filename, "error", err)
			batch.Failed[item.Filename] = err
			continue
		}
		entries = append(entries, session.NewEntry(session.KindBatch, item.ImageRef, result))
		results = append(results, result)
	}

	if len(entries) == 0 {
		return batch, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions.Append(session.KindBatch, entries...)
	for i := range entries {
		outcome := Outcome{Entry: entries[i]}
		outcome.NewlyUnlocked = e.unlock(results[i])
		e.latest = &outcome
		batch.Outcomes = append(batch.Outcomes, outcome)
	}
	return batch, nil
}

// apply folds one result into session state as a single atomic step.
func (e *Engine) apply(kind session.Kind, imageRef string, result *predict.Result) *Outcome {
	entry := session.NewEntry(kind, imageRef, result)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions.Append(kind, entry)
	outcome := &Outcome{
		Entry:         entry,
		NewlyUnlocked: e.unlock(result),
	}
	e.latest = outcome
	return outcome
}

// unlock proposes the result to the ledger. Unresolved or warning-bearing
// results never mutate it.
func (e *Engine) unlock(result *predict.Result) bool {
	rec := identity.Record{}
	label := ""
	if result.Prediction != nil {
		rec.Class = result.Prediction.Class
		label = result.Prediction.Class
	}
	id, resolved := identity.Resolve(rec, "")

	newly, err := e.ledger.TryUnlock(collection.Candidate{
		ID:         id,
		Resolved:   resolved,
		Label:      label,
		HasWarning: result.Warning != nil,
	})
	if err != nil {
		// persistence failure loses the unlock, not the session
		logger.Error("ledger unlock failed", "species_id", id, "error", err)
		return false
	}
	return newly
}

// Latest returns the most recently applied outcome. With concurrent
// submissions this is the one that completed last, regardless of issuance
// order.
func (e *Engine) Latest() *Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}
