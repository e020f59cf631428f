// Package describe holds the conversational state for text-based species
// identification. The running match list is the authoritative result of
// the conversation; narrative text is reconciled to it, never the other
// way around.
package describe

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fieldguide/fieldguide-go/internal/errors"
	"github.com/fieldguide/fieldguide-go/internal/identity"
	"github.com/fieldguide/fieldguide-go/internal/logging"
	"github.com/fieldguide/fieldguide-go/internal/predict"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	logger, _ = logging.ForService("describe", serviceLevelVar)
}

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CategoryAll means no category filter is applied.
const CategoryAll = "all"

// Turn is one conversational exchange step.
type Turn struct {
	Role            string
	Text            string
	Timestamp       time.Time
	Matches         []predict.Match
	FollowUpPrompts []string
}

// ChatClient is the remote collaborator surface. Satisfied by
// predict.Client.
type ChatClient interface {
	DescribeChat(ctx context.Context, req *predict.DescribeRequest) (*predict.DescribeResponse, error)
}

// Session is the description-identification conversation state.
type Session struct {
	mu       sync.Mutex
	client   ChatClient
	category string
	turns    []Turn
	matches  []predict.Match
	pending  string
}

// NewSession creates an empty session with no category filter.
func NewSession(client ChatClient) *Session {
	return &Session{client: client, category: CategoryAll}
}

// matchCountPattern is the narrative restatement of the match count. The
// stored list is authoritative, so the number in the text is rewritten to
// the actual list length.
var matchCountPattern = regexp.MustCompile(`(?i)I found \d+ possible matches`)

// Submit sends one description turn to the service and folds the response
// into the session. The user turn is recorded before the call; the
// assistant turn is stored with its matches sorted by descending
// confidence and its narrative reconciled to the stored match count.
func (s *Session) Submit(ctx context.Context, message string) (*Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.Newf("description text is required").
			Category(errors.CategoryValidation).
			Component("describe").
			Build()
	}

	s.mu.Lock()
	req := &predict.DescribeRequest{
		Message:             message,
		ConversationHistory: s.chatHistoryLocked(),
		CurrentMatches:      append([]predict.Match{}, s.matches...),
	}
	if s.category != CategoryAll {
		req.Category = s.category
	}
	s.turns = append(s.turns, Turn{Role: RoleUser, Text: message, Timestamp: time.Now()})
	s.pending = ""
	s.mu.Unlock()

	resp, err := s.client.DescribeChat(ctx, req)
	if err != nil {
		return nil, err
	}

	matches := append([]predict.Match{}, resp.Matches...)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	text := resp.Response
	if len(matches) > 0 {
		text = matchCountPattern.ReplaceAllString(text,
			fmt.Sprintf("I found %d possible matches", len(matches)))
	}

	turn := Turn{
		Role:            RoleAssistant,
		Text:            text,
		Timestamp:       time.Now(),
		Matches:         matches,
		FollowUpPrompts: resp.FollowUpQuestions,
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.matches = matches
	s.mu.Unlock()

	logger.Debug("description turn folded", "matches", len(matches))
	return &turn, nil
}

// chatHistoryLocked renders prior turns as wire messages. Callers hold
// s.mu.
func (s *Session) chatHistoryLocked() []predict.ChatMessage {
	history := make([]predict.ChatMessage, 0, len(s.turns))
	for i := range s.turns {
		history = append(history, predict.ChatMessage{
			Role:    s.turns[i].Role,
			Content: s.turns[i].Text,
		})
	}
	return history
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Matches returns the running match list, ordered by descending
// confidence.
func (s *Session) Matches() []predict.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]predict.Match, len(s.matches))
	copy(out, s.matches)
	return out
}

// Category returns the active category filter.
func (s *Session) Category() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

// SetPendingInput stores draft input that has not been submitted yet.
func (s *Session) SetPendingInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = text
}

// PendingInput returns the unsubmitted draft input.
func (s *Session) PendingInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// SetCategory switches the category filter. A change clears conversation,
// matches and pending input in one step; setting the same category is a
// no-op.
func (s *Session) SetCategory(category string) {
	if category == "" {
		category = CategoryAll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.category == category {
		return
	}
	s.category = category
	s.resetLocked()
}

// Reset starts a new chat: conversation, matches and pending input clear
// together. The category filter survives.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.turns = nil
	s.matches = nil
	s.pending = ""
}

// MatchID resolves the canonical species ID of a match for click-through
// navigation.
func MatchID(m *predict.Match) (string, bool) {
	return identity.Resolve(identity.Record{
		SpeciesID:      m.SpeciesID,
		Key:            m.Key,
		CommonName:     m.CommonName,
		ScientificName: m.ScientificName,
		ImagePath:      m.ImagePath,
	}, "")
}
