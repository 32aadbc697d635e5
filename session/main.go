// Package session tracks per-conversation lead state. Each chat owns one
// State; the Store maps chat IDs to their State so no session state is ever
// ambient or shared.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"counselordev/leads"
)

// Turn is one user/bot exchange.
type Turn struct {
	At       time.Time
	UserText string
	BotText  string
}

// State is the accumulated lead state of one conversation session.
type State struct {
	SessionID string
	StartedAt time.Time

	fields leads.FieldMap
	turns  []Turn
}

// NewState starts a fresh session with a random identifier.
func NewState() *State {
	return &State{
		SessionID: uuid.New().String(),
		StartedAt: time.Now(),
		fields:    leads.FieldMap{},
	}
}

// Merge folds newly extracted fields into the session. Non-multi-value
// fields overwrite; multi-value fields accumulate comma-separated with no
// deduplication. Empty values and unknown field names are ignored, so a
// field present in the state always carries a non-empty value.
func (s *State) Merge(newFields leads.FieldMap) {
	for name, value := range newFields {
		value = strings.TrimSpace(value)
		if value == "" || !leads.Known(name) {
			continue
		}

		prior, seen := s.fields[name]
		if leads.IsMultiValue(name) && seen {
			s.fields[name] = prior + ", " + value
			continue
		}
		s.fields[name] = value
	}
}

// Field returns the current value of a field, empty if never observed.
func (s *State) Field(name string) string {
	return s.fields[name]
}

// HasFields reports whether any field has been observed this session.
func (s *State) HasFields() bool {
	return len(s.fields) > 0
}

// AddTurn appends one exchange to the conversation log.
func (s *State) AddTurn(userText, botText string) {
	s.turns = append(s.turns, Turn{At: time.Now(), UserText: userText, BotText: botText})
}

// Turns returns the conversation so far, oldest first.
func (s *State) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TimeSpent formats the session age as H:MM:SS.
func (s *State) TimeSpent() string {
	elapsed := time.Since(s.StartedAt).Round(time.Second)
	h := int(elapsed.Hours())
	m := int(elapsed.Minutes()) % 60
	sec := int(elapsed.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
}

// Snapshot freezes the session into an immutable Lead. Later merges do not
// affect a snapshot already taken.
func (s *State) Snapshot() leads.Lead {
	fields := make(leads.FieldMap, len(s.fields))
	for k, v := range s.fields {
		fields[k] = v
	}

	var conversation, userInputs []string
	for _, t := range s.turns {
		stamp := t.At.Format("15:04:05")
		conversation = append(conversation, fmt.Sprintf("[%s] User: %s | Bot: %s", stamp, t.UserText, t.BotText))
		userInputs = append(userInputs, fmt.Sprintf("[%s] %s", stamp, t.UserText))
	}

	return leads.Lead{
		SessionID:    s.SessionID,
		Timestamp:    time.Now(),
		Fields:       fields,
		TimeSpent:    s.TimeSpent(),
		UserInputs:   strings.Join(userInputs, "\n"),
		Conversation: strings.Join(conversation, "\n"),
	}
}

// Store maps chat IDs to session state. Access to the map is guarded; each
// State itself is only touched by its own conversation.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*State
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*State)}
}

// Get returns the session for a chat, creating one on first contact.
func (st *Store) Get(chatID int64) *State {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[chatID]
	if !ok {
		s = NewState()
		st.sessions[chatID] = s
	}
	return s
}

// Reset replaces the chat's session with a fresh one and returns the prior
// state, nil if the chat had none.
func (st *Store) Reset(chatID int64) *State {
	st.mu.Lock()
	defer st.mu.Unlock()

	prior := st.sessions[chatID]
	st.sessions[chatID] = NewState()
	return prior
}
