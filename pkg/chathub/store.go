package chathub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ConversationStore owns the conversation table. The table itself is safe for
// concurrent use from independent conversations; ordering within a single
// conversation is the hub's job (one in-flight Handle per conversation).
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: map[string]*Conversation{}}
}

// GetOrCreate returns the conversation for id, allocating a fresh one when id
// is empty or unknown. An unknown id is not an error: the caller-supplied id
// may come from a client that was talking to a previous process.
func (s *ConversationStore) GetOrCreate(id string) (*Conversation, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if conv, ok := s.convs[id]; ok {
			return conv, id
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	conv := &Conversation{ID: id, CreatedAt: time.Now()}
	s.convs[id] = conv
	log.Debug().Str("component", "store").Str("conv_id", id).Msg("created conversation")
	return conv, id
}

// Append adds a turn to the end of the conversation, assigning its sequence
// number and timestamp, and returns the stored turn. Unknown ids are
// unreachable through the hub (GetOrCreate runs first) but kept as a
// defensive contract.
func (s *ConversationStore) Append(id string, t Turn) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return Turn{}, errors.Wrap(ErrNotFound, "append: unknown conversation "+id)
	}
	t.Seq = len(conv.turns)
	t.Timestamp = time.Now()
	conv.turns = append(conv.turns, t)
	return t, nil
}

// History returns a copy of the ordered turn sequence.
func (s *ConversationStore) History(id string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, "history: unknown conversation "+id)
	}
	out := make([]Turn, len(conv.turns))
	copy(out, conv.turns)
	return out, nil
}

// Len reports the number of turns in a conversation, 0 for unknown ids.
func (s *ConversationStore) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return 0
	}
	return len(conv.turns)
}

// Count reports the number of known conversations.
func (s *ConversationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}
