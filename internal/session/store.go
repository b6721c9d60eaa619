// Package session provides the concurrent in-memory store for learner
// sessions. It is the only shared mutable structure in the core: every
// session mutation goes through a shard write lock, so two concurrent
// requests against the same session never interleave their updates.
package session

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"codetutor/internal/domain"
)

const shardCount = 16

// Store maps session ids to sessions, sharded by id hash so unrelated
// sessions never contend on one lock.
type Store struct {
	shards [shardCount]*shard

	subMu sync.RWMutex
	subs  map[uuid.UUID][]chan domain.Message
}

type shard struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	s := &Store{subs: make(map[uuid.UUID][]chan domain.Message)}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[uuid.UUID]*domain.Session)}
	}
	return s
}

func (s *Store) shardFor(id uuid.UUID) *shard {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return s.shards[h.Sum32()%shardCount]
}

// Put creates or replaces a session.
func (s *Store) Put(sess *domain.Session) {
	sh := s.shardFor(sess.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess.LastActive = time.Now()
	sh.sessions[sess.ID] = sess
}

// Get returns a snapshot copy of a session. Callers inspect the copy without
// holding any lock; mutations must go through Update.
func (s *Store) Get(id uuid.UUID) (*domain.Session, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Update applies fn to the stored session under the shard write lock, as a
// single step. Read-decide-write sequences that span other blocking work
// should re-validate inside fn rather than trusting an earlier snapshot.
func (s *Store) Update(id uuid.UUID, fn func(*domain.Session) error) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := fn(sess); err != nil {
		return err
	}
	sess.LastActive = time.Now()
	return nil
}

// AppendMessage adds a message to the session's conversation history and
// notifies any subscribers.
func (s *Store) AppendMessage(id uuid.UUID, role domain.MessageRole, content string) error {
	var appended domain.Message
	err := s.Update(id, func(sess *domain.Session) error {
		sess.AppendMessage(role, content)
		appended = sess.ConversationHistory[len(sess.ConversationHistory)-1]
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(id, appended)
	return nil
}

// SetPhase replaces the session's teaching phase.
func (s *Store) SetPhase(id uuid.UUID, phase domain.TeachingPhase) error {
	return s.Update(id, func(sess *domain.Session) error {
		sess.Phase = phase
		return nil
	})
}

// SetChallenge replaces the session's current challenge.
func (s *Store) SetChallenge(id uuid.UUID, ch *domain.Challenge) error {
	return s.Update(id, func(sess *domain.Session) error {
		sess.CurrentChallenge = ch
		return nil
	})
}

// Subscribe returns a channel receiving messages appended to the session and
// a cancel func that must be called when the subscriber goes away. Slow
// subscribers miss messages rather than blocking request handling.
func (s *Store) Subscribe(id uuid.UUID) (<-chan domain.Message, func()) {
	ch := make(chan domain.Message, 32)

	s.subMu.Lock()
	s.subs[id] = append(s.subs[id], ch)
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		subs := s.subs[id]
		for i, sub := range subs {
			if sub == ch {
				s.subs[id] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(s.subs[id]) == 0 {
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *Store) publish(id uuid.UUID, msg domain.Message) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs[id] {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// EvictIdle removes sessions that have been inactive for longer than ttl and
// returns the ids removed. onEvict, when set, is called for each.
func (s *Store) EvictIdle(ttl time.Duration, onEvict func(uuid.UUID)) []uuid.UUID {
	cutoff := time.Now().Add(-ttl)
	var evicted []uuid.UUID
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.LastActive.Before(cutoff) {
				delete(sh.sessions, id)
				evicted = append(evicted, id)
			}
		}
		sh.mu.Unlock()
	}
	for _, id := range evicted {
		s.closeSubs(id)
		if onEvict != nil {
			onEvict(id)
		}
	}
	return evicted
}

// closeSubs closes every subscription for an evicted session so streaming
// readers observe the eviction instead of blocking forever.
func (s *Store) closeSubs(id uuid.UUID) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs[id] {
		close(ch)
	}
	delete(s.subs, id)
}
