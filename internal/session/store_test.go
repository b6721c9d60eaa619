package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"codetutor/internal/domain"
)

func TestGetReturnsSnapshotCopy(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := uuid.New()
	store.Put(domain.NewSession(id, "python-basics"))

	snap, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	snap.Phase = domain.PhaseMastery
	snap.ConversationHistory = append(snap.ConversationHistory, domain.Message{Role: domain.RoleSystem, Content: "x"})

	fresh, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fresh.Phase != domain.PhaseIntroduction {
		t.Errorf("mutating a snapshot changed stored phase: %v", fresh.Phase)
	}
	if len(fresh.ConversationHistory) != 0 {
		t.Error("mutating a snapshot changed stored history")
	}
}

func TestGetUnknownSession(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, err := store.Get(uuid.New()); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestUpdateAppliesUnderLock(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := uuid.New()
	sess := domain.NewSession(id, "python-basics")
	sess.CurrentChallenge = &domain.Challenge{Description: "write a function"}
	store.Put(sess)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(id, func(s *domain.Session) error {
				s.CurrentChallenge.HintsGiven++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := store.Get(id)
	if got.CurrentChallenge.HintsGiven != n {
		t.Errorf("expected %d hints after %d concurrent updates, got %d", n, n, got.CurrentChallenge.HintsGiven)
	}
}

func TestAppendMessageNotifiesSubscribers(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := uuid.New()
	store.Put(domain.NewSession(id, "python-basics"))

	ch, cancel := store.Subscribe(id)
	defer cancel()

	if err := store.AppendMessage(id, domain.RoleTutor, "welcome"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Role != domain.RoleTutor || msg.Content != "welcome" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the appended message")
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := uuid.New()
	store.Put(domain.NewSession(id, "python-basics"))

	ch, cancel := store.Subscribe(id)
	cancel()

	if _, open := <-ch; open {
		t.Error("expected channel closed after cancel")
	}
	// Publishing after cancel must not panic.
	if err := store.AppendMessage(id, domain.RoleTutor, "after cancel"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
}

func TestEvictIdleRemovesOnlyStaleSessions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	stale := domain.NewSession(uuid.New(), "python-basics")
	store.Put(stale)
	_ = store.Update(stale.ID, func(s *domain.Session) error { return nil })

	// Age the stale session by rewinding its activity timestamp directly.
	sh := store.shardFor(stale.ID)
	sh.mu.Lock()
	sh.sessions[stale.ID].LastActive = time.Now().Add(-2 * time.Hour)
	sh.mu.Unlock()

	fresh := domain.NewSession(uuid.New(), "python-basics")
	store.Put(fresh)

	var evicted []uuid.UUID
	store.EvictIdle(time.Hour, func(id uuid.UUID) { evicted = append(evicted, id) })

	if len(evicted) != 1 || evicted[0] != stale.ID {
		t.Errorf("expected only the stale session evicted, got %v", evicted)
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Errorf("fresh session should survive eviction: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 session left, got %d", store.Len())
	}
}

func TestEvictIdleClosesSubscriptions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	sess := domain.NewSession(uuid.New(), "python-basics")
	store.Put(sess)

	ch, cancel := store.Subscribe(sess.ID)
	defer cancel()

	sh := store.shardFor(sess.ID)
	sh.mu.Lock()
	sh.sessions[sess.ID].LastActive = time.Now().Add(-2 * time.Hour)
	sh.mu.Unlock()

	store.EvictIdle(time.Hour, nil)

	select {
	case _, open := <-ch:
		if open {
			t.Error("expected subscription closed, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed by eviction")
	}
}
