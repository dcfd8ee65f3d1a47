package roster

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/SWAI-Ltd/multipass/internal/observe"
)

type set map[Participant]struct{}

// Store holds the managed and remote sets. The externally visible roster is
// their union; an id may legitimately sit in both sets when a local
// participant is also reported by a peer.
//
// Every mutation republishes the merged roster, even when it changed nothing.
type Store struct {
	mu      sync.Mutex
	managed set
	remote  set
	merged  *observe.Value[[]Participant]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		managed: make(set),
		remote:  make(set),
		merged:  observe.NewValueOf([]Participant{}),
	}
}

func (s *Store) AddManaged(p Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managed[p] = struct{}{}
	s.publish()
}

func (s *Store) RemoveManaged(p Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.managed, p)
	s.publish()
}

// AddRemote merges one or many participants into the remote set.
func (s *Store) AddRemote(ps ...Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range ps {
		s.remote[p] = struct{}{}
	}
	s.publish()
}

func (s *Store) RemoveRemote(p Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.remote, p)
	s.publish()
}

// Managed returns the managed set sorted by id.
func (s *Store) Managed() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(lo.Keys(s.managed))
}

// Remote returns the remote set sorted by id.
func (s *Store) Remote() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sorted(lo.Keys(s.remote))
}

// All returns the deduplicated union of both sets sorted by id.
func (s *Store) All() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.union()
}

func (s *Store) IsManaged(p Participant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.managed[p]
	return ok
}

func (s *Store) IsRemote(p Participant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.remote[p]
	return ok
}

// Entries returns the roster with display kinds. A participant present in
// both sets shows as remote; its managed membership is kept.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.union(), func(p Participant, _ int) Entry {
		if _, ok := s.remote[p]; ok {
			return Entry{Participant: p, Kind: KindRemote}
		}
		return Entry{Participant: p, Kind: KindManaged}
	})
}

// Updates streams the merged roster: the current value first, then changes.
// Intermediate states may be skipped by a slow reader.
func (s *Store) Updates(ctx context.Context) <-chan []Participant {
	return s.merged.Subscribe(ctx)
}

func (s *Store) union() []Participant {
	all := make([]Participant, 0, len(s.managed)+len(s.remote))
	all = append(all, lo.Keys(s.managed)...)
	all = append(all, lo.Keys(s.remote)...)
	return sorted(lo.Uniq(all))
}

// publish must be called with mu held so observers see mutations in order.
func (s *Store) publish() { s.merged.Publish(s.union()) }

func sorted(ps []Participant) []Participant {
	sort.Slice(ps, func(i, j int) bool { return less(ps[i], ps[j]) })
	return ps
}
