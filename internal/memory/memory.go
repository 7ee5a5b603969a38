package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-senate-sim/internal/core"
)

// Item is one remembered event snapshot. It is owned by exactly one
// store; forgetting it never touches the originating event.
type Item struct {
	ID              string
	EventType       core.EventType
	Source          string
	Target          string
	Content         map[string]interface{}
	Timestamp       time.Time
	Importance      float64 // [0, 1]
	DecayRate       float64 // [0, 1]
	Tags            []string
	EmotionalImpact float64 // [-1, 1]
}

// NewItem snapshots ev into a memory item. Tags are auto-populated with
// the event type and source/target markers.
func NewItem(ev core.Event, importance float64) *Item {
	content := make(map[string]interface{}, len(ev.Payload))
	for k, v := range ev.Payload {
		content[k] = v
	}
	it := &Item{
		ID:         uuid.NewString(),
		EventType:  ev.Type,
		Source:     ev.Source,
		Target:     ev.Target,
		Content:    content,
		Timestamp:  ev.Timestamp,
		Importance: clamp01(importance),
		DecayRate:  0.1,
		Tags:       []string{string(ev.Type)},
	}
	if ev.Source != "" {
		it.Tags = append(it.Tags, "source:"+ev.Source)
	}
	if ev.Target != "" {
		it.Tags = append(it.Tags, "target:"+ev.Target)
	}
	return it
}

// ToDict serializes the item as a plain nested mapping with RFC-3339
// timestamps, the shape the persistence collaborator consumes.
func (it *Item) ToDict() map[string]interface{} {
	tags := make([]interface{}, len(it.Tags))
	for i, t := range it.Tags {
		tags[i] = t
	}
	return map[string]interface{}{
		"id":               it.ID,
		"event_type":       string(it.EventType),
		"source":           it.Source,
		"target":           it.Target,
		"content":          it.Content,
		"timestamp":        it.Timestamp.Format(time.RFC3339Nano),
		"importance":       it.Importance,
		"decay_rate":       it.DecayRate,
		"tags":             tags,
		"emotional_impact": it.EmotionalImpact,
	}
}

// ItemFromDict is the inverse of ToDict.
func ItemFromDict(d map[string]interface{}) (*Item, error) {
	it := &Item{
		ID:              str(d["id"]),
		EventType:       core.EventType(str(d["event_type"])),
		Source:          str(d["source"]),
		Target:          str(d["target"]),
		Importance:      num(d["importance"]),
		DecayRate:       num(d["decay_rate"]),
		EmotionalImpact: num(d["emotional_impact"]),
	}
	if it.ID == "" {
		return nil, fmt.Errorf("memory: item dict missing id")
	}
	ts, err := time.Parse(time.RFC3339Nano, str(d["timestamp"]))
	if err != nil {
		return nil, fmt.Errorf("memory: item %s bad timestamp: %w", it.ID, err)
	}
	it.Timestamp = ts
	if c, ok := d["content"].(map[string]interface{}); ok {
		it.Content = c
	} else {
		it.Content = make(map[string]interface{})
	}
	if raw, ok := d["tags"].([]interface{}); ok {
		for _, t := range raw {
			it.Tags = append(it.Tags, str(t))
		}
	}
	return it, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RetentionPolicy names a consolidation ranking.
type RetentionPolicy string

const (
	RetainImportance RetentionPolicy = "importance"
	RetainRecency    RetentionPolicy = "recency"
	RetainBoth       RetentionPolicy = "both"
)

// Query selects memories; zero-valued fields match everything. All
// supplied criteria must match.
type Query struct {
	Type   core.EventType
	Source string
	Target string
	Since  time.Time
	Until  time.Time
}

// Store is a per-senator append-only event memory with bounded
// retention. All methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	items map[string]*Item
	order []string
}

// NewStore creates an empty memory store.
func NewStore() *Store {
	return &Store{items: make(map[string]*Item)}
}

// Add stores item and returns its id, assigning one if absent.
func (s *Store) Add(item *Item) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
	return item.ID
}

// AddEvent snapshots ev with the given importance and stores it.
func (s *Store) AddEvent(ev core.Event, importance float64) string {
	return s.Add(NewItem(ev, importance))
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

// Len returns the number of stored memories.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Retrieve returns memories matching every supplied criterion, in
// insertion order, filtered to importance >= minImportance and
// truncated to limit when limit > 0.
func (s *Store) Retrieve(q Query, limit int, minImportance float64) []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Item
	for _, id := range s.order {
		it := s.items[id]
		if !matches(it, q) || it.Importance < minImportance {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func matches(it *Item, q Query) bool {
	if q.Type != "" && it.EventType != q.Type {
		return false
	}
	if q.Source != "" && it.Source != q.Source {
		return false
	}
	if q.Target != "" && it.Target != q.Target {
		return false
	}
	if !q.Since.IsZero() && it.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && it.Timestamp.After(q.Until) {
		return false
	}
	return true
}

// EventsByType returns up to limit memories of the given type.
func (s *Store) EventsByType(t core.EventType, limit int) []*Item {
	return s.Retrieve(Query{Type: t}, limit, 0)
}

// EventsBySource returns up to limit memories originated by source.
func (s *Store) EventsBySource(source string, limit int) []*Item {
	return s.Retrieve(Query{Source: source}, limit, 0)
}

// EventsByTarget returns up to limit memories aimed at target.
func (s *Store) EventsByTarget(target string, limit int) []*Item {
	return s.Retrieve(Query{Target: target}, limit, 0)
}

// Recent returns the limit most recently stored memories, oldest first.
func (s *Store) Recent(limit int) []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if limit > 0 && len(s.order) > limit {
		start = len(s.order) - limit
	}
	out := make([]*Item, 0, len(s.order)-start)
	for _, id := range s.order[start:] {
		out = append(out, s.items[id])
	}
	return out
}

// Forget removes a memory. Idempotent: returns false if absent.
func (s *Store) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forgetLocked(id)
}

func (s *Store) forgetLocked(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// SetImportance updates a memory's importance, clamped to [0, 1].
func (s *Store) SetImportance(id string, importance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return false
	}
	it.Importance = clamp01(importance)
	return true
}

// Tag appends a tag to a memory if not already present.
func (s *Store) Tag(id, tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return false
	}
	for _, t := range it.Tags {
		if t == tag {
			return true
		}
	}
	it.Tags = append(it.Tags, tag)
	return true
}

// Consolidate prunes the store down to maxMemories, keeping the items
// the policy ranks highest, and returns the count removed. A store at
// or under capacity is left untouched.
func (s *Store) Consolidate(maxMemories int, policy RetentionPolicy) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxMemories <= 0 || len(s.order) <= maxMemories {
		return 0
	}

	now := time.Now()
	maxAge := 1.0
	for _, id := range s.order {
		if age := now.Sub(s.items[id].Timestamp).Seconds(); age > maxAge {
			maxAge = age
		}
	}
	score := func(it *Item) float64 {
		switch policy {
		case RetainRecency:
			return float64(it.Timestamp.UnixNano())
		case RetainBoth:
			recency := 1 - now.Sub(it.Timestamp).Seconds()/maxAge
			return 0.7*it.Importance + 0.3*recency
		default: // RetainImportance
			return it.Importance
		}
	}

	ranked := make([]string, len(s.order))
	copy(ranked, s.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(s.items[ranked[i]]) > score(s.items[ranked[j]])
	})

	removed := 0
	for _, id := range ranked[maxMemories:] {
		if s.forgetLocked(id) {
			removed++
		}
	}
	return removed
}

// ToDict serializes the whole store for the persistence collaborator.
func (s *Store) ToDict() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]interface{}, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id].ToDict())
	}
	return map[string]interface{}{"items": items}
}

// FromDict replaces the store's contents from a ToDict snapshot.
func (s *Store) FromDict(d map[string]interface{}) error {
	raw, ok := d["items"].([]interface{})
	if !ok {
		return fmt.Errorf("memory: snapshot missing items list")
	}
	items := make(map[string]*Item, len(raw))
	order := make([]string, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return fmt.Errorf("memory: snapshot item is not a mapping")
		}
		it, err := ItemFromDict(m)
		if err != nil {
			return err
		}
		items[it.ID] = it
		order = append(order, it.ID)
	}
	s.mu.Lock()
	s.items = items
	s.order = order
	s.mu.Unlock()
	return nil
}
