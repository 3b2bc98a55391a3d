// Package memory provides an in-process CAPA store. A single mutex is the
// writer boundary; WithTx snapshots the state and restores it when the
// callback fails, so a failed operation leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"capaflow/internal/domain/capa"
	"capaflow/internal/ports"
)

type state struct {
	records map[string]capa.CAPA
	order   []string
	seq     uint64
}

func (s state) clone() state {
	out := state{
		records: make(map[string]capa.CAPA, len(s.records)),
		order:   append([]string(nil), s.order...),
		seq:     s.seq,
	}
	for k, v := range s.records {
		out.records[k] = v.Clone()
	}
	return out
}

type Store struct {
	mu    sync.Mutex
	state state
}

var (
	_ ports.CAPARepository = (*Store)(nil)
	_ ports.UnitOfWork     = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{state: state{records: map[string]capa.CAPA{}}}
}

func (s *Store) inTx(ctx context.Context) bool {
	tx, ok := ports.TxFromContext(ctx).(*Store)
	return ok && tx == s
}

// lock takes the writer mutex unless ctx already runs inside this store's WithTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	if err := fn(ports.WithTxContext(ctx, s)); err != nil {
		s.state = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) NextNumber(ctx context.Context) (uint64, error) {
	defer s.lock(ctx)()
	s.state.seq++
	return s.state.seq, nil
}

func (s *Store) Create(ctx context.Context, record capa.CAPA) error {
	defer s.lock(ctx)()
	if _, exists := s.state.records[record.Number]; exists {
		return errors.New("capa " + record.Number + " already exists")
	}
	s.state.records[record.Number] = record.Clone()
	s.state.order = append(s.state.order, record.Number)
	return nil
}

func (s *Store) Get(ctx context.Context, number string) (capa.CAPA, error) {
	defer s.lock(ctx)()
	record, ok := s.state.records[number]
	if !ok {
		return capa.CAPA{}, capa.CAPANotFound(number)
	}
	return record.Clone(), nil
}

func (s *Store) List(ctx context.Context, filter ports.CAPAFilter) ([]capa.CAPA, error) {
	defer s.lock(ctx)()
	out := make([]capa.CAPA, 0, len(s.state.order))
	for _, number := range s.state.order {
		record := s.state.records[number]
		if matches(record, filter) {
			out = append(out, record.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) Save(ctx context.Context, record capa.CAPA) error {
	defer s.lock(ctx)()
	if _, ok := s.state.records[record.Number]; !ok {
		return capa.CAPANotFound(record.Number)
	}
	s.state.records[record.Number] = record.Clone()
	return nil
}

func (s *Store) Delete(ctx context.Context, number string) error {
	defer s.lock(ctx)()
	if _, ok := s.state.records[number]; !ok {
		return capa.CAPANotFound(number)
	}
	delete(s.state.records, number)
	for i, n := range s.state.order {
		if n == number {
			s.state.order = append(s.state.order[:i:i], s.state.order[i+1:]...)
			break
		}
	}
	return nil
}

func matches(c capa.CAPA, f ports.CAPAFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if c.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.OnlyActive && c.Status.IsTerminal() {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if a := strings.TrimSpace(f.Assignee); a != "" && c.Assignee != a {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(c.Number + "\n" + c.Title + "\n" + c.Description)
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}
