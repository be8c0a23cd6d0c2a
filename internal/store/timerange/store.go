// Package timerange persists named date ranges as a JSON object keyed by
// range name.
package timerange

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/daterange"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store"
)

const metricName = "timeranges"

// record is the on-disk value; the name is the key.
type record struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Timestamp string `json:"timestamp"`
}

type Store struct {
	path string
	log  *slog.Logger
	now  func() time.Time

	mu sync.Mutex
}

func New(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, log: log, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// List returns range names in lexical order.
func (s *Store) List(ctx context.Context) (names []string, err error) {
	defer s.observe(ctx, "list", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	ranges, err := s.load()
	if err != nil {
		return nil, err
	}
	names = make([]string, 0, len(ranges))
	for n := range ranges {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Save validates the pair and stores it under name, replacing any existing
// range of that name. An invalid pair leaves the file untouched.
func (s *Store) Save(ctx context.Context, name, start, end string) (err error) {
	defer s.observe(ctx, "save", time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.InvalidArgument("name", "time range name must not be empty")
	}
	if _, _, err := daterange.Parse(start, end); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ranges, err := s.load()
	if err != nil {
		return err
	}
	ranges[name] = model.TimeRange{
		Name:      name,
		StartDate: strings.TrimSpace(start),
		EndDate:   strings.TrimSpace(end),
		Timestamp: s.now().UTC().Truncate(time.Second),
	}
	return s.save(ranges)
}

func (s *Store) Get(ctx context.Context, name string) (tr model.TimeRange, err error) {
	defer s.observe(ctx, "get", time.Now(), &err)
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	ranges, err := s.load()
	if err != nil {
		return model.TimeRange{}, err
	}
	tr, ok := ranges[name]
	if !ok {
		return model.TimeRange{}, apperr.NotFound("time range", name)
	}
	return tr, nil
}

// Delete removes name and reports whether it existed.
func (s *Store) Delete(ctx context.Context, name string) (removed bool, err error) {
	defer s.observe(ctx, "delete", time.Now(), &err)
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	ranges, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := ranges[name]; !ok {
		return false, nil
	}
	delete(ranges, name)
	return true, s.save(ranges)
}

// Clear removes every range.
func (s *Store) Clear(ctx context.Context) (err error) {
	defer s.observe(ctx, "clear", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(map[string]model.TimeRange{})
}

// caller holds s.mu
func (s *Store) load() (map[string]model.TimeRange, error) {
	out := map[string]model.TimeRange{}
	raw, err := store.ReadFile(s.path)
	if err != nil || raw == nil {
		return out, err
	}
	var doc map[string]record
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Corrupt(s.path, "decode: %v", err)
	}
	for key, r := range doc {
		name := strings.TrimSpace(key)
		if name == "" {
			return nil, apperr.Corrupt(s.path, "range with empty name")
		}
		if _, dup := out[name]; dup {
			return nil, apperr.Corrupt(s.path, "range %q appears twice", name)
		}
		if _, _, err := daterange.Parse(r.StartDate, r.EndDate); err != nil {
			return nil, apperr.Corrupt(s.path, "range %q: %v", name, err)
		}
		ts, err := store.ParseTimestamp(r.Timestamp)
		if err != nil {
			return nil, apperr.Corrupt(s.path, "range %q: timestamp: %v", name, err)
		}
		out[name] = model.TimeRange{Name: name, StartDate: r.StartDate, EndDate: r.EndDate, Timestamp: ts}
	}
	return out, nil
}

// caller holds s.mu
func (s *Store) save(ranges map[string]model.TimeRange) error {
	doc := make(map[string]record, len(ranges))
	for name, tr := range ranges {
		doc[name] = record{StartDate: tr.StartDate, EndDate: tr.EndDate, Timestamp: store.FormatTimestamp(tr.Timestamp)}
	}
	return store.WriteJSON(s.path, doc)
}

func (s *Store) observe(ctx context.Context, op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	observability.ObserveStoreOp(metricName, op, *errp, elapsed.Seconds())
	if *errp != nil {
		s.log.DebugContext(ctx, "time range store op failed",
			"op", op, "path", s.path, "code", string(apperr.CodeOf(*errp)), "err", *errp)
		return
	}
	s.log.DebugContext(ctx, "time range store op", "op", op, "duration", elapsed)
}
