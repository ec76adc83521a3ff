package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-favorites/internal/models"
	"github.com/kjstillabower/weather-favorites/internal/observability"
	"github.com/kjstillabower/weather-favorites/internal/storage"
)

// DefaultKey is the storage key holding the serialized favorites.
const DefaultKey = "favoriteCities"

// Enricher starts asynchronous enrichment for a newly added or selected favorite.
// Implementations must not block.
type Enricher interface {
	TriggerWeather(city models.CityRecord)
	TriggerHourly(city models.CityRecord)
}

// Store is the favorites state container. All writes go through one read-modify-write
// path that replaces the whole sequence and persists it under the same lock, so the
// persisted value always matches the latest in-memory state.
type Store struct {
	mu        sync.Mutex
	favorites []models.FavoriteCity
	kv        storage.Store
	key       string
	logger    *zap.Logger
	enricher  Enricher

	subsMu  sync.Mutex
	subs    map[int]func([]models.FavoriteCity)
	nextSub int
}

// Open loads favorites from kv under key. Corrupt stored data is discarded and the store
// starts empty; only a backend read failure is returned as an error.
func Open(ctx context.Context, kv storage.Store, key string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		kv:     kv,
		key:    key,
		logger: logger,
		subs:   make(map[int]func([]models.FavoriteCity)),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SetEnricher wires the enrichment facet. A nil enricher disables triggers.
func (s *Store) SetEnricher(e Enricher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enricher = e
}

func (s *Store) load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	if !ok {
		observability.FavoritesCount.Set(0)
		return nil
	}

	favs, reason, err := decodeFavorites(raw)
	if err != nil {
		s.logger.Warn("invalid stored favorites, resetting",
			zap.String("key", s.key), zap.String("reason", reason), zap.Error(err))
		observability.StoreResetsTotal.WithLabelValues(reason).Inc()
		if rmErr := s.kv.Remove(ctx, s.key); rmErr != nil {
			s.logger.Error("remove corrupt favorites", zap.String("key", s.key), zap.Error(rmErr))
		}
		s.favorites = nil
		observability.FavoritesCount.Set(0)
		return nil
	}

	s.favorites = dedupe(favs, s.logger)
	observability.FavoritesCount.Set(float64(len(s.favorites)))
	s.logger.Debug("favorites loaded", zap.Int("count", len(s.favorites)))
	return nil
}

// decodeFavorites parses a stored value. reason is "malformed" for unparseable data and
// "not_array" for valid JSON that is not a sequence.
func decodeFavorites(raw string) ([]models.FavoriteCity, string, error) {
	var probe any
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, "malformed", err
	}
	if _, ok := probe.([]any); !ok {
		return nil, "not_array", fmt.Errorf("stored favorites are %T, want array", probe)
	}
	var favs []models.FavoriteCity
	if err := json.Unmarshal([]byte(raw), &favs); err != nil {
		return nil, "malformed", err
	}
	return favs, "", nil
}

// dedupe keeps the first favorite for each name.
func dedupe(favs []models.FavoriteCity, logger *zap.Logger) []models.FavoriteCity {
	seen := make(map[string]struct{}, len(favs))
	out := make([]models.FavoriteCity, 0, len(favs))
	for _, f := range favs {
		if _, dup := seen[f.Name]; dup {
			logger.Warn("duplicate stored favorite dropped", zap.String("city", f.Name))
			continue
		}
		seen[f.Name] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Snapshot returns a deep copy of the current favorites in display order.
func (s *Store) Snapshot() []models.FavoriteCity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.favorites)
}

// Get returns a copy of the favorite named name.
func (s *Store) Get(name string) (models.FavoriteCity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.favorites, name); i >= 0 {
		return s.favorites[i].Clone(), true
	}
	return models.FavoriteCity{}, false
}

// Subscribe registers fn to receive a snapshot after every replacement. Snapshots are
// delivered outside the store lock, so two rapid updates may arrive out of order.
func (s *Store) Subscribe(fn func([]models.FavoriteCity)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Update replaces the favorites with fn's result and persists the whole sequence.
// fn receives a copy it may modify freely. The in-memory replacement stands even when
// persisting fails; the persistence error is returned.
func (s *Store) Update(ctx context.Context, fn func([]models.FavoriteCity) []models.FavoriteCity) error {
	_, err := s.update(ctx, func(cur []models.FavoriteCity) ([]models.FavoriteCity, bool) {
		return fn(cur), true
	})
	return err
}

// update is the single write path. fn reports whether it changed anything; unchanged
// sequences are neither stored nor persisted.
func (s *Store) update(ctx context.Context, fn func([]models.FavoriteCity) ([]models.FavoriteCity, bool)) (bool, error) {
	s.mu.Lock()
	next, changed := fn(cloneAll(s.favorites))
	if !changed {
		s.mu.Unlock()
		return false, nil
	}
	s.favorites = next
	err := s.persistLocked(ctx)
	snapshot := cloneAll(next)
	s.mu.Unlock()

	observability.FavoritesCount.Set(float64(len(snapshot)))
	s.notify(snapshot)
	return true, err
}

func (s *Store) persistLocked(ctx context.Context) error {
	favs := s.favorites
	if favs == nil {
		favs = []models.FavoriteCity{}
	}
	data, err := json.Marshal(favs)
	if err != nil {
		observability.StorePersistsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		observability.StorePersistsTotal.WithLabelValues("error").Inc()
		s.logger.Error("persist favorites", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("persist favorites: %w", err)
	}
	observability.StorePersistsTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *Store) notify(snapshot []models.FavoriteCity) {
	s.subsMu.Lock()
	fns := make([]func([]models.FavoriteCity), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(cloneAll(snapshot))
	}
}

func (s *Store) currentEnricher() Enricher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enricher
}

func indexOf(favs []models.FavoriteCity, name string) int {
	for i := range favs {
		if favs[i].Name == name {
			return i
		}
	}
	return -1
}

func cloneAll(favs []models.FavoriteCity) []models.FavoriteCity {
	if favs == nil {
		return nil
	}
	out := make([]models.FavoriteCity, len(favs))
	for i := range favs {
		out[i] = favs[i].Clone()
	}
	return out
}
