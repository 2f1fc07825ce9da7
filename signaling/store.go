package signaling

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/luca-patrignani/mental-ledger/storage"
)

// Store persists offer records. Implementations must be safe for concurrent
// use.
type Store interface {
	Put(r Record) error
	// Get returns ErrNotFound for a missing or expired record.
	Get(connectionID string) (Record, error)
	Delete(connectionID string) error
	// List returns every live record ordered by creation time.
	List() ([]Record, error)
}

func sortRecords(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CreatedAt != rs[j].CreatedAt {
			return rs[i].CreatedAt < rs[j].CreatedAt
		}
		return rs[i].ConnectionID < rs[j].ConnectionID
	})
}

// MemoryStore keeps records in a go-cache. Records expire ttl after their
// last write; a zero ttl keeps them forever.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{c: gocache.New(ttl, time.Minute)}
}

func (m *MemoryStore) Put(r Record) error {
	m.c.Set(r.ConnectionID, r.clone(), gocache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) Get(connectionID string) (Record, error) {
	v, ok := m.c.Get(connectionID)
	if !ok {
		return Record{}, ErrNotFound
	}
	return v.(Record).clone(), nil
}

func (m *MemoryStore) Delete(connectionID string) error {
	m.c.Delete(connectionID)
	return nil
}

func (m *MemoryStore) List() ([]Record, error) {
	items := m.c.Items()
	out := make([]Record, 0, len(items))
	for _, it := range items {
		out = append(out, it.Object.(Record).clone())
	}
	sortRecords(out)
	return out, nil
}

const offerPrefix = "offer/"

// LevelStore keeps records in goleveldb. Records older than ttl, measured
// from CreatedAt, are treated as absent and removed lazily.
type LevelStore struct {
	db  *storage.DB
	ttl time.Duration
	now func() time.Time
}

func NewLevelStore(db *storage.DB, ttl time.Duration) *LevelStore {
	return &LevelStore{db: db, ttl: ttl, now: time.Now}
}

func (l *LevelStore) expired(r Record) bool {
	return l.ttl > 0 && l.now().Sub(time.UnixMilli(r.CreatedAt)) > l.ttl
}

func (l *LevelStore) Put(r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return l.db.Put([]byte(offerPrefix+r.ConnectionID), b)
}

func (l *LevelStore) Get(connectionID string) (Record, error) {
	b, err := l.db.Get([]byte(offerPrefix + connectionID))
	if errors.Is(err, storage.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, err
	}
	if l.expired(r) {
		l.Delete(connectionID)
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (l *LevelStore) Delete(connectionID string) error {
	return l.db.Delete([]byte(offerPrefix + connectionID))
}

func (l *LevelStore) List() ([]Record, error) {
	var (
		out   []Record
		stale []string
	)
	err := l.db.Scan([]byte(offerPrefix), func(_, value []byte) error {
		var r Record
		if err := json.Unmarshal(value, &r); err != nil {
			return err
		}
		if l.expired(r) {
			stale = append(stale, r.ConnectionID)
			return nil
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range stale {
		l.Delete(id)
	}
	sortRecords(out)
	return out, nil
}
