// Package snapshot is the local, on-disk cache of the previous crawl's
// graph-store read: dbResourcesMap and dbRelationshipsMap (spec §4.8), plus
// a sorted mirror of the inferencer's identifier lookup map for debug
// dumps. Adapted from the teacher's MVCC observation store: a bbolt-backed
// durable store paired with an in-memory btree index, but here the
// "revision" concept collapses to "the result of the most recent crawl"
// rather than a multi-version history, since the delta engine only ever
// needs the single most recent snapshot.
package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/SunStone-Secure-LLC/workload-discovery-on-aws/internal/resource"
)

var (
	bucketResources     = []byte("resources")
	bucketRelationships = []byte("relationships")
	bucketMeta          = []byte("meta")
)

// IdentifierEntry is one row of the sorted identifier-lookup mirror used
// for deterministic debug dumps of resourceIdentifierToIdMap.
type IdentifierEntry struct {
	CompositeKey string
	ResourceID   string
}

// Less orders entries by composite key for btree iteration.
func (e *IdentifierEntry) Less(than *IdentifierEntry) bool {
	return e.CompositeKey < than.CompositeKey
}

// Store is the local pre-crawl snapshot cache.
type Store struct {
	mu    sync.RWMutex
	db    *bbolt.DB
	index *btree.BTreeG[*IdentifierEntry]
}

// Open opens (or creates) the snapshot store under dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "snapshot.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketResources, bucketRelationships, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: init buckets: %w", err)
	}

	return &Store{
		db: db,
		index: btree.NewG[*IdentifierEntry](32, func(a, b *IdentifierEntry) bool {
			return a.CompositeKey < b.CompositeKey
		}),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Resources returns dbResourcesMap: id -> the projected resource as it was
// last persisted.
func (s *Store) Resources() (map[string]resource.Projected, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]resource.Projected)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketResources).ForEach(func(k, v []byte) error {
			var p resource.Projected
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("snapshot: unmarshal resource %s: %w", k, err)
			}
			out[string(k)] = p
			return nil
		})
	})
	return out, err
}

// ReplaceResources overwrites the resource snapshot with the reconciled
// working set, keyed by resource id.
func (s *Store) ReplaceResources(resources map[string]resource.Projected) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketResources)
		if err := clearBucket(tx, bucket, bucketResources); err != nil {
			return err
		}
		bucket = tx.Bucket(bucketResources)
		for id, p := range resources {
			v, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("snapshot: marshal resource %s: %w", id, err)
			}
			if err := bucket.Put([]byte(id), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Relationships returns dbRelationshipsMap: "(source,label,target)" -> edge.
func (s *Store) Relationships() (map[string]resource.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]resource.Relationship)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRelationships).ForEach(func(k, v []byte) error {
			var rel resource.Relationship
			if err := json.Unmarshal(v, &rel); err != nil {
				return fmt.Errorf("snapshot: unmarshal relationship %s: %w", k, err)
			}
			out[string(k)] = rel
			return nil
		})
	})
	return out, err
}

// ReplaceRelationships overwrites the relationship snapshot.
func (s *Store) ReplaceRelationships(edges map[string]resource.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRelationships)
		if err := clearBucket(tx, bucket, bucketRelationships); err != nil {
			return err
		}
		bucket = tx.Bucket(bucketRelationships)
		for key, rel := range edges {
			v, err := json.Marshal(rel)
			if err != nil {
				return fmt.Errorf("snapshot: marshal relationship %s: %w", key, err)
			}
			if err := bucket.Put([]byte(key), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearBucket(tx *bbolt.Tx, bucket *bbolt.Bucket, name []byte) error {
	if err := tx.DeleteBucket(name); err != nil {
		return err
	}
	_, err := tx.CreateBucket(name)
	return err
}

// IndexIdentifiers loads the sorted identifier-lookup mirror used for
// deterministic debug dumps; it is rebuilt from scratch every crawl, never
// persisted.
func (s *Store) IndexIdentifiers(entries map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.Clear(false)
	for k, id := range entries {
		s.index.ReplaceOrInsert(&IdentifierEntry{CompositeKey: k, ResourceID: id})
	}
}

// AscendIdentifiers iterates the identifier mirror in sorted key order.
func (s *Store) AscendIdentifiers(visit func(*IdentifierEntry) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.index.Ascend(visit)
}

// RelationshipKey builds the composite key used by ReplaceRelationships /
// Relationships: "(source,label,target)" per spec §3's edge-uniqueness
// invariant.
func RelationshipKey(r resource.Relationship) string {
	return fmt.Sprintf("%s|%s|%s", r.Source, r.Label, r.Target)
}
