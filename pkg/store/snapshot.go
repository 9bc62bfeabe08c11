package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const jobsBucket = "jobs"

// SnapshotStore persists the job map across restarts.
type SnapshotStore interface {
	// Save replaces the persisted snapshot with the given jobs.
	Save(jobs []Job) error

	// Load returns all persisted jobs.
	Load() ([]Job, error)

	// Close releases underlying resources.
	Close() error
}

// boltSnapshotStore is a bbolt-backed SnapshotStore.
type boltSnapshotStore struct {
	db *bolt.DB
}

// NewBoltSnapshotStore opens (or creates) a bbolt snapshot database at
// the given path.
//
// Parameters:
//   - dbPath: Path to the database file (parent directories are created)
//
// Returns:
//   - SnapshotStore: The persistent store
//   - error: If the database cannot be opened
func NewBoltSnapshotStore(dbPath string) (SnapshotStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(jobsBucket))
		return err
	})
	if err != nil {
		_ = db.Close() // nolint:errcheck
		return nil, fmt.Errorf("failed to create jobs bucket: %w", err)
	}

	return &boltSnapshotStore{db: db}, nil
}

// Save replaces the persisted snapshot with the given jobs.
func (s *boltSnapshotStore) Save(jobs []Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(jobsBucket)); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("failed to reset jobs bucket: %w", err)
		}

		bucket, err := tx.CreateBucket([]byte(jobsBucket))
		if err != nil {
			return fmt.Errorf("failed to create jobs bucket: %w", err)
		}

		for i := range jobs {
			data, err := json.Marshal(&jobs[i])
			if err != nil {
				return fmt.Errorf("failed to marshal job %s: %w", jobs[i].ID, err)
			}
			if err := bucket.Put([]byte(jobs[i].ID), data); err != nil {
				return fmt.Errorf("failed to store job %s: %w", jobs[i].ID, err)
			}
		}
		return nil
	})
}

// Load returns all persisted jobs.
func (s *boltSnapshotStore) Load() ([]Job, error) {
	var jobs []Job

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(jobsBucket))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var job Job
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("failed to unmarshal job %s: %w", string(k), err)
			}
			jobs = append(jobs, job)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

// Close closes the underlying database.
func (s *boltSnapshotStore) Close() error {
	return s.db.Close()
}

// memorySnapshotStore is an in-memory SnapshotStore for testing.
type memorySnapshotStore struct {
	mu   sync.Mutex
	jobs []Job
}

// NewMemorySnapshotStore creates an in-memory SnapshotStore.
func NewMemorySnapshotStore() SnapshotStore {
	return &memorySnapshotStore{}
}

func (s *memorySnapshotStore) Save(jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append([]Job(nil), jobs...)
	return nil
}

func (s *memorySnapshotStore) Load() ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Job(nil), s.jobs...), nil
}

func (s *memorySnapshotStore) Close() error {
	return nil
}
