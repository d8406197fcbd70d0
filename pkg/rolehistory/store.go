package rolehistory

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketRoleHistory = []byte("role-history")

// Store is the durable side of RoleHistory: one bbolt file,
// role-history.db, one bucket, keyed by host followed by the role id as a
// 4-byte big-endian suffix so a single host's entries sort together.
type Store struct {
	db *bolt.DB
}

// NewStore opens (creating if absent) role-history.db under dataDir.
func NewStore(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "role-history.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open role history store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRoleHistory)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create role history bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func storeKey(host string, roleID int) []byte {
	key := make([]byte, len(host)+1+4)
	copy(key, host)
	key[len(host)] = 0
	binary.BigEndian.PutUint32(key[len(host)+1:], uint32(roleID))
	return key
}

// Save upserts one NodeInstance record.
func (s *Store) Save(ni NodeInstance) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRoleHistory)
		data, err := json.Marshal(ni)
		if err != nil {
			return err
		}
		return b.Put(storeKey(ni.Host, ni.RoleID), data)
	})
}

// LoadAll returns every persisted NodeInstance, for an idempotent reload
// at startup.
func (s *Store) LoadAll() ([]NodeInstance, error) {
	var out []NodeInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRoleHistory)
		return b.ForEach(func(k, v []byte) error {
			var ni NodeInstance
			if err := json.Unmarshal(v, &ni); err != nil {
				return fmt.Errorf("decode role history entry: %w", err)
			}
			out = append(out, ni)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
