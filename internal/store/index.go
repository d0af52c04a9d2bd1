package store

import (
	"encoding/json"
	"io/fs"
	"time"

	bolt "go.etcd.io/bbolt"

	"promai/pkg/types"
)

const (
	indexFile   = ".index.bolt"
	metasBucket = "metas"
)

// metaIndex caches listing metadata keyed by id, invalidated by the
// record's size and modification time.
type metaIndex struct {
	db *bolt.DB
}

type indexEntry struct {
	Meta    types.ConversationMeta `json:"meta"`
	ModNano int64                  `json:"mod_nano"`
	Size    int64                  `json:"size"`
}

func openIndex(path string) (*metaIndex, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(metasBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &metaIndex{db: db}, nil
}

func (ix *metaIndex) Close() error { return ix.db.Close() }

// get returns the cached meta when it still matches fi.
func (ix *metaIndex) get(id string, fi fs.FileInfo) (types.ConversationMeta, bool) {
	var (
		meta types.ConversationMeta
		hit  bool
	)
	_ = ix.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(metasBucket)).Get([]byte(id))
		if len(v) == 0 {
			return nil
		}
		var e indexEntry
		if err := json.Unmarshal(v, &e); err != nil {
			// Skip malformed entries; the record is re-read.
			return nil
		}
		if e.Size == fi.Size() && e.ModNano == fi.ModTime().UnixNano() {
			meta, hit = e.Meta, true
		}
		return nil
	})
	return meta, hit
}

func (ix *metaIndex) put(id string, fi fs.FileInfo, meta types.ConversationMeta) error {
	enc, err := json.Marshal(indexEntry{Meta: meta, ModNano: fi.ModTime().UnixNano(), Size: fi.Size()})
	if err != nil {
		return err
	}
	return ix.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(metasBucket)).Put([]byte(id), enc)
	})
}

func (ix *metaIndex) delete(id string) {
	_ = ix.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(metasBucket)).Delete([]byte(id))
	})
}
