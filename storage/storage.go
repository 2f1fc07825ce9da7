// Package storage is a small key-value layer over goleveldb, used for ledger
// snapshots and signaling records.
package storage

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("storage: not found")

const bloomBitsPerKey = 10

// DB is a goleveldb database.
type DB struct {
	db *leveldb.DB
}

// Open opens or creates the database at path, recovering it if the manifest
// is corrupted.
func Open(path string) (*DB, error) {
	o := &opt.Options{Filter: filter.NewBloomFilter(bloomBitsPerKey)}
	db, err := leveldb.OpenFile(path, o)
	if lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, o)
	}
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

// OpenMem opens a database kept in memory.
func OpenMem() (*DB, error) {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Put(key, value []byte) error {
	return d.db.Put(key, value, nil)
}

func (d *DB) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (d *DB) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

func (d *DB) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

// Update applies every operation recorded by fn atomically.
func (d *DB) Update(fn func(b *leveldb.Batch) error) error {
	b := new(leveldb.Batch)
	if err := fn(b); err != nil {
		return err
	}
	return d.db.Write(b, nil)
}

// Scan calls fn for every key with prefix in key order. fn must copy key and
// value if it keeps them.
func (d *DB) Scan(prefix []byte, fn func(key, value []byte) error) error {
	it := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (d *DB) Close() error {
	return d.db.Close()
}
