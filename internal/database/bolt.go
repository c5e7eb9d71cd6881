package database

import (
	"time"

	"go.etcd.io/bbolt"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type BoltDatabase struct {
	db *bbolt.DB
}

func NewBoltDatabase(path string) (*BoltDatabase, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt database %s", path)
	}
	return &BoltDatabase{db: db}, nil
}

func (db *BoltDatabase) SaveObject(bucket string, key string, object any) error {
	data, err := json.Marshal(object)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", bucket, key)
	}

	return db.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func (db *BoltDatabase) GetObject(bucket string, key string, object any) error {
	return db.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrKeyNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return ErrKeyNotFound
		}
		// data is only valid inside the transaction
		return errors.Wrapf(json.Unmarshal(data, object), "decoding %s/%s", bucket, key)
	})
}

func (db *BoltDatabase) Close() error {
	return db.db.Close()
}
