package database

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryDatabase keeps encoded copies of the saved objects, so callers
// never share maps or slices with each other.
type InMemoryDatabase struct {
	mtx     sync.RWMutex
	objects map[string][]byte
}

func NewInMemoryDatabase() *InMemoryDatabase {
	return &InMemoryDatabase{
		objects: make(map[string][]byte),
	}
}

func generateKey(bucket, key string) string {
	return fmt.Sprintf("%v_%v", bucket, key)
}

func (db *InMemoryDatabase) SaveObject(bucket string, key string, object any) error {
	data, err := json.Marshal(object)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", bucket, key)
	}

	db.mtx.Lock()
	defer db.mtx.Unlock()
	db.objects[generateKey(bucket, key)] = data
	return nil
}

func (db *InMemoryDatabase) GetObject(bucket string, key string, object any) error {
	objVal := reflect.ValueOf(object)
	if objVal.Kind() != reflect.Ptr || objVal.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}

	db.mtx.RLock()
	data, ok := db.objects[generateKey(bucket, key)]
	db.mtx.RUnlock()
	if !ok {
		return ErrKeyNotFound
	}

	return errors.Wrapf(json.Unmarshal(data, object), "decoding %s/%s", bucket, key)
}

func (db *InMemoryDatabase) Close() error {
	return nil
}
