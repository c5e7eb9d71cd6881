package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

type RedisDatabase struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDatabase(addr string, ttl time.Duration) (*RedisDatabase, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", addr)
	}
	return &RedisDatabase{client: client, ttl: ttl}, nil
}

func redisKey(bucket, key string) string {
	return bucket + ":" + key
}

func (db *RedisDatabase) SaveObject(bucket string, key string, object any) error {
	data, err := json.Marshal(object)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", bucket, key)
	}
	err = db.client.Set(context.Background(), redisKey(bucket, key), data, db.ttl).Err()
	return errors.Wrapf(err, "saving %s/%s", bucket, key)
}

func (db *RedisDatabase) GetObject(bucket string, key string, object any) error {
	data, err := db.client.Get(context.Background(), redisKey(bucket, key)).Bytes()
	if err == redis.Nil {
		return ErrKeyNotFound
	} else if err != nil {
		return errors.Wrapf(err, "loading %s/%s", bucket, key)
	}
	return errors.Wrapf(json.Unmarshal(data, object), "decoding %s/%s", bucket, key)
}

func (db *RedisDatabase) Close() error {
	return db.client.Close()
}
