package database

import (
	"flag"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrUnknownBackend = errors.New("unknown database backend")
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

var Backends = []string{BackendMemory, BackendMongo, BackendBolt, BackendRedis}

type Database interface {
	SaveObject(bucket string, key string, object any) error
	GetObject(bucket string, key string, object any) error
	Close() error
}

type Config struct {
	Backend       string        `yaml:"backend"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	BoltPath      string        `yaml:"bolt_path"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisTTL      time.Duration `yaml:"redis_ttl"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Backend, "database.backend", BackendMongo, "Storage backend for sortings: memory, mongo, bolt or redis.")
	f.StringVar(&cfg.MongoURI, "database.mongo-uri", "", "MongoDB connection URI.")
	f.StringVar(&cfg.MongoDatabase, "database.mongo-database", "boto_sort", "MongoDB database name.")
	f.StringVar(&cfg.BoltPath, "database.bolt-path", "boto_sort.db", "Path of the bolt database file.")
	f.StringVar(&cfg.RedisAddr, "database.redis-addr", "localhost:6379", "Redis server address.")
	f.DurationVar(&cfg.RedisTTL, "database.redis-ttl", 0, "Expiry of stored sortings in redis, 0 keeps them forever.")
}

func (cfg *Config) Validate() error {
	for _, b := range Backends {
		if cfg.Backend == b {
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
}

// New opens the backend selected by cfg.
func New(cfg Config) (Database, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewInMemoryDatabase(), nil
	case BackendMongo:
		return NewMongoDatabase(cfg.MongoURI, cfg.MongoDatabase)
	case BackendBolt:
		return NewBoltDatabase(cfg.BoltPath)
	case BackendRedis:
		return NewRedisDatabase(cfg.RedisAddr, cfg.RedisTTL)
	}
	return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
}
