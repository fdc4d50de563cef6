package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Options struct {
	Backend         string
	FilePath        string
	SQLitePath      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	TTL             time.Duration
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the backend named in opts. The returned closer releases any
// connection the backend holds.
func Open(ctx context.Context, opts Options) (KeyValue, io.Closer, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file":
		s, err := NewFileStore(opts.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "sqlite":
		s, err := NewSQLiteStore(opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		client, err := ConnectRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client, opts.TTL), client, nil
	case "mongo":
		db, err := ConnectMongoDB(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		s := NewMongoStore(db, opts.MongoCollection)
		if err := s.CreateIndexes(ctx); err != nil {
			disconnect(db.Client())
			return nil, nil, err
		}
		return s, mongoCloser{db}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
