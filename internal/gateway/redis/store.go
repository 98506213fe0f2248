package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tracker/internal/gateway"
)

// Store keeps one hash per record kind under "<prefix>:<kind>". Each hash
// field is a record id and each value is the JSON encoded field map.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Options mirrors the env configuration for a single-node client.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func New(opts Options) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(rdb, opts.Prefix)
}

// NewWithClient works with both single and cluster clients.
func NewWithClient(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "tracker"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(kind gateway.Kind) string {
	return s.prefix + ":" + string(kind)
}

func (s *Store) FetchAll(ctx context.Context, kind gateway.Kind) ([]gateway.Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	raw, err := s.client.HGetAll(ctx, s.key(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.key(kind), err)
	}
	out := make([]gateway.Record, 0, len(raw))
	for id, v := range raw {
		r, err := decode(kind, id, v)
		if err != nil {
			// Keep the id so the ledger can report and skip it.
			r = gateway.Record{Kind: kind, ID: id}
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, r gateway.Record) error {
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	v, err := encode(r)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(r.Kind), r.ID, v).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", s.key(r.Kind), r.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kind gateway.Kind, id string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := s.client.HDel(ctx, s.key(kind), id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("hdel %s %s: %w", s.key(kind), id, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func encode(r gateway.Record) (string, error) {
	b, err := json.Marshal(r.Fields)
	if err != nil {
		return "", fmt.Errorf("encode %s %s: %w", r.Kind, r.ID, err)
	}
	return string(b), nil
}

func decode(kind gateway.Kind, id, v string) (gateway.Record, error) {
	fields := map[string]string{}
	if err := json.Unmarshal([]byte(v), &fields); err != nil {
		return gateway.Record{}, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return gateway.Record{Kind: kind, ID: id, Fields: fields}, nil
}
