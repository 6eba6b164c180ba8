// Package draft stores working-list editing sessions in Redis. A draft holds
// the members of one author or reviewer list while a user adds, removes and
// reorders them, until it is committed or expires.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"folio/api/internal/ordering"
	"folio/api/internal/store"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound = errors.New("draft not found or expired")
	ErrConflict = errors.New("draft modified concurrently")
)

type Draft struct {
	ID        string         `json:"id"`
	PaperID   int64          `json:"paperId"`
	List      store.ListKind `json:"list"`
	OwnerID   int64          `json:"ownerId"`
	Members   []store.Member `json:"members"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Edit runs fn against the draft's members as a working list and keeps the
// result only if fn succeeds.
func (d *Draft) Edit(fn func(*ordering.List[store.Member]) error) error {
	list, err := ordering.NewList(d.Members, store.MemberID)
	if err != nil {
		return err
	}
	if err := fn(list); err != nil {
		return err
	}
	d.Members = list.Items()
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// OrderVector returns the member ids in draft order.
func (d Draft) OrderVector() []int64 {
	return ordering.IDs(d.Members, store.MemberID)
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{client: client, prefix: "draft:", ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Create(ctx context.Context, d Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(d.ID), payload, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	if !ok {
		return fmt.Errorf("create draft %s: %w", d.ID, ErrConflict)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Draft, error) {
	return s.read(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, c getter, id string) (Draft, error) {
	raw, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("read draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return d, nil
}

// Update applies fn under WATCH so a concurrent writer aborts the
// transaction instead of being overwritten. Errors from fn are returned as-is
// and leave the stored draft untouched. A successful update refreshes the TTL.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Draft) error) (Draft, error) {
	key := s.key(id)
	var updated Draft
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		d, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&d); err != nil {
			return err
		}
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = d
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return Draft{}, ErrConflict
	}
	if err != nil {
		return Draft{}, err
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
