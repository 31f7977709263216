package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypeAttendanceRecorded carries an attendance id after a successful scan.
const TypeAttendanceRecorded = "attendance.recorded"

// DefaultKey is the Redis list used when none is configured.
const DefaultKey = "conduct:attendance"

// ErrFull is returned by InMemory.Publish when the buffer has no room.
var ErrFull = errors.New("queue full")

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a channel-backed queue for a single process and tests.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message without waiting for room.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrFull
	}
}

// Consume returns a channel for workers. It closes when ctx is done.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a message.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return q.client.LPush(ctx, q.key, serialize(msg)).Err()
}

// Consume streams messages using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			select {
			case out <- deserialize(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// serialize stores messages as Type|Body.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, ok := strings.Cut(s, "|")
	if !ok {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
