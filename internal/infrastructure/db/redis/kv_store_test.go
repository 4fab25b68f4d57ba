package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
)

var _ ports.KeyValueStore = (*KVStore)(nil)

// memoryHook answers GET, SET and DEL from a map so the store can be tested
// without a Redis server. A non-nil fail is returned for every command.
type memoryHook struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]bool
	fail error
}

func (h *memoryHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("dial disabled in tests")
	}
}

func (h *memoryHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *memoryHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()

		if h.fail != nil {
			cmd.SetErr(h.fail)
			return h.fail
		}

		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StringCmd:
			v, ok := h.data[fmt.Sprint(args[1])]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			if strings.EqualFold(cmd.Name(), "set") {
				key := fmt.Sprint(args[1])
				h.data[key] = fmt.Sprint(args[2])
				h.ttls[key] = len(args) > 3
			}
			c.SetVal("OK")
		case *redis.IntCmd:
			var n int64
			for _, k := range args[1:] {
				if _, ok := h.data[fmt.Sprint(k)]; ok {
					delete(h.data, fmt.Sprint(k))
					n++
				}
			}
			c.SetVal(n)
		default:
			return fmt.Errorf("unexpected command %s", cmd.Name())
		}
		return nil
	}
}

func newTestStore(t *testing.T, prefix string, ttl time.Duration) (*KVStore, *memoryHook) {
	t.Helper()
	hook := &memoryHook{data: map[string]string{}, ttls: map[string]bool{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	client.AddHook(hook)
	t.Cleanup(func() { client.Close() })
	return NewKVStore(client, prefix, ttl), hook
}

func TestKVStore_Contract(t *testing.T) {
	ctx := context.Background()
	s, hook := newTestStore(t, "", 0)

	if _, err := s.Get(ctx, domain.KeyUser); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound for absent key, got %v", err)
	}

	if err := s.Set(ctx, domain.KeyUser, `{"id":"1"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := hook.data["docai:session:user"]; !ok {
		t.Fatalf("expected default prefix, got keys %v", hook.data)
	}
	if hook.ttls["docai:session:user"] {
		t.Fatalf("zero ttl must not set an expiry")
	}

	v, err := s.Get(ctx, domain.KeyUser)
	if err != nil || v != `{"id":"1"}` {
		t.Fatalf("unexpected value %q %v", v, err)
	}

	if err := s.Remove(ctx, domain.KeyUser); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, domain.KeyUser); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after remove, got %v", err)
	}
	if err := s.Remove(ctx, "never-set"); err != nil {
		t.Fatalf("removing an absent key must not fail: %v", err)
	}
}

func TestKVStore_PrefixAndTTL(t *testing.T) {
	s, hook := newTestStore(t, "tenant", time.Hour)

	if err := s.Set(context.Background(), domain.KeyToken, "tok"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if hook.data["tenant:token"] != "tok" {
		t.Fatalf("expected prefixed key, got %v", hook.data)
	}
	if !hook.ttls["tenant:token"] {
		t.Fatalf("expected expiry to be sent with SET")
	}
}

func TestKVStore_BackendErrors(t *testing.T) {
	ctx := context.Background()
	s, hook := newTestStore(t, "", 0)
	hook.fail = errors.New("connection reset")

	cases := map[string]func() error{
		"get": func() error {
			_, err := s.Get(ctx, domain.KeyUser)
			return err
		},
		"set":    func() error { return s.Set(ctx, domain.KeyUser, "v") },
		"remove": func() error { return s.Remove(ctx, domain.KeyUser) },
	}
	for name, call := range cases {
		err := call()
		if err == nil || errors.Is(err, domain.ErrKeyNotFound) {
			t.Fatalf("%s: expected a backend error, got %v", name, err)
		}
		if !errors.Is(err, hook.fail) {
			t.Fatalf("%s: backend error not wrapped: %v", name, err)
		}
	}
}
