package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	recipientsKey    = "clinic:recipients"
	DefaultRecipient = "+252 615 000000"
)

// RecipientStore holds the saved referral phone numbers.
type RecipientStore interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, number string) ([]string, error)
}

type redisRecipientStore struct {
	client *redis.Client
}

func NewRedisRecipientStore(client *redis.Client) RecipientStore {
	return &redisRecipientStore{client: client}
}

// appendScript adds a number to the stored JSON array unless it is
// already present, and returns the resulting array.
var appendScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
local list = {}
if raw then
  list = cjson.decode(raw)
end
for _, v in ipairs(list) do
  if v == ARGV[1] then
    return raw
  end
end
table.insert(list, ARGV[1])
local out = cjson.encode(list)
redis.call("SET", KEYS[1], out)
return out
`)

// ensureSeeded installs the default recipient on first use. The SETNX
// keeps the stored array non-empty, which also keeps cjson encoding it
// as an array rather than an object.
func (s *redisRecipientStore) ensureSeeded(ctx context.Context) error {
	seed, err := json.Marshal([]string{DefaultRecipient})
	if err != nil {
		return fmt.Errorf("encode recipient seed: %w", err)
	}
	if err := s.client.SetNX(ctx, recipientsKey, seed, 0).Err(); err != nil {
		return fmt.Errorf("seed recipients: %w", err)
	}
	return nil
}

func (s *redisRecipientStore) List(ctx context.Context) ([]string, error) {
	if err := s.ensureSeeded(ctx); err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, recipientsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}

	var numbers []string
	if err := json.Unmarshal([]byte(raw), &numbers); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	return numbers, nil
}

func (s *redisRecipientStore) Add(ctx context.Context, number string) ([]string, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrRecipientRequired
	}

	if err := s.ensureSeeded(ctx); err != nil {
		return nil, err
	}

	raw, err := appendScript.Run(ctx, s.client, []string{recipientsKey}, number).Text()
	if err != nil {
		return nil, fmt.Errorf("save recipient: %w", err)
	}

	var numbers []string
	if err := json.Unmarshal([]byte(raw), &numbers); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	return numbers, nil
}

// MemoryRecipientStore backs tests without a Redis server.
type MemoryRecipientStore struct {
	Numbers []string
}

func NewMemoryRecipientStore() *MemoryRecipientStore {
	return &MemoryRecipientStore{Numbers: []string{DefaultRecipient}}
}

func (s *MemoryRecipientStore) List(context.Context) ([]string, error) {
	out := make([]string, len(s.Numbers))
	copy(out, s.Numbers)
	return out, nil
}

func (s *MemoryRecipientStore) Add(_ context.Context, number string) ([]string, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrRecipientRequired
	}
	for _, n := range s.Numbers {
		if n == number {
			return s.List(context.Background())
		}
	}
	s.Numbers = append(s.Numbers, number)
	return s.List(context.Background())
}
