package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidConversation  = errors.New("conversation id is empty")
)

const (
	defaultStoreKeyPrefix = "library:conversation:"
	defaultStoreTTL       = 7 * 24 * time.Hour
)

// Store persists conversations between mails of the same thread.
type Store interface {
	Load(ctx context.Context, conversationID string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, conversationID string) error
}

// StoreOption customizes RedisStore.
type StoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *RedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

type RedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"3s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`
}

// RedisStore keeps conversations as JSON strings with an expiry.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore dials the redis:// or rediss:// URL in cfg.
func NewRedisStore(cfg RedisConfig, opts ...StoreOption) (*RedisStore, error) {
	rawURL := strings.TrimSpace(cfg.URL)
	if rawURL == "" {
		return nil, errors.New("redis url is required")
	}
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Timeout > 0 {
		redisOpts.DialTimeout = cfg.Timeout
		redisOpts.ReadTimeout = cfg.Timeout
		redisOpts.WriteTimeout = cfg.Timeout
	}
	if cfg.TTL > 0 {
		opts = append([]StoreOption{WithTTL(cfg.TTL)}, opts...)
	}
	return NewRedisStoreFromClient(redis.NewClient(redisOpts), opts...)
}

func NewRedisStoreFromClient(client redis.UniversalClient, opts ...StoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	store := &RedisStore{
		client:    client,
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return store, nil
}

func (s *RedisStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	key, err := s.redisKey(conversationID)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get conversation: %w", err)
	}

	var c Conversation
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation loaded from store: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *Conversation) error {
	if c == nil {
		return ErrNilConversation
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	if err := c.Validate(); err != nil {
		return err
	}

	key, err := s.redisKey(c.ID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set conversation: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	key, err := s.redisKey(conversationID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) redisKey(conversationID string) (string, error) {
	if strings.TrimSpace(conversationID) == "" {
		return "", ErrInvalidConversation
	}
	return s.keyPrefix + conversationID, nil
}

// MemoryStore is the process-local Store used when no redis is configured.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Conversation)}
}

func (s *MemoryStore) Load(_ context.Context, conversationID string) (*Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidConversation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	c.Turns = append([]Turn(nil), c.Turns...)
	return &c, nil
}

func (s *MemoryStore) Save(_ context.Context, c *Conversation) error {
	if c == nil {
		return ErrNilConversation
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cp := *c
	cp.Turns = append([]Turn(nil), c.Turns...)
	s.mu.Lock()
	s.items[c.ID] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.items, conversationID)
	s.mu.Unlock()
	return nil
}
