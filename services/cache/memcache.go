package cache

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/pkg/errors"
)

// DefaultKeyPrefix namespaces every key written by the worker
const DefaultKeyPrefix = "listingworker:"

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	prefix string
	log    *logger.Logger
}

// NewMemcacheService creates a memcache service for a comma-separated list of servers
func NewMemcacheService(serverAddrs string) *MemcacheService {
	var servers []string
	for _, s := range strings.Split(serverAddrs, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	client := memcache.New(servers...)
	client.Timeout = 500 * time.Millisecond

	return &MemcacheService{client: client, prefix: DefaultKeyPrefix, log: logger.ForCache()}
}

// Ping reports whether the servers are reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(m.prefix + key)
	if stderrors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		m.log.Debug().Err(err).Str("key", key).Msg("Memcache get failed")
		return nil, errors.NewCache("memcache", "get "+key, err)
	}
	return item.Value, nil
}

// Set stores a value in memcache; sub-second expirations round up to one second
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	seconds := int32(expiration / time.Second)
	if expiration > 0 && seconds == 0 {
		seconds = 1
	}
	err := m.client.Set(&memcache.Item{
		Key:        m.prefix + key,
		Value:      value,
		Expiration: seconds,
	})
	if err != nil {
		return errors.NewCache("memcache", "set "+key, err)
	}
	return nil
}

// Delete removes a value from memcache; deleting a missing key is not an error
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(m.prefix + key)
	if err == nil || stderrors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return errors.NewCache("memcache", "delete "+key, err)
}
