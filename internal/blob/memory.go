package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryPathPrefix is the path under which MemoryStore.Handler serves objects.
const MemoryPathPrefix = "/blobs/"

type object struct {
	data        []byte
	contentType string
}

// MemoryStore implements Store in process memory. Presigned URLs point at
// Handler and carry an HMAC over the key and expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object

	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewMemoryStore creates a store whose presigned URLs start with baseURL.
func NewMemoryStore(baseURL string, secret []byte) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]object),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

// Keys returns the stored keys, mostly useful in tests.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

func (s *MemoryStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	expires := s.now().Add(ttl).Unix()
	return fmt.Sprintf("%s%s%s?expires=%d&sig=%s",
		s.baseURL, MemoryPathPrefix, key, expires, s.sign(key, expires)), nil
}

func (s *MemoryStore) sign(key string, expires int64) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(key))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// Handler serves presigned GET requests for objects.
func (s *MemoryStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, MemoryPathPrefix)
		expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
		if err != nil {
			http.Error(w, "invalid expiry", http.StatusForbidden)
			return
		}
		if !hmac.Equal([]byte(r.URL.Query().Get("sig")), []byte(s.sign(key, expires))) {
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		if s.now().Unix() > expires {
			http.Error(w, "url expired", http.StatusForbidden)
			return
		}

		s.mu.RLock()
		obj, ok := s.objects[key]
		s.mu.RUnlock()
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Header().Set("Cache-Control", "private, no-store")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.data)
		}
	})
}
