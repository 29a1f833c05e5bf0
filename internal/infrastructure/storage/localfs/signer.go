package localfs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coocood/freecache"

	"github.com/kirillkom/ride-progress/internal/core/domain"
)

var (
	ErrSignatureInvalid = errors.New("invalid signature")
	ErrSignatureExpired = errors.New("signature expired")
)

// URLSigner issues time-limited URLs for stored objects and verifies them.
// Resolved URLs are cached for part of their lifetime so repeated timeline
// reads hand out stable links.
type URLSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	cache   *freecache.Cache
	now     func() time.Time
}

type SignerConfig struct {
	Secret     string
	BaseURL    string
	TTL        time.Duration
	CacheBytes int
}

func NewURLSigner(cfg SignerConfig) (*URLSigner, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("url signer secret is empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.CacheBytes <= 0 {
		cfg.CacheBytes = 4 * 1024 * 1024
	}
	return &URLSigner{
		secret:  []byte(cfg.Secret),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.TTL,
		cache:   freecache.NewCache(cfg.CacheBytes),
		now:     time.Now,
	}, nil
}

// Resolve maps a storage pointer to a signed URL. Plain URLs pass through;
// malformed pointers resolve to "".
func (s *URLSigner) Resolve(_ context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if !domain.IsStorageRef(ref) {
		return ref, nil
	}
	_, key, ok := domain.ParseStorageRef(ref)
	if !ok {
		return "", nil
	}

	if cached, err := s.cache.Get([]byte(key)); err == nil {
		return string(cached), nil
	}
	signed := s.Sign(key)
	// Cache for half the lifetime so a cached link always has time left.
	if ttl := int(s.ttl.Seconds() / 2); ttl > 0 {
		_ = s.cache.Set([]byte(key), []byte(signed), ttl)
	}
	return signed, nil
}

func (s *URLSigner) Sign(key string) string {
	expires := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.signature(key, expires))
	return fmt.Sprintf("%s/v1/images/%s?%s", s.baseURL, escapeKey(key), q.Encode())
}

func (s *URLSigner) Verify(key, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	want := s.signature(key, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrSignatureInvalid
	}
	if s.now().Unix() > exp {
		return ErrSignatureExpired
	}
	return nil
}

func (s *URLSigner) signature(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
