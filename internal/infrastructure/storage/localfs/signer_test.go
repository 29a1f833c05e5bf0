package localfs

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *URLSigner {
	t.Helper()
	s, err := NewURLSigner(SignerConfig{Secret: "s3cret", BaseURL: "http://localhost:8080/", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewURLSigner() error = %v", err)
	}
	return s
}

func TestResolveSignsStoragePointers(t *testing.T) {
	s := newTestSigner(t)
	signed, err := s.Resolve(context.Background(), "storage:screenshots/uploads/abc-ride.jpg")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	if u.Path != "/v1/images/uploads/abc-ride.jpg" {
		t.Fatalf("unexpected path %q", u.Path)
	}
	q := u.Query()
	if err := s.Verify("uploads/abc-ride.jpg", q.Get("expires"), q.Get("sig")); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := s.Verify("uploads/other.jpg", q.Get("expires"), q.Get("sig")); err != ErrSignatureInvalid {
		t.Fatalf("expected invalid signature for other key, got %v", err)
	}

	again, _ := s.Resolve(context.Background(), "storage:screenshots/uploads/abc-ride.jpg")
	if again != signed {
		t.Fatalf("expected cached url on repeated resolve")
	}
}

func TestResolvePassesPlainURLsAndRejectsMalformedPointers(t *testing.T) {
	s := newTestSigner(t)
	plain := "https://cdn.example.com/a.jpg"
	if got, _ := s.Resolve(context.Background(), plain); got != plain {
		t.Fatalf("expected plain url unchanged, got %q", got)
	}
	if got, _ := s.Resolve(context.Background(), "storage:no-slash"); got != "" {
		t.Fatalf("expected empty url for malformed pointer, got %q", got)
	}
}

func TestVerifyRejectsExpiredSignature(t *testing.T) {
	s := newTestSigner(t)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	signed := s.Sign("reviews/x.mp3")
	u, _ := url.Parse(signed)

	s.now = func() time.Time { return time.Unix(1_700_000_000, 0).Add(2 * time.Hour) }
	err := s.Verify("reviews/x.mp3", u.Query().Get("expires"), u.Query().Get("sig"))
	if err != ErrSignatureExpired {
		t.Fatalf("expected expired signature, got %v", err)
	}
	if !strings.HasPrefix(signed, "http://localhost:8080/v1/images/") {
		t.Fatalf("unexpected base url in %q", signed)
	}
}
