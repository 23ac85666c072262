package subsonic

import (
	"context"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCoverArtCacheHit(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	cached := c.CoverPath("al-1")
	if err := os.WriteFile(cached, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := c.CoverArt(context.Background(), "al-1", 0); got != cached {
		t.Errorf("CoverArt = %q, want %q", got, cached)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("server hit %d times on a cache hit", n)
	}
}

func TestCoverArtFetchesOnce(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("size") != "300" {
			t.Errorf("size = %q", r.URL.Query().Get("size"))
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	ctx := context.Background()

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i] = c.CoverArt(ctx, "al-2", 0)
		}()
	}
	wg.Wait()

	want := c.CoverPath("al-2")
	for _, p := range paths {
		if p != want {
			t.Fatalf("CoverArt = %q, want %q", p, want)
		}
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("cached file = %q, %v", data, err)
	}

	before := hits.Load()
	c.CoverArt(ctx, "al-2", 0)
	if hits.Load() != before {
		t.Error("second call went to the network")
	}
}

func TestCoverArtFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"fault body", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(failedBody(CodeNotFound)))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)

			if got := c.CoverArt(context.Background(), "missing", 0); got != "fallback.jpg" {
				t.Errorf("CoverArt = %q, want fallback", got)
			}
			if _, err := os.Stat(c.CoverPath("missing")); !os.IsNotExist(err) {
				t.Errorf("failed fetch left a cache file: %v", err)
			}
		})
	}
}

func TestCoverArtEmptyID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	if got := c.CoverArt(context.Background(), "", 0); got != "fallback.jpg" {
		t.Errorf("CoverArt = %q", got)
	}
}
