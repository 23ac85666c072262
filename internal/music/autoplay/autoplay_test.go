package autoplay

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/keshon/discodrome/internal/subsonic"
)

type fakeSource struct {
	random      []subsonic.Track
	similar     []subsonic.Track
	randomCalls int
	similarArgs []string
	count       int
}

func (f *fakeSource) RandomTracks(ctx context.Context, opts subsonic.RandomOptions) []subsonic.Track {
	f.randomCalls++
	return f.random
}

func (f *fakeSource) SimilarTracks(ctx context.Context, trackID string, count int) []subsonic.Track {
	f.similarArgs = append(f.similarArgs, trackID)
	f.count = count
	return f.similar
}

func quiet() Option { return WithLogger(log.New(io.Discard)) }

func TestNext(t *testing.T) {
	tracks := []subsonic.Track{{ID: "x"}, {ID: "y"}}

	tests := []struct {
		name        string
		mode        Mode
		seed        string
		src         *fakeSource
		want        int
		randomCalls int
		similar     int
	}{
		{"none never asks", ModeNone, "seed", &fakeSource{random: tracks, similar: tracks}, 0, 0, 0},
		{"random", ModeRandom, "", &fakeSource{random: tracks}, 2, 1, 0},
		{"random empty", ModeRandom, "seed", &fakeSource{}, 0, 1, 0},
		{"similar", ModeSimilar, "seed", &fakeSource{similar: tracks[:1]}, 1, 0, 1},
		{"similar without seed", ModeSimilar, "", &fakeSource{random: tracks, similar: tracks}, 0, 0, 0},
		{"similar empty does not fall back to random", ModeSimilar, "seed", &fakeSource{random: tracks}, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.src, quiet())
			got := e.Next(context.Background(), tt.mode, tt.seed)
			if got == nil {
				t.Fatal("Next returned nil, want a non-nil slice")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
			if tt.src.randomCalls != tt.randomCalls {
				t.Errorf("random calls = %d, want %d", tt.src.randomCalls, tt.randomCalls)
			}
			if len(tt.src.similarArgs) != tt.similar {
				t.Errorf("similar calls = %d, want %d", len(tt.src.similarArgs), tt.similar)
			}
		})
	}
}

func TestSimilarCount(t *testing.T) {
	src := &fakeSource{}
	NewEngine(src, quiet(), WithSimilarCount(5)).Next(context.Background(), ModeSimilar, "seed")
	if src.count != 5 || src.similarArgs[0] != "seed" {
		t.Errorf("got id %v count %d", src.similarArgs, src.count)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeRandom, ModeSimilar} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if got, _ := ParseMode(" Random "); got != ModeRandom {
		t.Errorf("ParseMode is case sensitive")
	}
	if _, err := ParseMode("shuffle"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}
