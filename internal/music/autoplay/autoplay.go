// Package autoplay decides which tracks to queue when a guild's queue runs dry.
package autoplay

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/keshon/discodrome/internal/subsonic"
)

// Mode selects how an empty queue is refilled. The zero value is ModeNone.
type Mode int

const (
	ModeNone Mode = iota
	ModeRandom
	ModeSimilar
)

func (m Mode) String() string {
	switch m {
	case ModeRandom:
		return "random"
	case ModeSimilar:
		return "similar"
	default:
		return "none"
	}
}

// ParseMode accepts the names produced by String, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return ModeNone, nil
	case "random":
		return ModeRandom, nil
	case "similar":
		return ModeSimilar, nil
	}
	return ModeNone, fmt.Errorf("unknown autoplay mode %q", s)
}

// Source supplies candidate tracks. Implementations never fail: problems
// surface as an empty slice.
type Source interface {
	RandomTracks(ctx context.Context, opts subsonic.RandomOptions) []subsonic.Track
	SimilarTracks(ctx context.Context, trackID string, count int) []subsonic.Track
}

// Engine turns a mode and the last played track into a batch of tracks.
// It holds no per-guild state.
type Engine struct {
	src          Source
	similarCount int
	log          *log.Logger
}

type Option func(*Engine)

// WithSimilarCount sets how many tracks a SIMILAR refill asks for.
func WithSimilarCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.similarCount = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func NewEngine(src Source, opts ...Option) *Engine {
	e := &Engine{src: src, similarCount: 1}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.Default().WithPrefix("autoplay")
	}
	return e
}

// Next returns the tracks to append to an empty queue. seedID is the id of
// the most recently played track and only matters for ModeSimilar. An empty
// batch means playback should stop.
func (e *Engine) Next(ctx context.Context, mode Mode, seedID string) []subsonic.Track {
	var batch []subsonic.Track
	switch mode {
	case ModeRandom:
		batch = e.src.RandomTracks(ctx, subsonic.RandomOptions{})
	case ModeSimilar:
		if seedID == "" {
			e.log.Debug("no seed track for similar autoplay")
			return []subsonic.Track{}
		}
		batch = e.src.SimilarTracks(ctx, seedID, e.similarCount)
	default:
		return []subsonic.Track{}
	}

	if len(batch) == 0 {
		e.log.Info("autoplay found nothing", "mode", mode, "seed", seedID)
		return []subsonic.Track{}
	}
	e.log.Debug("autoplay batch", "mode", mode, "tracks", len(batch))
	return batch
}
