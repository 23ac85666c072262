package player

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/keshon/discodrome/internal/music/autoplay"
	"github.com/keshon/discodrome/internal/subsonic"
)

type fakeSink struct {
	mu     sync.Mutex
	urls   []string
	dones  []func()
	active int
	stops  int
	err    error
}

func newFakeSink() *fakeSink { return &fakeSink{active: -1} }

func (s *fakeSink) Play(url string, done func()) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.urls)
	s.urls = append(s.urls, url)
	s.dones = append(s.dones, done)
	s.active = idx
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.active == idx {
			s.active = -1
			s.stops++
		}
	}, nil
}

// finish ends the active stream naturally.
func (s *fakeSink) finish(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	idx := s.active
	if idx < 0 {
		s.mu.Unlock()
		t.Fatal("finish: nothing playing on the sink")
	}
	s.active = -1
	done := s.dones[idx]
	s.mu.Unlock()
	done()
}

func (s *fakeSink) lastDone() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dones[len(s.dones)-1]
}

type fakeStreams struct {
	unplayable map[string]bool
	failing    map[string]error
}

func (f *fakeStreams) StreamURL(ctx context.Context, id string) (string, error) {
	if err := f.failing[id]; err != nil {
		return "", err
	}
	if f.unplayable[id] {
		return "", nil
	}
	return "https://music.example/stream/" + id, nil
}

type fakeSource struct {
	random      []subsonic.Track
	similar     []subsonic.Track
	randomCalls int
	seeds       []string
}

func (f *fakeSource) RandomTracks(ctx context.Context, opts subsonic.RandomOptions) []subsonic.Track {
	f.randomCalls++
	return f.random
}

func (f *fakeSource) SimilarTracks(ctx context.Context, id string, count int) []subsonic.Track {
	f.seeds = append(f.seeds, id)
	return f.similar
}

var quietLog = log.New(io.Discard)

type harness struct {
	p       *Player
	sink    *fakeSink
	streams *fakeStreams
	source  *fakeSource
}

func newHarness(mode autoplay.Mode) *harness {
	h := &harness{
		sink:    newFakeSink(),
		streams: &fakeStreams{unplayable: map[string]bool{}, failing: map[string]error{}},
		source:  &fakeSource{},
	}
	engine := autoplay.NewEngine(h.source, autoplay.WithLogger(quietLog))
	h.p = New("guild-1", h.sink, h.streams, engine, WithLogger(quietLog), WithAutoplayMode(mode))
	return h
}

func tracks(ids ...string) []subsonic.Track {
	out := make([]subsonic.Track, len(ids))
	for i, id := range ids {
		out[i] = subsonic.Track{ID: id, Title: "Track " + id}
	}
	return out
}

func ids(ts []subsonic.Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func assertState(t *testing.T, p *Player, current string, queue ...string) {
	t.Helper()
	cur, ok := p.CurrentTrack()
	switch {
	case current == "" && ok:
		t.Errorf("current = %q, want none", cur.ID)
	case current != "" && (!ok || cur.ID != current):
		t.Errorf("current = %q (%v), want %q", cur.ID, ok, current)
	}
	if got := ids(p.Queue()); !slices.Equal(got, queue) && !(len(got) == 0 && len(queue) == 0) {
		t.Errorf("queue = %v, want %v", got, queue)
	}
	if p.IsPlaying() != (current != "") {
		t.Errorf("IsPlaying = %v", p.IsPlaying())
	}
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	ctx := context.Background()

	h.p.Enqueue(tracks("A", "B", "C")...)
	if err := h.p.PlayQueue(ctx); err != nil {
		t.Fatal(err)
	}
	assertState(t, h.p, "A", "B", "C")

	h.sink.finish(t)
	assertState(t, h.p, "B", "C")

	if err := h.p.Skip(ctx); err != nil {
		t.Fatal(err)
	}
	assertState(t, h.p, "C")

	h.sink.finish(t)
	assertState(t, h.p, "")

	if h.source.randomCalls != 0 || len(h.source.seeds) != 0 {
		t.Error("autoplay consulted with mode none")
	}
	if got := ids(h.p.History()); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("history = %v", got)
	}
	want := []string{
		"https://music.example/stream/A",
		"https://music.example/stream/B",
		"https://music.example/stream/C",
	}
	if !slices.Equal(h.sink.urls, want) {
		t.Errorf("sink urls = %v", h.sink.urls)
	}
}

func TestPlayQueueWhilePlayingIsNoop(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	ctx := context.Background()

	h.p.Enqueue(tracks("A", "B")...)
	h.p.PlayQueue(ctx)
	h.p.PlayQueue(ctx)

	assertState(t, h.p, "A", "B")
	if len(h.sink.urls) != 1 {
		t.Errorf("sink played %d streams, want 1", len(h.sink.urls))
	}
}

func TestSkipDiscardsCurrent(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	ctx := context.Background()

	h.p.Enqueue(tracks("A", "B", "C")...)
	h.p.PlayQueue(ctx)
	if err := h.p.Skip(ctx); err != nil {
		t.Fatal(err)
	}

	assertState(t, h.p, "B", "C")
	if slices.Contains(ids(h.p.Queue()), "A") {
		t.Error("skipped track is back in the queue")
	}
	if h.sink.stops != 1 {
		t.Errorf("sink stops = %d, want 1", h.sink.stops)
	}
}

func TestSkipLastTrackLeavesIdle(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	ctx := context.Background()

	h.p.Enqueue(tracks("A")...)
	h.p.PlayQueue(ctx)
	if err := h.p.Skip(ctx); err != nil {
		t.Fatal(err)
	}
	assertState(t, h.p, "")
}

func TestStopRequeuesAtHead(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	ctx := context.Background()

	h.p.Enqueue(tracks("A", "B")...)
	h.p.PlayQueue(ctx)
	before, _ := h.p.CurrentTrack()

	if err := h.p.Stop(); err != nil {
		t.Fatal(err)
	}
	assertState(t, h.p, "", "A", "B")
	if h.sink.stops != 1 {
		t.Errorf("sink stops = %d, want 1", h.sink.stops)
	}

	h.p.PlayQueue(ctx)
	after, _ := h.p.CurrentTrack()
	if after != before {
		t.Errorf("replayed %+v, want %+v", after, before)
	}
	assertState(t, h.p, "A", "B")
}

func TestPreconditions(t *testing.T) {
	h := newHarness(autoplay.ModeNone)

	if err := h.p.Stop(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Errorf("Stop = %v", err)
	}
	if err := h.p.Skip(context.Background()); !errors.Is(err, ErrNoTrackPlaying) {
		t.Errorf("Skip = %v", err)
	}
	if err := h.p.PlayQueue(context.Background()); err != nil {
		t.Errorf("PlayQueue on empty queue = %v", err)
	}
	assertState(t, h.p, "")
}

func TestStaleTrackEndIgnored(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	ctx := context.Background()

	h.p.Enqueue(tracks("A", "B", "C")...)
	h.p.PlayQueue(ctx)
	doneA := h.sink.lastDone()

	h.p.Skip(ctx)
	doneA()

	assertState(t, h.p, "B", "C")
}

func TestClearQueueKeepsCurrent(t *testing.T) {
	h := newHarness(autoplay.ModeNone)

	h.p.Enqueue(tracks("A", "B", "C")...)
	h.p.PlayQueue(context.Background())
	h.p.ClearQueue()

	assertState(t, h.p, "A")
}

func TestShuffle(t *testing.T) {
	t.Run("preserves elements", func(t *testing.T) {
		h := newHarness(autoplay.ModeNone)
		in := tracks("1", "2", "3", "4", "5", "6", "7", "8", "2")
		h.p.Enqueue(in...)

		h.p.Shuffle()

		got := ids(h.p.Queue())
		want := ids(in)
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			t.Errorf("shuffled multiset = %v, want %v", got, want)
		}
	})

	t.Run("single element", func(t *testing.T) {
		h := newHarness(autoplay.ModeNone)
		h.p.Enqueue(tracks("only")...)
		h.p.Shuffle()
		assertState(t, h.p, "", "only")
	})

	t.Run("does not touch current", func(t *testing.T) {
		h := newHarness(autoplay.ModeNone)
		h.p.Enqueue(tracks("A", "B", "C")...)
		h.p.PlayQueue(context.Background())
		h.p.Shuffle()
		if cur, _ := h.p.CurrentTrack(); cur.ID != "A" {
			t.Errorf("current = %q", cur.ID)
		}
	})
}

func TestAutoplay(t *testing.T) {
	t.Run("none stays idle", func(t *testing.T) {
		h := newHarness(autoplay.ModeNone)
		h.source.random = tracks("R1")
		h.p.Enqueue(tracks("A")...)
		h.p.PlayQueue(context.Background())

		h.sink.finish(t)

		assertState(t, h.p, "")
		if h.source.randomCalls != 0 {
			t.Error("random source called with mode none")
		}
	})

	t.Run("random refills on queue end", func(t *testing.T) {
		h := newHarness(autoplay.ModeRandom)
		h.source.random = tracks("R1", "R2")
		h.p.Enqueue(tracks("A")...)
		h.p.PlayQueue(context.Background())

		h.sink.finish(t)

		assertState(t, h.p, "R1", "R2")
		if h.source.randomCalls != 1 {
			t.Errorf("random calls = %d, want 1", h.source.randomCalls)
		}
	})

	t.Run("random with nothing returned stops", func(t *testing.T) {
		h := newHarness(autoplay.ModeRandom)
		h.p.Enqueue(tracks("A")...)
		h.p.PlayQueue(context.Background())

		h.sink.finish(t)

		assertState(t, h.p, "")
		if h.source.randomCalls != 1 {
			t.Errorf("random calls = %d, want exactly one refill", h.source.randomCalls)
		}
	})

	t.Run("similar seeds with finished track", func(t *testing.T) {
		h := newHarness(autoplay.ModeSimilar)
		h.source.similar = tracks("S1")
		h.p.Enqueue(tracks("A")...)
		h.p.PlayQueue(context.Background())

		h.sink.finish(t)

		assertState(t, h.p, "S1")
		if !slices.Equal(h.source.seeds, []string{"A"}) {
			t.Errorf("seeds = %v", h.source.seeds)
		}
	})

	t.Run("similar without prior track", func(t *testing.T) {
		h := newHarness(autoplay.ModeSimilar)
		h.source.random = tracks("R1")
		h.source.similar = tracks("S1")

		if err := h.p.PlayQueue(context.Background()); err != nil {
			t.Fatal(err)
		}

		assertState(t, h.p, "")
		if h.source.randomCalls != 0 || len(h.source.seeds) != 0 {
			t.Errorf("random=%d similar=%v, want no source calls", h.source.randomCalls, h.source.seeds)
		}
	})

	t.Run("random starts from idle", func(t *testing.T) {
		h := newHarness(autoplay.ModeNone)
		h.source.random = tracks("R1")
		h.p.SetAutoplayMode(autoplay.ModeRandom)

		h.p.PlayQueue(context.Background())

		assertState(t, h.p, "R1")
		if h.p.AutoplayMode() != autoplay.ModeRandom {
			t.Errorf("mode = %v", h.p.AutoplayMode())
		}
	})
}

func TestUnplayableTrackIsSkipped(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	h.streams.unplayable["B"] = true

	h.p.Enqueue(tracks("A", "B", "C")...)
	h.p.PlayQueue(context.Background())
	h.sink.finish(t)

	assertState(t, h.p, "C")
}

func TestStreamErrorRequeues(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	boom := errors.New("boom")
	h.streams.failing["A"] = boom

	h.p.Enqueue(tracks("A", "B")...)
	if err := h.p.PlayQueue(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("PlayQueue = %v, want boom", err)
	}
	assertState(t, h.p, "", "A", "B")

	delete(h.streams.failing, "A")
	if err := h.p.PlayQueue(context.Background()); err != nil {
		t.Fatal(err)
	}
	assertState(t, h.p, "A", "B")
}

func TestSinkErrorRequeues(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	h.sink.err = errors.New("no voice connection")

	h.p.Enqueue(tracks("A")...)
	if err := h.p.PlayQueue(context.Background()); err == nil {
		t.Fatal("PlayQueue succeeded with a broken sink")
	}
	assertState(t, h.p, "", "A")
}

func TestReset(t *testing.T) {
	h := newHarness(autoplay.ModeRandom)
	h.p.Enqueue(tracks("A", "B")...)
	h.p.PlayQueue(context.Background())
	doneA := h.sink.lastDone()

	h.p.Reset()

	assertState(t, h.p, "")
	if h.sink.stops != 1 {
		t.Errorf("sink stops = %d, want 1", h.sink.stops)
	}
	if h.p.AutoplayMode() != autoplay.ModeRandom {
		t.Error("reset changed the autoplay mode")
	}

	doneA()
	assertState(t, h.p, "")
	if h.source.randomCalls != 0 {
		t.Error("stale track end triggered autoplay after reset")
	}
}

func TestHistoryIsCapped(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	var in []string
	for i := range historyLimit + 5 {
		in = append(in, string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	h.p.Enqueue(tracks(in...)...)
	h.p.PlayQueue(context.Background())
	for range in {
		h.sink.finish(t)
	}

	hist := h.p.History()
	if len(hist) != historyLimit {
		t.Fatalf("history len = %d, want %d", len(hist), historyLimit)
	}
	if hist[len(hist)-1].ID != in[len(in)-1] {
		t.Errorf("newest history entry = %q", hist[len(hist)-1].ID)
	}
}

func TestEvents(t *testing.T) {
	h := newHarness(autoplay.ModeNone)
	h.p.Enqueue(tracks("A")...)
	h.p.PlayQueue(context.Background())
	h.p.Enqueue(tracks("B")...)

	ev := <-h.p.Events
	if ev.Status != StatusPlaying || ev.Track.ID != "A" {
		t.Errorf("first event = %+v", ev)
	}
	ev = <-h.p.Events
	if ev.Status != StatusAdded || ev.Track.ID != "B" {
		t.Errorf("second event = %+v", ev)
	}
}
