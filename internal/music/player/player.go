package player

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/keshon/discodrome/internal/music/autoplay"
	"github.com/keshon/discodrome/internal/subsonic"
)

type PlayerStatus string

const (
	StatusPlaying  PlayerStatus = "Playing"
	StatusAdded    PlayerStatus = "Track(s) Added"
	StatusStopped  PlayerStatus = "Playback Stopped"
	StatusSkipped  PlayerStatus = "Track Skipped"
	StatusFinished PlayerStatus = "Playback Ended"
	StatusError    PlayerStatus = "Error"
)

func (status PlayerStatus) StringEmoji() string {
	m := map[PlayerStatus]string{
		StatusPlaying:  "▶️",
		StatusAdded:    "🎶",
		StatusStopped:  "⏹",
		StatusSkipped:  "⏭",
		StatusFinished: "🏁",
		StatusError:    "❌",
	}
	return m[status]
}

// StatusEvent is what listeners receive on Player.Events. Track is the track
// the status refers to, if any.
type StatusEvent struct {
	Status PlayerStatus
	Track  subsonic.Track
}

var ErrNoTrackPlaying = errors.New("no track is currently playing")

const historyLimit = 50

// Sink is the audio output of one guild. It plays a single stream at a time.
type Sink interface {
	// Play starts streaming url and returns without waiting for it. A stream
	// already playing is replaced. done is called once, from the sink's own
	// goroutine, only if the stream reaches its natural end, and after that
	// stream counts as finished: neither Play nor stop may wait on a running
	// done. The returned stop halts this stream and waits for it; it does
	// nothing once the stream has ended or been replaced.
	Play(url string, done func()) (stop func(), err error)
}

// StreamResolver turns a track id into a URL the sink can open. An empty URL
// with a nil error means the track cannot be played.
type StreamResolver interface {
	StreamURL(ctx context.Context, trackID string) (string, error)
}

// Refiller supplies tracks when the queue runs dry.
type Refiller interface {
	Next(ctx context.Context, mode autoplay.Mode, seedID string) []subsonic.Track
}

// Player owns the queue and the current track of one guild.
//
// Every state change happens under mu, including the hand-off to the sink.
// Network calls (stream resolution, autoplay) and waiting for a stream to
// stop happen with mu released. busy keeps a second PlayQueue from starting
// while one is in flight, and generation invalidates work and callbacks that
// belong to a track that is no longer current.
type Player struct {
	mu         sync.Mutex
	current    *subsonic.Track
	stop       func()
	queue      []subsonic.Track
	history    []subsonic.Track
	mode       autoplay.Mode
	lastPlayed string
	busy       bool
	generation uint64

	guildID  string
	sink     Sink
	streams  StreamResolver
	refiller Refiller
	log      *log.Logger

	ListenerOnce sync.Once
	Events       chan StatusEvent
}

type Option func(*Player)

func WithLogger(l *log.Logger) Option {
	return func(p *Player) { p.log = l }
}

// WithAutoplayMode sets the initial autoplay mode.
func WithAutoplayMode(m autoplay.Mode) Option {
	return func(p *Player) { p.mode = m }
}

// New creates an idle Player for guildID.
func New(guildID string, sink Sink, streams StreamResolver, refiller Refiller, opts ...Option) *Player {
	p := &Player{
		guildID:  guildID,
		sink:     sink,
		streams:  streams,
		refiller: refiller,
		queue:    make([]subsonic.Track, 0),
		history:  make([]subsonic.Track, 0),
		Events:   make(chan StatusEvent, 10), // buffered to reduce drops
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = log.Default().WithPrefix("player")
	}
	p.log = p.log.With("guild", guildID)
	return p
}

func (p *Player) GuildID() string { return p.guildID }

// Enqueue appends tracks to the tail of the queue.
func (p *Player) Enqueue(tracks ...subsonic.Track) {
	if len(tracks) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = append(p.queue, tracks...)
	p.log.Debug("enqueued", "added", len(tracks), "queue_len", len(p.queue))
	if p.current != nil {
		p.emitStatus(StatusAdded, tracks[0])
	}
}

// PlayQueue starts the head of the queue if nothing is playing. When the
// queue is empty and autoplay is enabled it asks for one refill first.
// Unplayable tracks are dropped and the next one is tried. An empty queue is
// not an error: the player simply stays idle.
func (p *Player) PlayQueue(ctx context.Context) error {
	p.mu.Lock()
	if p.current != nil || p.busy {
		p.mu.Unlock()
		return nil
	}
	p.busy = true
	gen := p.generation
	p.mu.Unlock()

	refilled := false
	for {
		p.mu.Lock()
		if gen != p.generation {
			p.mu.Unlock()
			return nil
		}

		if len(p.queue) == 0 {
			if p.mode == autoplay.ModeNone || refilled {
				p.busy = false
				p.mu.Unlock()
				p.log.Debug("queue exhausted")
				p.emitStatusUnlocked(StatusFinished, subsonic.Track{})
				return nil
			}
			mode, seed := p.mode, p.lastPlayed
			p.mu.Unlock()

			refilled = true
			batch := p.refiller.Next(ctx, mode, seed)

			p.mu.Lock()
			if gen == p.generation {
				p.queue = append(p.queue, batch...)
			}
			p.mu.Unlock()
			continue
		}

		track := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		url, err := p.streams.StreamURL(ctx, track.ID)
		if err != nil {
			p.log.Error("failed to resolve stream", "track", track.ID, "err", err)
			p.abortStart(gen, track)
			p.emitStatusUnlocked(StatusError, track)
			return err
		}
		if url == "" {
			p.log.Warn("skipping unplayable track", "track", track.ID, "title", track.Title)
			continue
		}

		if err := p.start(gen, track, url); err != nil {
			p.log.Error("sink refused track", "track", track.ID, "err", err)
			return err
		}
		return nil
	}
}

// start hands url to the sink and makes track current, unless a reset
// happened while the stream was being resolved. On a sink error the track
// goes back to the head of the queue.
func (p *Player) start(gen uint64, track subsonic.Track, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return nil
	}

	next := gen + 1
	stop, err := p.sink.Play(url, func() { p.onTrackEnd(next) })
	if err != nil {
		p.queue = slices.Insert(p.queue, 0, track)
		p.busy = false
		p.emitStatus(StatusError, track)
		return err
	}
	p.generation = next
	p.current = &track
	p.stop = stop
	p.busy = false
	p.emitStatus(StatusPlaying, track)

	p.log.Info("now playing", "track", track.ID, "title", track.Title, "queue_len", len(p.queue))
	return nil
}

// abortStart puts track back at the head of the queue and clears busy.
func (p *Player) abortStart(gen uint64, track subsonic.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return
	}
	p.queue = slices.Insert(p.queue, 0, track)
	p.busy = false
}

// onTrackEnd is the sink's natural end of stream callback.
func (p *Player) onTrackEnd(gen uint64) {
	p.mu.Lock()
	if gen != p.generation || p.current == nil {
		p.mu.Unlock()
		return
	}
	finished := p.finishCurrent()
	p.mu.Unlock()

	p.log.Debug("track ended", "track", finished.ID)
	if err := p.PlayQueue(context.Background()); err != nil {
		p.log.Error("failed to advance queue", "err", err)
	}
}

// finishCurrent retires the current track. Caller holds mu.
func (p *Player) finishCurrent() subsonic.Track {
	t := *p.current
	p.current = nil
	p.stop = nil
	p.generation++
	p.lastPlayed = t.ID
	p.history = append(p.history, t)
	if len(p.history) > historyLimit {
		p.history = slices.Clone(p.history[len(p.history)-historyLimit:])
	}
	return t
}

// Skip discards the current track and plays the next one.
func (p *Player) Skip(ctx context.Context) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNoTrackPlaying
	}
	stop := p.stop
	skipped := p.finishCurrent()
	p.emitStatus(StatusSkipped, skipped)
	p.mu.Unlock()

	p.log.Info("skipped", "track", skipped.ID)
	stop()
	return p.PlayQueue(ctx)
}

// Stop halts playback and puts the interrupted track back at the head of the
// queue. Playback does not resume on its own.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return ErrNoTrackPlaying
	}
	track := *p.current
	stop := p.stop
	p.current = nil
	p.stop = nil
	p.generation++
	p.queue = slices.Insert(p.queue, 0, track)
	p.emitStatus(StatusStopped, track)
	p.mu.Unlock()

	p.log.Info("stopped", "track", track.ID)
	stop()
	return nil
}

// Reset forces the player idle with an empty queue. The autoplay mode is
// kept.
func (p *Player) Reset() {
	p.mu.Lock()
	stop := p.stop
	p.current = nil
	p.stop = nil
	p.queue = make([]subsonic.Track, 0)
	p.busy = false
	p.generation++
	p.mu.Unlock()

	p.log.Info("player reset")
	if stop != nil {
		stop()
	}
}

// ClearQueue empties the queue. The current track keeps playing.
func (p *Player) ClearQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = make([]subsonic.Track, 0)
}

// Shuffle replaces the queue with a uniformly random permutation of itself.
func (p *Player) Shuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) < 2 {
		return
	}
	shuffled := slices.Clone(p.queue)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	p.queue = shuffled
}

// Queue returns a copy of the queue.
func (p *Player) Queue() []subsonic.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queue)
}

// History returns the most recently finished or skipped tracks, oldest first.
func (p *Player) History() []subsonic.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}

// CurrentTrack returns the track handed to the sink, if any.
func (p *Player) CurrentTrack() (subsonic.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return subsonic.Track{}, false
	}
	return *p.current, true
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *Player) AutoplayMode() autoplay.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *Player) SetAutoplayMode(m autoplay.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m
	p.log.Info("autoplay mode changed", "mode", m)
}

// emitStatus sends without blocking. Caller holds mu.
func (p *Player) emitStatus(status PlayerStatus, track subsonic.Track) {
	select {
	case p.Events <- StatusEvent{Status: status, Track: track}:
	default:
		p.log.Warn("player status signal dropped (channel full)", "status", status)
	}
}

func (p *Player) emitStatusUnlocked(status PlayerStatus, track subsonic.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitStatus(status, track)
}
