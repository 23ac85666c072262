// Package watchdog disconnects the bot from voice channels it has been left
// alone in, and resets the guild's player when it does.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/keshon/discodrome/pkg/jobmgr"
)

const DefaultDelay = 10 * time.Second

// Occupancy answers membership questions about the bot's voice channel.
type Occupancy interface {
	// Members returns how many users other than the bot share its voice
	// channel in guildID, and whether the bot is connected at all.
	Members(guildID string) (others int, connected bool)
	Disconnect(guildID string) error
}

// Resetter hard-resets a guild's playback state.
type Resetter interface {
	Reset(guildID string)
}

type Watchdog struct {
	occupancy Occupancy
	players   Resetter
	jobs      *jobmgr.Manager
	delay     time.Duration
	log       *log.Logger
}

type Option func(*Watchdog)

// WithDelay sets how long the bot may stay alone before disconnecting.
func WithDelay(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.delay = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(w *Watchdog) { w.log = l }
}

// WithJobs shares a job manager instead of creating one.
func WithJobs(m *jobmgr.Manager) Option {
	return func(w *Watchdog) { w.jobs = m }
}

func New(occupancy Occupancy, players Resetter, opts ...Option) *Watchdog {
	w := &Watchdog{
		occupancy: occupancy,
		players:   players,
		delay:     DefaultDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = log.Default().WithPrefix("watchdog")
	}
	if w.jobs == nil {
		l := w.log
		w.jobs = jobmgr.NewManager(func(msg string) { l.Debug("job", "status", msg) })
	}
	return w
}

func jobName(guildID string) string { return "idle:" + guildID }

// OnMembershipChange must be called after every voice state change in a
// guild. Being left alone starts the countdown; anyone joining, or the bot
// leaving, cancels it. Further changes while the bot stays alone keep the
// countdown that is already running.
func (w *Watchdog) OnMembershipChange(guildID string) {
	name := jobName(guildID)
	others, connected := w.occupancy.Members(guildID)

	switch {
	case !connected:
		if w.jobs.Cancel(name) {
			w.log.Debug("bot left voice, idle countdown cleared", "guild", guildID)
		}
	case others > 0:
		if w.jobs.Cancel(name) {
			w.log.Info("listener joined, idle countdown cancelled", "guild", guildID, "listeners", others)
		}
	case w.jobs.Pending(name):
	default:
		w.log.Info("bot alone in voice channel", "guild", guildID, "delay", w.delay)
		w.jobs.Debounce(name, w.delay, func(ctx context.Context) error {
			return w.expire(guildID)
		})
	}
}

// expire re-checks membership and disconnects if the bot is still alone.
func (w *Watchdog) expire(guildID string) error {
	others, connected := w.occupancy.Members(guildID)
	if !connected || others > 0 {
		w.log.Debug("idle countdown expired but channel changed", "guild", guildID, "connected", connected, "listeners", others)
		return nil
	}

	w.log.Info("disconnecting from empty voice channel", "guild", guildID)
	err := w.occupancy.Disconnect(guildID)
	w.players.Reset(guildID)
	if err != nil {
		return fmt.Errorf("disconnecting from guild %s: %w", guildID, err)
	}
	return nil
}

// Pending reports whether an idle countdown is running for guildID.
func (w *Watchdog) Pending(guildID string) bool {
	return w.jobs.Pending(jobName(guildID))
}

// Shutdown cancels every countdown and waits for running ones.
func (w *Watchdog) Shutdown() {
	w.jobs.Shutdown()
}
