package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
)

var ErrNoVoiceConnection = errors.New("bot is not connected to a voice channel")

// VoiceLookup returns the guild's live voice connection, or nil.
type VoiceLookup func(guildID string) *discordgo.VoiceConnection

// SessionVoice looks voice connections up on a discordgo session.
func SessionVoice(s *discordgo.Session) VoiceLookup {
	return func(guildID string) *discordgo.VoiceConnection {
		s.RLock()
		defer s.RUnlock()
		return s.VoiceConnections[guildID]
	}
}

type playback struct {
	halt   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// stop halts the playback and waits for its goroutine. Safe to call any
// number of times, also after the playback ended on its own.
func (pb *playback) stop() {
	pb.once.Do(func() { close(pb.halt) })
	<-pb.exited
}

// DiscordSink plays one stream at a time into a guild's voice connection.
type DiscordSink struct {
	guildID string
	voice   VoiceLookup
	open    Opener
	log     *log.Logger

	playMu sync.Mutex // serialises Play
	mu     sync.Mutex
	active *playback
}

func NewDiscordSink(guildID string, voice VoiceLookup, open Opener, l *log.Logger) *DiscordSink {
	if l == nil {
		l = log.Default().WithPrefix("stream")
	}
	return &DiscordSink{
		guildID: guildID,
		voice:   voice,
		open:    open,
		log:     l.With("guild", guildID),
	}
}

// Play replaces whatever is playing with url. done runs after the stream
// reached its end or failed mid-way, never after it was stopped.
func (s *DiscordSink) Play(url string, done func()) (func(), error) {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	vc := s.voice(s.guildID)
	if vc == nil {
		return nil, ErrNoVoiceConnection
	}

	s.mu.Lock()
	prev := s.active
	s.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pcm, err := s.open(ctx, url)
	if err != nil {
		cancel()
		return nil, err
	}

	pb := &playback{halt: make(chan struct{}), exited: make(chan struct{})}
	s.mu.Lock()
	s.active = pb
	s.mu.Unlock()

	go func() {
		defer cancel()
		err := StreamToDiscord(pcm, pb.halt, vc)
		pcm.Close()

		switch {
		case errors.Is(err, ErrStopped):
			s.log.Debug("playback stopped")
		case err != nil:
			s.log.Error("playback finished with error", "err", err)
		default:
			s.log.Debug("playback finished")
		}

		s.mu.Lock()
		if s.active == pb {
			s.active = nil
		}
		s.mu.Unlock()
		close(pb.exited)

		if !errors.Is(err, ErrStopped) {
			done()
		}
	}()

	return pb.stop, nil
}

// Stop halts the current stream, if any, without calling its done.
func (s *DiscordSink) Stop() {
	s.mu.Lock()
	pb := s.active
	s.mu.Unlock()
	if pb != nil {
		pb.stop()
	}
}
