package player

import (
	"context"
	"slices"
	"testing"

	"github.com/keshon/discodrome/internal/music/autoplay"
)

func TestRegistry(t *testing.T) {
	created := 0
	sinks := map[string]*fakeSink{}
	r := NewRegistry(func(guildID string) *Player {
		created++
		sinks[guildID] = newFakeSink()
		engine := autoplay.NewEngine(&fakeSource{}, autoplay.WithLogger(quietLog))
		return New(guildID, sinks[guildID], &fakeStreams{}, engine, WithLogger(quietLog))
	})

	if _, ok := r.Lookup("g1"); ok {
		t.Fatal("Lookup created a player")
	}

	a := r.Get("g1")
	if r.Get("g1") != a || created != 1 {
		t.Fatalf("Get is not stable: created=%d", created)
	}
	b := r.Get("g2")
	if a == b || b.GuildID() != "g2" {
		t.Fatal("guilds share a player")
	}

	a.Enqueue(tracks("A", "B")...)
	a.PlayQueue(context.Background())
	b.Enqueue(tracks("X")...)

	r.Reset("g1")
	r.Reset("unknown")

	assertState(t, a, "")
	assertState(t, b, "", "X")
	if !slices.Equal(r.Guilds(), []string{"g1", "g2"}) {
		t.Errorf("Guilds = %v", r.Guilds())
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}
}
