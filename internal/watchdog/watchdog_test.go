package watchdog

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

const delay = 40 * time.Millisecond

type fakeChannel struct {
	mu          sync.Mutex
	others      int
	connected   bool
	disconnects int
	err         error
}

func (f *fakeChannel) Members(string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.others, f.connected
}

func (f *fakeChannel) Disconnect(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	f.others = 0
	return f.err
}

func (f *fakeChannel) set(others int, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.others, f.connected = others, connected
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

type fakePlayers struct {
	mu     sync.Mutex
	resets []string
}

func (f *fakePlayers) Reset(guildID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, guildID)
}

func (f *fakePlayers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}

func newWatchdog(t *testing.T, ch *fakeChannel, players *fakePlayers) *Watchdog {
	t.Helper()
	w := New(ch, players, WithDelay(delay), WithLogger(log.New(io.Discard)))
	t.Cleanup(w.Shutdown)
	return w
}

func TestDisconnectsWhenLeftAlone(t *testing.T) {
	ch := &fakeChannel{connected: true}
	players := &fakePlayers{}
	w := newWatchdog(t, ch, players)

	w.OnMembershipChange("g1")
	if !w.Pending("g1") {
		t.Fatal("no countdown started")
	}
	time.Sleep(3 * delay)

	if ch.count() != 1 {
		t.Errorf("disconnects = %d, want 1", ch.count())
	}
	if players.count() != 1 || players.resets[0] != "g1" {
		t.Errorf("resets = %v", players.resets)
	}
	if w.Pending("g1") {
		t.Error("countdown still pending after firing")
	}
}

func TestJoinBeforeExpiryCancels(t *testing.T) {
	ch := &fakeChannel{connected: true}
	players := &fakePlayers{}
	w := newWatchdog(t, ch, players)

	w.OnMembershipChange("g1")
	time.Sleep(delay / 2)

	ch.set(1, true)
	w.OnMembershipChange("g1")
	if w.Pending("g1") {
		t.Error("countdown survived a join")
	}
	time.Sleep(3 * delay)

	if ch.count() != 0 || players.count() != 0 {
		t.Errorf("disconnects = %d resets = %d, want none", ch.count(), players.count())
	}
}

func TestExpiryRechecksMembership(t *testing.T) {
	ch := &fakeChannel{connected: true}
	players := &fakePlayers{}
	w := newWatchdog(t, ch, players)

	w.OnMembershipChange("g1")
	// Someone joins but the event is lost; the expiry check still sees them.
	ch.set(2, true)
	time.Sleep(3 * delay)

	if ch.count() != 0 || players.count() != 0 {
		t.Errorf("disconnects = %d resets = %d, want none", ch.count(), players.count())
	}
}

func TestOverlappingTriggersDisconnectOnce(t *testing.T) {
	ch := &fakeChannel{connected: true}
	players := &fakePlayers{}
	w := newWatchdog(t, ch, players)

	for range 5 {
		w.OnMembershipChange("g1")
		time.Sleep(delay / 10)
	}
	time.Sleep(3 * delay)
	w.OnMembershipChange("g1")
	time.Sleep(2 * delay)

	if ch.count() != 1 {
		t.Errorf("disconnects = %d, want 1", ch.count())
	}
	if players.count() != 1 {
		t.Errorf("resets = %d, want 1", players.count())
	}
}

func TestBotLeavingClearsCountdown(t *testing.T) {
	ch := &fakeChannel{connected: true}
	w := newWatchdog(t, ch, &fakePlayers{})

	w.OnMembershipChange("g1")
	ch.set(0, false)
	w.OnMembershipChange("g1")

	if w.Pending("g1") {
		t.Error("countdown pending after the bot left")
	}
}

func TestGuildsAreIndependent(t *testing.T) {
	ch := &fakeChannel{connected: true}
	players := &fakePlayers{}
	w := newWatchdog(t, ch, players)

	w.OnMembershipChange("g1")
	w.OnMembershipChange("g2")
	if !w.Pending("g1") || !w.Pending("g2") {
		t.Fatal("each guild needs its own countdown")
	}
}

func TestDisconnectErrorStillResets(t *testing.T) {
	ch := &fakeChannel{connected: true, err: errors.New("gateway closed")}
	players := &fakePlayers{}
	w := newWatchdog(t, ch, players)

	w.OnMembershipChange("g1")
	time.Sleep(3 * delay)

	if players.count() != 1 {
		t.Errorf("resets = %d, want 1", players.count())
	}
}
