package player

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Factory builds the Player for a guild seen for the first time.
type Factory func(guildID string) *Player

// Registry maps guild ids to their Player. Players are created on first
// access and live for the rest of the process; the watchdog only resets
// their contents.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
	factory Factory
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		players: make(map[string]*Player),
		factory: factory,
	}
}

// Get returns the guild's Player, creating it if needed.
func (r *Registry) Get(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := r.factory(guildID)
	r.players[guildID] = p
	return p
}

// Lookup returns the guild's Player without creating one.
func (r *Registry) Lookup(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Reset hard-resets the guild's Player if it exists.
func (r *Registry) Reset(guildID string) {
	if p, ok := r.Lookup(guildID); ok {
		p.Reset()
	}
}

// Guilds lists the guild ids that have a Player.
func (r *Registry) Guilds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := lo.Keys(r.players)
	slices.Sort(ids)
	return ids
}
