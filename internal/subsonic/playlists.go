package subsonic

import (
	"context"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Playlists lists the playlists the configured user may play. No playlists
// is an empty slice, not an error.
func (c *Client) Playlists(ctx context.Context) ([]PlaylistMeta, error) {
	body, err := c.call(ctx, "getPlaylists.view", nil)
	if err != nil {
		if soft(err) {
			return []PlaylistMeta{}, nil
		}
		return nil, err
	}
	if len(body.Playlists) == 0 {
		return []PlaylistMeta{}, nil
	}

	var list struct {
		Playlist []PlaylistMeta `json:"playlist"`
	}
	if err := c.decode("getPlaylists.view", body.Playlists, &list); err != nil {
		return []PlaylistMeta{}, nil
	}
	return nonNil(list.Playlist), nil
}

// Playlist fetches a playlist with its entries. A payload that cannot be
// parsed is logged and reported as nil.
func (c *Client) Playlist(ctx context.Context, id string) (*Playlist, error) {
	body, err := c.call(ctx, "getPlaylist.view", url.Values{"id": {id}})
	if err != nil {
		if soft(err) {
			return nil, nil
		}
		return nil, err
	}
	var pl Playlist
	if err := c.decode("getPlaylist.view", body.Playlist, &pl); err != nil {
		return nil, nil
	}
	return &pl, nil
}

// PlaylistByName finds a playlist by exact name (case-insensitive as a
// fallback) and fetches it, or returns nil.
func (c *Client) PlaylistByName(ctx context.Context, name string) (*Playlist, error) {
	all, err := c.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	meta, ok := lo.Find(all, func(p PlaylistMeta) bool { return p.Name == name })
	if !ok {
		meta, ok = lo.Find(all, func(p PlaylistMeta) bool { return strings.EqualFold(p.Name, name) })
	}
	if !ok {
		return nil, nil
	}
	return c.Playlist(ctx, meta.ID)
}
