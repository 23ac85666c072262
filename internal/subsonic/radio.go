package subsonic

import (
	"context"
	"net/url"
	"strconv"
)

// RandomOptions filters getRandomSongs. Zero values are left out so the
// server applies its defaults.
type RandomOptions struct {
	Size          int
	Genre         string
	FromYear      int
	ToYear        int
	MusicFolderID string
}

func (o RandomOptions) values() url.Values {
	v := url.Values{}
	if o.Size > 0 {
		v.Set("size", strconv.Itoa(o.Size))
	}
	if o.Genre != "" {
		v.Set("genre", o.Genre)
	}
	if o.FromYear > 0 {
		v.Set("fromYear", strconv.Itoa(o.FromYear))
	}
	if o.ToYear > 0 {
		v.Set("toYear", strconv.Itoa(o.ToYear))
	}
	if o.MusicFolderID != "" {
		v.Set("musicFolderId", o.MusicFolderID)
	}
	return v
}

// RandomTracks returns random tracks. Any failure yields an empty slice so
// autoplay degrades instead of interrupting playback.
func (c *Client) RandomTracks(ctx context.Context, opts RandomOptions) []Track {
	c.log.Debug("requesting random tracks", "size", opts.Size, "genre", opts.Genre)

	body, err := c.call(ctx, "getRandomSongs.view", opts.values())
	if err != nil {
		c.log.Warn("random tracks unavailable", "err", err)
		return []Track{}
	}
	return c.songList("getRandomSongs.view", body.RandomSongs)
}

// SimilarTracks returns up to count tracks similar to trackID. An empty
// trackID or any failure yields an empty slice.
func (c *Client) SimilarTracks(ctx context.Context, trackID string, count int) []Track {
	if trackID == "" {
		return []Track{}
	}
	if count <= 0 {
		count = 1
	}
	c.log.Debug("requesting similar tracks", "track", trackID, "count", count)

	body, err := c.call(ctx, "getSimilarSongs.view", url.Values{
		"id":    {trackID},
		"count": {strconv.Itoa(count)},
	})
	if err != nil {
		c.log.Warn("similar tracks unavailable", "track", trackID, "err", err)
		return []Track{}
	}
	return c.songList("getSimilarSongs.view", body.SimilarSongs)
}

// songList decodes {"song": [...]} wrappers; {} means no songs.
func (c *Client) songList(name string, raw []byte) []Track {
	if len(raw) == 0 {
		return []Track{}
	}
	var list struct {
		Song []Track `json:"song"`
	}
	if err := c.decode(name, raw, &list); err != nil {
		return []Track{}
	}
	if len(list.Song) == 0 {
		c.log.Debug("no tracks returned", "endpoint", name)
	}
	return nonNil(list.Song)
}
