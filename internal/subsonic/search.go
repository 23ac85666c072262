package subsonic

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/keshon/discodrome/pkg/util"
)

// discographyWorkers bounds concurrent getAlbum calls.
const discographyWorkers = 4

// SearchOptions selects how many results of each category search3 returns.
// A zero count suppresses that category.
type SearchOptions struct {
	ArtistCount  int
	ArtistOffset int
	AlbumCount   int
	AlbumOffset  int
	SongCount    int
	SongOffset   int
}

// TracksOnly asks for up to n tracks and nothing else.
func TracksOnly(n int) SearchOptions {
	return SearchOptions{SongCount: n}
}

func (o SearchOptions) values(query string) url.Values {
	return url.Values{
		"query":        {query},
		"artistCount":  {strconv.Itoa(o.ArtistCount)},
		"artistOffset": {strconv.Itoa(o.ArtistOffset)},
		"albumCount":   {strconv.Itoa(o.AlbumCount)},
		"albumOffset":  {strconv.Itoa(o.AlbumOffset)},
		"songCount":    {strconv.Itoa(o.SongCount)},
		"songOffset":   {strconv.Itoa(o.SongOffset)},
	}
}

// Search runs a free text search3 query.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (SearchResults, error) {
	empty := SearchResults{Tracks: []Track{}, Albums: []AlbumMeta{}, Artists: []ArtistMeta{}}

	body, err := c.call(ctx, "search3.view", opts.values(query))
	if err != nil {
		if soft(err) {
			return empty, nil
		}
		return empty, err
	}
	if len(body.SearchResult3) == 0 {
		return empty, nil
	}

	var res SearchResults
	if err := c.decode("search3.view", body.SearchResult3, &res); err != nil {
		return empty, nil
	}
	res.Tracks = nonNil(res.Tracks)
	res.Albums = nonNil(res.Albums)
	res.Artists = nonNil(res.Artists)
	return res, nil
}

// ArtistID returns the id of the best artist match for name, or "".
func (c *Client) ArtistID(ctx context.Context, name string) (string, error) {
	res, err := c.Search(ctx, name, SearchOptions{ArtistCount: 1})
	if err != nil {
		return "", err
	}
	if len(res.Artists) == 0 {
		c.log.Info("no artist match", "query", name)
		return "", nil
	}
	return res.Artists[0].ID, nil
}

// Album fetches an album with its tracks, or nil.
func (c *Client) Album(ctx context.Context, id string) (*Album, error) {
	body, err := c.call(ctx, "getAlbum.view", url.Values{"id": {id}})
	if err != nil {
		if soft(err) {
			return nil, nil
		}
		return nil, err
	}
	var album Album
	if err := c.decode("getAlbum.view", body.Album, &album); err != nil {
		return nil, nil
	}
	return &album, nil
}

// SearchAlbum returns the first album matching query with its tracks, or nil.
func (c *Client) SearchAlbum(ctx context.Context, query string) (*Album, error) {
	res, err := c.Search(ctx, query, SearchOptions{AlbumCount: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Albums) == 0 {
		return nil, nil
	}
	return c.Album(ctx, res.Albums[0].ID)
}

// Artist fetches an artist and its album list (without tracks), or nil.
func (c *Client) Artist(ctx context.Context, id string) (*Artist, error) {
	body, err := c.call(ctx, "getArtist.view", url.Values{"id": {id}})
	if err != nil {
		if soft(err) {
			return nil, nil
		}
		return nil, err
	}
	var artist Artist
	if err := c.decode("getArtist.view", body.Artist, &artist); err != nil {
		return nil, nil
	}
	return &artist, nil
}

// errAlbumMissing aborts a discography when one album cannot be fetched.
var errAlbumMissing = errors.New("album missing")

// Discography resolves an artist by name and returns every album with its
// tracks, in the order the server lists them. It is all or nothing: if any
// single album cannot be fetched the whole discography is dropped (nil, nil
// for a missing album, the error for a fatal one).
func (c *Client) Discography(ctx context.Context, artistName string) ([]Album, error) {
	id, err := c.ArtistID(ctx, artistName)
	if err != nil || id == "" {
		return nil, err
	}
	artist, err := c.Artist(ctx, id)
	if err != nil || artist == nil {
		return nil, err
	}

	albums, err := util.ParallelMap(ctx, artist.Albums, discographyWorkers, func(ctx context.Context, meta Album) (Album, error) {
		album, err := c.Album(ctx, meta.ID)
		if err != nil {
			return Album{}, err
		}
		if album == nil {
			return Album{}, fmt.Errorf("%w: %s", errAlbumMissing, meta.ID)
		}
		return *album, nil
	})
	if err != nil {
		if errors.Is(err, errAlbumMissing) {
			c.log.Warn("discarding discography", "artist", artistName, "err", err)
			return nil, nil
		}
		c.log.Error("discography failed", "artist", artistName, "err", err)
		return nil, err
	}
	return albums, nil
}
