package subsonic

import (
	"encoding/json"
	"fmt"
	"time"
)

// Placeholders used when the server leaves a field out.
const (
	UnknownTrack    = "Unknown Track"
	UnknownAlbum    = "Unknown Album"
	UnknownArtist   = "Unknown Artist"
	UnknownPlaylist = "Unknown Playlist"
)

// Track is a single playable song.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Album    string `json:"album"`
	Artist   string `json:"artist"`
	CoverID  string `json:"coverArt"`
	Duration int    `json:"duration"` // seconds
}

func (t *Track) UnmarshalJSON(data []byte) error {
	type plain Track
	v := plain{Title: UnknownTrack, Album: UnknownAlbum, Artist: UnknownArtist}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Track(v)
	return nil
}

// DurationString formats the duration as mm:ss.
func (t Track) DurationString() string { return minutes(t.Duration) }

// AlbumMeta is an album summary as returned by search and getArtist.
type AlbumMeta struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	CoverID   string `json:"coverArt"`
	SongCount int    `json:"songCount"`
	Duration  int    `json:"duration"`
	Year      int    `json:"year"`
}

func (a *AlbumMeta) UnmarshalJSON(data []byte) error {
	type plain AlbumMeta
	v := plain{Name: UnknownAlbum, Artist: UnknownArtist}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = AlbumMeta(v)
	return nil
}

func (a AlbumMeta) DurationString() string { return minutes(a.Duration) }

// Album is an album together with its tracks in disc order.
type Album struct {
	AlbumMeta
	Tracks []Track
}

func (a *Album) UnmarshalJSON(data []byte) error {
	if err := a.AlbumMeta.UnmarshalJSON(data); err != nil {
		return err
	}
	var body struct {
		Song []Track `json:"song"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	a.Tracks = nonNil(body.Song)
	return nil
}

// ArtistMeta is an artist summary.
type ArtistMeta struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CoverID    string `json:"coverArt"`
	AlbumCount int    `json:"albumCount"`
}

func (a *ArtistMeta) UnmarshalJSON(data []byte) error {
	type plain ArtistMeta
	v := plain{Name: UnknownArtist}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = ArtistMeta(v)
	return nil
}

// Artist is an artist with its albums. Albums coming from getArtist carry
// no tracks; Client.Discography fills them in.
type Artist struct {
	ArtistMeta
	Albums []Album
}

func (a *Artist) UnmarshalJSON(data []byte) error {
	if err := a.ArtistMeta.UnmarshalJSON(data); err != nil {
		return err
	}
	var body struct {
		Album []Album `json:"album"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	a.Albums = nonNil(body.Album)
	return nil
}

// PlaylistMeta is a playlist summary as returned by getPlaylists.
type PlaylistMeta struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CoverID   string `json:"coverArt"`
	SongCount int    `json:"songCount"`
	Duration  int    `json:"duration"`
}

func (p *PlaylistMeta) UnmarshalJSON(data []byte) error {
	type plain PlaylistMeta
	v := plain{Name: UnknownPlaylist}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PlaylistMeta(v)
	return nil
}

// DurationString formats the duration as h:mm:ss.
func (p PlaylistMeta) DurationString() string {
	d := time.Duration(p.Duration) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Playlist is a playlist with its entries.
type Playlist struct {
	PlaylistMeta
	Tracks []Track
}

func (p *Playlist) UnmarshalJSON(data []byte) error {
	if err := p.PlaylistMeta.UnmarshalJSON(data); err != nil {
		return err
	}
	var body struct {
		Entry []Track `json:"entry"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	p.Tracks = nonNil(body.Entry)
	return nil
}

// SearchResults holds the three categories of a search3 answer.
type SearchResults struct {
	Tracks  []Track      `json:"song"`
	Albums  []AlbumMeta  `json:"album"`
	Artists []ArtistMeta `json:"artist"`
}

// Empty reports whether nothing matched at all.
func (r SearchResults) Empty() bool {
	return len(r.Tracks) == 0 && len(r.Albums) == 0 && len(r.Artists) == 0
}

func minutes(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
