package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/keshon/discodrome/internal/subsonic"
)

type app struct {
	out       io.Writer
	client    *subsonic.Client
	newClient func() (*subsonic.Client, error)
}

func (a *app) table(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func (a *app) printTracks(tracks []subsonic.Track) {
	t := a.table(table.Row{"#", "ID", "Title", "Artist", "Album", "Length"})
	for i, tr := range tracks {
		t.AppendRow(table.Row{i + 1, tr.ID, tr.Title, tr.Artist, tr.Album, tr.DurationString()})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(tracks)})
	t.Render()
}

func (a *app) nothing(what string) {
	fmt.Fprintf(a.out, "No %s found\n", what)
}

func (a *app) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers with valid credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	var opts subsonic.SearchOptions
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search tracks, albums and artists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Search(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if res.Empty() {
				a.nothing("results")
				return nil
			}
			if len(res.Artists) > 0 {
				t := a.table(table.Row{"Artist ID", "Artist", "Albums"})
				for _, ar := range res.Artists {
					t.AppendRow(table.Row{ar.ID, ar.Name, ar.AlbumCount})
				}
				t.Render()
			}
			if len(res.Albums) > 0 {
				t := a.table(table.Row{"Album ID", "Album", "Artist", "Year", "Songs", "Length"})
				for _, al := range res.Albums {
					t.AppendRow(table.Row{al.ID, al.Name, al.Artist, al.Year, al.SongCount, al.DurationString()})
				}
				t.Render()
			}
			if len(res.Tracks) > 0 {
				a.printTracks(res.Tracks)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.SongCount, "tracks", 10, "maximum number of tracks")
	cmd.Flags().IntVar(&opts.AlbumCount, "albums", 5, "maximum number of albums")
	cmd.Flags().IntVar(&opts.ArtistCount, "artists", 5, "maximum number of artists")
	return cmd
}

func (a *app) playlistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "playlists",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pls, err := a.client.Playlists(cmd.Context())
			if err != nil {
				return err
			}
			if len(pls) == 0 {
				a.nothing("playlists")
				return nil
			}
			t := a.table(table.Row{"ID", "Name", "Songs", "Length"})
			for _, p := range pls {
				t.AppendRow(table.Row{p.ID, p.Name, p.SongCount, p.DurationString()})
			}
			t.Render()
			return nil
		},
	}
}

func (a *app) playlistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "playlist NAME",
		Short: "Show the tracks of a playlist by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := a.client.PlaylistByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if pl == nil {
				a.nothing("playlist")
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s)\n", pl.Name, pl.DurationString())
			a.printTracks(pl.Tracks)
			return nil
		},
	}
}

func (a *app) albumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "album QUERY",
		Short: "Show the first album matching QUERY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			al, err := a.client.SearchAlbum(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if al == nil {
				a.nothing("album")
				return nil
			}
			fmt.Fprintf(a.out, "%s - %s (%s)\n", al.Name, al.Artist, al.DurationString())
			a.printTracks(al.Tracks)
			return nil
		},
	}
}

func (a *app) discoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disco ARTIST",
		Short: "Show an artist's full discography",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			albums, err := a.client.Discography(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(albums) == 0 {
				a.nothing("discography")
				return nil
			}
			t := a.table(table.Row{"#", "Album ID", "Album", "Year", "Songs", "Length"})
			for i, al := range albums {
				t.AppendRow(table.Row{i + 1, al.ID, al.Name, al.Year, len(al.Tracks), al.DurationString()})
			}
			total := lo.SumBy(albums, func(al subsonic.Album) int { return len(al.Tracks) })
			t.AppendFooter(table.Row{"", "", "", "", "Total", total})
			t.Render()
			return nil
		},
	}
}

func (a *app) randomCmd() *cobra.Command {
	var opts subsonic.RandomOptions
	cmd := &cobra.Command{
		Use:   "random",
		Short: "Fetch random tracks the way RANDOM autoplay does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracks := a.client.RandomTracks(cmd.Context(), opts)
			if len(tracks) == 0 {
				a.nothing("tracks")
				return nil
			}
			a.printTracks(tracks)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Size, "size", 0, "number of tracks (server default when 0)")
	cmd.Flags().StringVar(&opts.Genre, "genre", "", "only tracks of this genre")
	cmd.Flags().IntVar(&opts.FromYear, "from", 0, "earliest year")
	cmd.Flags().IntVar(&opts.ToYear, "to", 0, "latest year")
	return cmd
}

func (a *app) similarCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "similar TRACK_ID",
		Short: "Fetch tracks similar to a track the way SIMILAR autoplay does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracks := a.client.SimilarTracks(cmd.Context(), args[0], count)
			if len(tracks) == 0 {
				a.nothing("tracks")
				return nil
			}
			a.printTracks(tracks)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of tracks")
	return cmd
}

func (a *app) coverCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "cover COVER_ID",
		Short: "Download cover art into the cache and print its path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, a.client.CoverArt(cmd.Context(), args[0], size))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", subsonic.DefaultCoverSize, "image size in pixels")
	return cmd
}

func (a *app) streamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream TRACK_ID",
		Short: "Resolve the playable stream URL of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client.StreamURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if u == "" {
				return fmt.Errorf("track %s is not playable", strconv.Quote(args[0]))
			}
			fmt.Fprintln(a.out, u)
			return nil
		},
	}
}
