package discord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/keshon/discodrome/internal/subsonic"
)

const (
	queuePageSize = 10
	// Discord caps embed descriptions at 4096 characters; leave room for the
	// "And N more..." footer.
	descriptionLimit = 4083
)

func trackLine(t subsonic.Track) string {
	return fmt.Sprintf("**%s** - *%s*\n%s (%s)", t.Title, t.Artist, t.Album, t.DurationString())
}

// queuePage renders one page of the queue, 1-based. page is clamped into
// range; the returned page is the one actually rendered.
func queuePage(current *subsonic.Track, queue []subsonic.Track, page int) (desc string, shown, pages int) {
	var b strings.Builder
	if current != nil {
		b.WriteString("**Now Playing:**\n")
		b.WriteString(trackLine(*current))
		b.WriteString("\n\n")
	}

	chunks := lo.Chunk(queue, queuePageSize)
	pages = max(len(chunks), 1)
	shown = min(max(page, 1), pages)

	if len(chunks) > 0 {
		offset := (shown - 1) * queuePageSize
		for i, t := range chunks[shown-1] {
			entry := fmt.Sprintf("%d. %s\n\n", offset+i+1, trackLine(t))
			if b.Len()+len(entry) >= descriptionLimit {
				fmt.Fprintf(&b, "**And %d more...**", len(queue)-offset-i)
				break
			}
			b.WriteString(entry)
		}
	}

	if b.Len() == 0 {
		return "Queue is empty!", shown, pages
	}
	return strings.TrimRight(b.String(), "\n"), shown, pages
}

func playlistsDescription(playlists []subsonic.PlaylistMeta) string {
	var b strings.Builder
	for i, p := range playlists {
		entry := fmt.Sprintf("%d. **%s**\n%d songs - %s\n\n", i+1, p.Name, p.SongCount, p.DurationString())
		if b.Len()+len(entry) >= descriptionLimit {
			fmt.Fprintf(&b, "**And %d more...**", len(playlists)-i)
			break
		}
		b.WriteString(entry)
	}
	if b.Len() == 0 {
		return "No playlists found."
	}
	return strings.TrimRight(b.String(), "\n")
}

func discographyDescription(artist string, albums []subsonic.Album) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n%d albums\n\n", artist, len(albums))
	for i, a := range albums {
		entry := fmt.Sprintf("**%d. %s**\n%d songs (%s)\n\n", i+1, a.Name, len(a.Tracks), a.DurationString())
		if b.Len()+len(entry) >= descriptionLimit {
			fmt.Fprintf(&b, "**And %d more...**", len(albums)-i)
			break
		}
		b.WriteString(entry)
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate keeps s within Discord's description limit.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= 4096 {
		return s
	}
	return string(r[:4093]) + "..."
}

// userError maps a client error to what users are allowed to see. API
// errors keep their code; everything else stays generic.
func userError(err error) string {
	var apiErr *subsonic.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("An API error has occurred and has been logged. Please contact an administrator. (code %d)", apiErr.Code)
	}
	return "An unknown error has occurred and has been logged. Please contact an administrator."
}
