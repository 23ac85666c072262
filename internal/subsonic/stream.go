package subsonic

import (
	"context"
	"errors"
	"io"
	"net/url"
)

// StreamURL resolves the playable URL for a track. The server either
// redirects to the media or streams it directly; in both cases the final
// request URL is what a decoder should open. An empty string means the
// server answered with a fault and the track cannot be played.
func (c *Client) StreamURL(ctx context.Context, trackID string) (string, error) {
	resp, err := c.get(ctx, "stream.view", url.Values{"id": {trackID}})
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) {
			return "", nil
		}
		return "", err
	}
	defer resp.Body.Close()

	if isEnvelope(resp.Header.Get("Content-Type")) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("stream fault", "track", trackID, "body", string(body))
		return "", nil
	}
	return resp.Request.URL.String(), nil
}
