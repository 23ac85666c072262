// Package stream turns stream URLs into opus frames on a Discord voice
// connection.
package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Opener opens url as raw PCM: signed 16-bit little endian, 48kHz, stereo.
// Closing the reader releases everything the opener started.
type Opener func(ctx context.Context, url string) (io.ReadCloser, error)

type ffmpegStream struct {
	io.ReadCloser
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

func (s *ffmpegStream) Close() error {
	s.cancel()
	_ = s.cmd.Wait()
	return nil
}

// FFmpegLink returns an Opener that lets ffmpeg fetch and decode the URL
// itself, reconnecting on dropped HTTP streams. ffmpeg warnings go to l.
func FFmpegLink(l *log.Logger) Opener {
	stderr := l.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}).Writer()

	return func(ctx context.Context, url string) (io.ReadCloser, error) {
		ctx, cancel := context.WithCancel(ctx)
		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-i", url,
			"-f", "s16le",
			"-ar", strconv.Itoa(sampleRate),
			"-ac", strconv.Itoa(channels),
			"-loglevel", "warning",
			"pipe:1",
		)
		cmd.Stderr = stderr

		reader, err := cmd.StdoutPipe()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("stdout pipe error: %w", err)
		}
		if err := cmd.Start(); err != nil {
			cancel()
			return nil, fmt.Errorf("command start error: %w", err)
		}
		return &ffmpegStream{ReadCloser: reader, cmd: cmd, cancel: cancel}, nil
	}
}
