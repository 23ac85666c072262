package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

// ErrStopped is returned when a stream was halted before its end.
var ErrStopped = errors.New("stream stopped")

// StreamToDiscord encodes PCM from stream into opus frames on vc until the
// stream ends (nil) or stop is closed (ErrStopped).
func StreamToDiscord(stream io.Reader, stop <-chan struct{}, vc *discordgo.VoiceConnection) error {
	_ = vc.Speaking(true)
	defer vc.Speaking(false)

	return encode(stream, stop, vc.OpusSend)
}

func encode(stream io.Reader, stop <-chan struct{}, out chan<- []byte) error {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-stop:
			return ErrStopped
		default:
		}

		_, err := io.ReadFull(stream, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// A trailing partial frame is dropped.
			return nil
		}
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case out <- opus:
		case <-stop:
			return ErrStopped
		}
	}
}
