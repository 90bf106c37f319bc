// Package stream plays a local PCM file into a voice connection: 20 ms
// frames of 48 kHz stereo s16le are opus-encoded and handed to a sink.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
	maxOpus    = frameSize * channels * 2
)

// Sink is the receiving end of an opus stream, usually a voice connection.
type Sink interface {
	Frames() chan<- []byte
	Speaking(bool) error
}

// Encoder turns one frame of PCM into an opus packet.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

func newOpusEncoder() (Encoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}
	return enc, nil
}

// Playback is a running output started by Start.
type Playback struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Stop ends output early. It is safe to call more than once and returns
// without waiting for the stream to wind down.
func (p *Playback) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Done is closed after onEnd has returned.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Start opens path and streams it to sink in the background. Opening errors
// are returned directly and onEnd is not called; otherwise onEnd runs exactly
// once, on its own goroutine, when the file ends, Stop is called, or
// streaming fails.
func Start(path string, sink Sink, onEnd func(error)) (*Playback, error) {
	enc, err := newOpusEncoder()
	if err != nil {
		return nil, err
	}
	return start(path, sink, enc, onEnd)
}

func start(path string, sink Sink, enc Encoder, onEnd func(error)) (*Playback, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}

	p := &Playback{stop: make(chan struct{}), done: make(chan struct{})}

	go func() {
		defer close(p.done)

		err := pump(f, sink, enc, p.stop)
		f.Close()
		if err != nil {
			log.Printf("[WARN] [Stream] %s: %v", path, err)
		}
		if onEnd != nil {
			onEnd(err)
		}
	}()

	return p, nil
}

func pump(r io.Reader, sink Sink, enc Encoder, stop <-chan struct{}) error {
	if err := sink.Speaking(true); err != nil {
		log.Printf("[WARN] [Stream] speaking on: %v", err)
	}
	defer func() {
		if err := sink.Speaking(false); err != nil {
			log.Printf("[WARN] [Stream] speaking off: %v", err)
		}
	}()

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)
	frames := sink.Frames()

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := io.ReadFull(r, pcmBuf)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			// pad the trailing partial frame with silence
			clear(pcmBuf[n:])
		case err != nil:
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, encErr := enc.Encode(intBuf, frameSize, maxOpus)
		if encErr != nil {
			return fmt.Errorf("encode error: %w", encErr)
		}

		select {
		case frames <- opus:
		case <-stop:
			return nil
		}

		if err != nil {
			return nil
		}
	}
}
