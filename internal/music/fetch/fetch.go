// Package fetch materialises a track as a local PCM file: yt-dlp pulls the
// best audio stream and ffmpeg transcodes it to signed 16-bit little-endian
// 48 kHz stereo, the format the voice stream consumes.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

var (
	ErrDownload     = errors.New("download failed")
	ErrSlowTransfer = errors.New("transfer too slow")
)

const (
	SampleRate = 48000
	Channels   = 2

	audioFormat = "bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best"
	stderrLimit = 4 << 10
)

type Config struct {
	// Dir holds one <key>.pcm file per key.
	Dir string
	// MinRate is the floor in bytes per second, enforced after MinBytes.
	MinRate  int64
	MinBytes int64
	Window   time.Duration
	// StallTimeout aborts a transfer that delivers nothing for this long.
	StallTimeout time.Duration
	// Proxy is passed to yt-dlp when set.
	Proxy      string
	FFmpegPath string
	// YTDLPPath overrides the yt-dlp binary go-ytdlp would resolve.
	YTDLPPath string
}

type Fetcher struct {
	cfg Config
	now func() time.Time
}

// New prepares the cache directory.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Dir == "" {
		cfg.Dir = "cache"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio cache dir: %w", err)
	}
	return &Fetcher{cfg: cfg, now: time.Now}, nil
}

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func safeKey(key string) string {
	return unsafeKey.ReplaceAllString(key, "_")
}

// Path returns where Fetch stores the file for key.
func (f *Fetcher) Path(key string) string {
	return filepath.Join(f.cfg.Dir, safeKey(key)+".pcm")
}

// Fetch downloads url and writes the transcoded audio to Path(key),
// replacing what was there only once the new file is complete. Every call
// writes to its own temporary file, so an abandoned fetch never touches the
// output of a later one for the same key.
func (f *Fetcher) Fetch(ctx context.Context, url, key string) (string, error) {
	dest := f.Path(key)

	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	out, err := os.CreateTemp(f.cfg.Dir, safeKey(key)+"-*.part")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}
	part := out.Name()
	defer os.Remove(part)

	ffmpeg := exec.CommandContext(ctx, f.cfg.FFmpegPath,
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)
	ffmpeg.Stdout = out
	ffmpeg.WaitDelay = 5 * time.Second
	ffStderr := &tailBuffer{limit: stderrLimit}
	ffmpeg.Stderr = ffStderr
	ffIn, err := ffmpeg.StdinPipe()
	if err != nil {
		out.Close()
		return "", fmt.Errorf("%w: ffmpeg stdin: %w", ErrDownload, err)
	}

	m := newMeter(ffIn, newRateFloor(f.cfg, f.now()), f.now, abort)

	dl := f.ytdlp().
		Format(audioFormat).
		Output("-").
		NoSimulate().
		NoPart().
		NoPlaylist().
		NoCheckCertificates().
		BuildCommand(ctx, url)
	dl.Stdout = m
	dl.WaitDelay = 5 * time.Second
	dlStderr := &tailBuffer{limit: stderrLimit}
	dl.Stderr = dlStderr

	if err := ffmpeg.Start(); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: start ffmpeg: %w", ErrDownload, err)
	}
	if err := dl.Start(); err != nil {
		ffIn.Close()
		_ = ffmpeg.Wait()
		out.Close()
		return "", fmt.Errorf("%w: start yt-dlp: %w", ErrDownload, err)
	}

	watchDone := make(chan struct{})
	go f.watch(ctx, m, watchDone)

	dlErr := dl.Wait()
	close(watchDone)
	ffIn.Close()
	ffErr := ffmpeg.Wait()
	closeErr := out.Close()

	if cause := context.Cause(ctx); errors.Is(cause, ErrSlowTransfer) {
		log.Printf("[WARN] [Fetch] %s aborted: %v", url, cause)
		return "", cause
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, context.Cause(ctx))
	}
	// A dead ffmpeg breaks the pipe under yt-dlp, so its error is the cause.
	if ffErr != nil {
		return "", fmt.Errorf("%w: ffmpeg: %w: %s", ErrDownload, ffErr, ffStderr.String())
	}
	if dlErr != nil {
		return "", fmt.Errorf("%w: yt-dlp: %w: %s", ErrDownload, dlErr, dlStderr.String())
	}
	if closeErr != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, closeErr)
	}
	if m.total() == 0 {
		return "", fmt.Errorf("%w: no audio received", ErrDownload)
	}

	if err := os.Rename(part, dest); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}
	log.Printf("[INFO] [Fetch] %s -> %s (%d bytes downloaded)", url, dest, m.total())
	return dest, nil
}

// watch trips the floor when the download goes quiet, since a silent
// process never calls Write.
func (f *Fetcher) watch(ctx context.Context, m *meter, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.check() != nil {
				return
			}
		}
	}
}

func (f *Fetcher) ytdlp() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()
	if f.cfg.YTDLPPath != "" {
		cmd.SetExecutable(f.cfg.YTDLPPath)
	}
	if f.cfg.Proxy != "" {
		cmd.Proxy(f.cfg.Proxy)
	}
	return cmd
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
