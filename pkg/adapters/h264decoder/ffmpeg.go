package h264decoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/user/vidsurface/pkg/frame"
	"github.com/user/vidsurface/pkg/ports"
)

var (
	ffmpegPathMu     sync.Mutex
	customFFmpegPath string
)

// SetFFmpegPath overrides the ffmpeg binary used by new decoders.
func SetFFmpegPath(path string) {
	ffmpegPathMu.Lock()
	defer ffmpegPathMu.Unlock()
	customFFmpegPath = path
}

// IsAvailable reports whether the default ffmpeg backend can be used.
func IsAvailable() bool {
	_, err := findFFmpeg()
	return err == nil
}

// findFFmpeg searches for ffmpeg in PATH and common locations.
// If a custom path is set, it uses that path instead.
func findFFmpeg() (string, error) {
	ffmpegPathMu.Lock()
	custom := customFFmpegPath
	ffmpegPathMu.Unlock()

	if custom != "" {
		if _, err := os.Stat(custom); err == nil {
			return custom, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, custom)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	if runtime.GOOS == "windows" {
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	} else {
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/homebrew/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrFFmpegNotFound
}

// FFmpegBackend returns a factory running the ffmpeg binary at path. The
// process reads Annex-B on stdin and writes raw frames on stdout.
//
// Raw video carries no timestamps. ffmpeg runs with showall and error
// concealment so every picture yields a frame, and frames take the
// smallest outstanding picture timestamp in output order.
func FFmpegBackend(path string) BackendFactory {
	return func(f frame.Format, pool *frame.Pool) (Backend, error) {
		return startFFmpeg(path, f, pool)
	}
}

func ffmpegPixFmt(p frame.PixelFormat) string {
	if p == frame.FormatI420 {
		return "yuv420p"
	}
	return "bgra"
}

type ffmpegBackend struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	done   chan struct{}

	mu      sync.Mutex
	pending []time.Duration // ascending
	ready   []*frame.Buffer
	err     error
}

func startFFmpeg(path string, f frame.Format, pool *frame.Pool) (*ffmpegBackend, error) {
	cmd := exec.Command(path,
		"-hide_banner",
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-flags2", "+showall",
		"-ec", "guess_mvs+deblock+favor_inter",
		"-err_detect", "ignore_err",
		"-f", "h264",
		"-i", "pipe:0",
		"-vsync", "0",
		"-s", strconv.Itoa(f.Width)+"x"+strconv.Itoa(f.Height),
		"-f", "rawvideo",
		"-pix_fmt", ffmpegPixFmt(f.Pixel),
		"pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	b := &ffmpegBackend{
		cmd:    cmd,
		stdin:  stdin,
		stderr: &tailBuffer{max: 4096},
		done:   make(chan struct{}),
	}
	cmd.Stderr = b.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	go b.read(stdout, f, pool)
	return b, nil
}

// read collects frames from stdout until EOF.
func (b *ffmpegBackend) read(stdout io.Reader, f frame.Format, pool *frame.Pool) {
	defer close(b.done)
	for {
		buf, err := pool.Get(f, 0)
		if err != nil {
			b.fail(err)
			return
		}
		for i := 0; i < f.Pixel.PlaneCount() && err == nil; i++ {
			_, err = io.ReadFull(stdout, buf.Plane(i).Data)
		}
		if err != nil {
			buf.Release()
			if !errors.Is(err, io.EOF) {
				b.fail(err)
			}
			return
		}
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			buf.Release()
			continue
		}
		buf.PTS = b.pending[0]
		b.pending = b.pending[1:]
		b.ready = append(b.ready, buf)
		b.mu.Unlock()
	}
}

func (b *ffmpegBackend) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

func (b *ffmpegBackend) Write(data []byte, pts time.Duration, picture bool) error {
	select {
	case <-b.done:
		return fmt.Errorf("%w: ffmpeg exited: %s", ports.ErrCodecState, b.stderr)
	default:
	}
	if picture {
		b.mu.Lock()
		i := sort.Search(len(b.pending), func(i int) bool { return b.pending[i] > pts })
		b.pending = append(b.pending, 0)
		copy(b.pending[i+1:], b.pending[i:])
		b.pending[i] = pts
		b.mu.Unlock()
	}
	if _, err := b.stdin.Write(data); err != nil {
		return fmt.Errorf("%w: ffmpeg: %v: %s", ports.ErrCodecState, err, b.stderr)
	}
	return nil
}

func (b *ffmpegBackend) Frames() []*frame.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.ready
	b.ready = nil
	return out
}

func (b *ffmpegBackend) Finish() ([]*frame.Buffer, error) {
	b.stdin.Close()
	<-b.done
	werr := b.cmd.Wait()

	b.mu.Lock()
	out, err := b.ready, b.err
	b.ready = nil
	b.mu.Unlock()

	if err == nil && werr != nil {
		err = fmt.Errorf("ffmpeg: %v: %s", werr, b.stderr)
	}
	return out, err
}

func (b *ffmpegBackend) Close() error {
	b.stdin.Close()
	if b.cmd.Process != nil {
		b.cmd.Process.Kill()
	}
	<-b.done
	b.cmd.Wait()
	for _, f := range b.Frames() {
		f.Release()
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if extra := t.buf.Len() - t.max; extra > 0 {
		t.buf.Next(extra)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf.Bytes()))
}
