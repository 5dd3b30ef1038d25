package adapter

import (
	"context"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Speaker plays 24kHz mono PCM16LE.
type Speaker interface {
	io.Writer
	// Reset drops audio buffered by the device but not yet played
	Reset() error
	Close() error
}

// Devices acquires the local audio endpoints for a call.
type Devices interface {
	Microphone(ctx context.Context) (io.ReadCloser, error)
	Speaker(ctx context.Context) (Speaker, error)
}

// FFmpegDevices captures with ffmpeg and plays with ffplay.
type FFmpegDevices struct {
	Input string
}

func NewFFmpegDevices(input string) *FFmpegDevices {
	return &FFmpegDevices{Input: input}
}

func (d *FFmpegDevices) Microphone(ctx context.Context) (io.ReadCloser, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, goerr.Wrap(model.ErrDevice, "ffmpeg is required for microphone capture")
	}
	args, err := micArgs(runtime.GOOS, d.Input)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, goerr.Wrap(model.ErrDevice, "failed to open ffmpeg stdout", goerr.V("cause", err.Error()))
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, goerr.Wrap(model.ErrDevice, "failed to start microphone capture", goerr.V("cause", err.Error()))
	}

	return &processReader{cmd: cmd, stdout: stdout}, nil
}

func micArgs(goos, input string) ([]string, error) {
	var source []string
	switch goos {
	case "darwin":
		if input == "" {
			input = ":0"
		}
		source = []string{"-f", "avfoundation", "-i", input}
	case "linux":
		if input == "" {
			input = "default"
		}
		source = []string{"-f", "pulse", "-i", input}
	default:
		return nil, goerr.Wrap(model.ErrDevice, "microphone capture is not supported on this platform", goerr.V("os", goos))
	}

	args := append([]string{"-hide_banner", "-loglevel", "error"}, source...)
	return append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(model.CaptureSampleRate),
		"-f", "s16le", "-",
	), nil
}

type processReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
}

func (p *processReader) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *processReader) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
			_ = p.cmd.Wait()
		}
	})
	return nil
}

func (d *FFmpegDevices) Speaker(ctx context.Context) (Speaker, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, goerr.Wrap(model.ErrDevice, "ffplay is required for playback")
	}
	s := &ffplaySpeaker{}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

type ffplaySpeaker struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// start must be called with mu held or before the speaker is shared.
func (s *ffplaySpeaker) start() error {
	s.cmd = exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(model.PlaybackSampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return goerr.Wrap(model.ErrDevice, "failed to open ffplay stdin", goerr.V("cause", err.Error()))
	}
	s.cmd.Stdout = io.Discard
	s.cmd.Stderr = io.Discard
	if err := s.cmd.Start(); err != nil {
		return goerr.Wrap(model.ErrDevice, "failed to start ffplay", goerr.V("cause", err.Error()))
	}
	s.stdin = stdin
	return nil
}

func (s *ffplaySpeaker) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.stdin = nil
}

func (s *ffplaySpeaker) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return 0, io.ErrClosedPipe
	}
	return s.stdin.Write(b)
}

// Reset restarts ffplay, which is the only way to drop its buffer.
func (s *ffplaySpeaker) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return nil
	}
	s.stop()
	return s.start()
}

func (s *ffplaySpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return nil
}
