// Package audio post-processes synthesised speech with ffmpeg.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const (
	DefaultSpeed   = 1.25
	DefaultCodec   = "libopus"
	DefaultBitrate = "64k"
	DefaultFormat  = "opus"
)

// Runner executes a command feeding stdin and returning stdout.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(lastLine(stderr.String())))
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

type Options struct {
	Speed   float64
	Codec   string
	Bitrate string
	Format  string
}

// Processor speeds up and re-encodes audio through an ffmpeg pipe.
type Processor struct {
	bin  string
	run  Runner
	opts Options
}

func NewProcessor(bin string, opts Options) *Processor {
	return NewProcessorWithRunner(bin, opts, execRunner)
}

func NewProcessorWithRunner(bin string, opts Options, run Runner) *Processor {
	if bin == "" {
		bin = "ffmpeg"
	}
	if opts.Speed == 0 {
		opts.Speed = DefaultSpeed
	}
	if opts.Codec == "" {
		opts.Codec = DefaultCodec
	}
	if opts.Bitrate == "" {
		opts.Bitrate = DefaultBitrate
	}
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}
	return &Processor{bin: bin, run: run, opts: opts}
}

// Args returns the ffmpeg argument list used by Process.
func (p *Processor) Args() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-filter:a", fmt.Sprintf("atempo=%g", p.opts.Speed),
		"-acodec", p.opts.Codec,
	}
	// mp3 uses VBR quality instead of a fixed bitrate
	if p.opts.Codec == "libmp3lame" {
		args = append(args, "-q:a", "4")
	} else {
		args = append(args, "-b:a", p.opts.Bitrate)
	}
	return append(args, "-f", p.opts.Format, "-vn", "pipe:1")
}

func (p *Processor) Process(ctx context.Context, in []byte) ([]byte, error) {
	out, err := p.run(ctx, in, p.bin, p.Args()...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return out, nil
}

// Format is the container the processor emits.
func (p *Processor) Format() string { return p.opts.Format }
