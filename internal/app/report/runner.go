package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/pkg/apperrors"
)

// Artifact names inside a report directory.
const (
	StatsFile = "stats.json"
	TeXFile   = "report.tex"
)

// Runner executes one external command in a working directory.
type Runner interface {
	Run(ctx context.Context, dir string, argv []string) error
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Run starts argv in dir and waits for it. Output is kept for the error message.
func (r ExecRunner) Run(ctx context.Context, dir string, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	r.Logger.Debug().Strs("argv", argv).Dur("took", time.Since(start)).Msg("External command finished")
	if err != nil {
		return fmt.Errorf("%w: %s: %v: %s", apperrors.ErrRenderFailed, argv[0], err, tail(out.Bytes(), 2048))
	}
	return nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}

// Commands are the external steps that turn stats.json and report.tex into a document.
type Commands struct {
	Plot  []string
	Build []string
	Clean []string
}

// Renderer writes the report inputs and drives the external commands.
type Renderer struct {
	runner   Runner
	commands Commands
	logger   zerolog.Logger
}

// NewRenderer creates a renderer
func NewRenderer(runner Runner, commands Commands, logger zerolog.Logger) *Renderer {
	return &Renderer{
		runner:   runner,
		commands: commands,
		logger:   logger,
	}
}

// Render writes stats.json and report.tex into dir and runs plot, build and clean there.
// A failing clean step is only logged.
func (r *Renderer) Render(ctx context.Context, dir string, data Data) error {
	if err := writeStats(filepath.Join(dir, StatsFile), data); err != nil {
		return err
	}
	if err := writeTeX(filepath.Join(dir, TeXFile), data); err != nil {
		return err
	}

	lgr := r.logger.With().Str("run_id", data.RunID).Str("course", data.Identifier).Logger()
	for _, argv := range [][]string{r.commands.Plot, r.commands.Build} {
		if err := r.runner.Run(ctx, dir, argv); err != nil {
			return err
		}
	}
	if err := r.runner.Run(ctx, dir, r.commands.Clean); err != nil {
		lgr.Warn().Err(err).Msg("Report clean step failed")
	}
	return nil
}

func writeStats(path string, data Data) error {
	b, err := json.MarshalIndent(data.Statistics, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func writeTeX(path string, data Data) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", TeXFile, err)
	}
	if err := WriteTeX(f, data); err != nil {
		f.Close()
		return errors.Join(apperrors.ErrRenderFailed, err)
	}
	return f.Close()
}
