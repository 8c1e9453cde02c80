package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
	"github.com/geclass/geclass/internal/pkg/apperrors"
)

func TestEscape(t *testing.T) {
	got := Escape(`R&D 100% {fun}_~\`)
	want := `R\&D 100\% \{fun\}\_\textasciitilde{}\textbackslash{}`
	if got != want {
		t.Fatalf("Escape=%q, want %q", got, want)
	}
}

func sampleData() Data {
	return Data{
		RunID:       "run",
		Identifier:  "abcde",
		Name:        "Physik & Labor",
		GeneratedAt: time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC),
		Statistics: &models.ReportStatistics{
			Significance: 0.05,
			Counts:       models.ReportCounts{Pre: 12, Post: 10, Matched: 8, Reported: 16, Ratio: 0.5, SimilarMatched: 40},
			Overall: map[string]models.OverallStatistics{
				"you_pre": {CourseMean: survey.Value{Value: 0.5, Defined: true}},
			},
		},
	}
}

func TestWriteTeX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTeX(&buf, sampleData()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`Physik \& Labor`, "03.02.2001", "Zugeordnete Teilnehmende & 8", `50\,\%`, `0.50 & --`} {
		if !strings.Contains(out, want) {
			t.Fatalf("report.tex lacks %q:\n%s", want, out)
		}
	}
}

type fakeRunner struct {
	calls  [][]string
	failOn string
}

func (f *fakeRunner) Run(ctx context.Context, dir string, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	f.calls = append(f.calls, argv)
	if argv[0] == f.failOn {
		return apperrors.ErrRenderFailed
	}
	return nil
}

func TestRenderWritesInputsAndRunsCommands(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{failOn: "clean"}
	r := NewRenderer(runner, Commands{
		Plot:  []string{"plot", StatsFile},
		Build: []string{"build", TeXFile},
		Clean: []string{"clean"},
	}, zerolog.Nop())

	if err := r.Render(context.Background(), dir, sampleData()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("calls=%v", runner.calls)
	}
	b, err := os.ReadFile(filepath.Join(dir, StatsFile))
	if err != nil {
		t.Fatal(err)
	}
	var stats models.ReportStatistics
	if err := json.Unmarshal(b, &stats); err != nil || stats.Counts.Matched != 8 {
		t.Fatalf("stats=%+v err=%v", stats, err)
	}
}

func TestRenderStopsOnBuildFailure(t *testing.T) {
	runner := &fakeRunner{failOn: "build"}
	r := NewRenderer(runner, Commands{Plot: []string{"plot"}, Build: []string{"build"}, Clean: []string{"clean"}}, zerolog.Nop())
	err := r.Render(context.Background(), t.TempDir(), sampleData())
	if !errors.Is(err, apperrors.ErrRenderFailed) {
		t.Fatalf("err=%v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("clean must not run after a failed build: %v", runner.calls)
	}
}

func TestExecRunnerReportsExitStatus(t *testing.T) {
	r := ExecRunner{Timeout: 5 * time.Second, Logger: zerolog.Nop()}
	if err := r.Run(context.Background(), t.TempDir(), []string{"sh", "-c", "exit 0"}); err != nil {
		t.Fatalf("exit 0: %v", err)
	}
	err := r.Run(context.Background(), t.TempDir(), []string{"sh", "-c", "echo broken >&2; exit 3"})
	if !errors.Is(err, apperrors.ErrRenderFailed) || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("err=%v", err)
	}
}
