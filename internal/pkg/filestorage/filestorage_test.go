package filestorage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

func TestStageCommitAndExists(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := ls.Exists("abcde"); err != nil || ok {
		t.Fatalf("Exists before commit = %v, %v", ok, err)
	}

	stage, err := ls.Stage()
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := ls.Exists("abcde"); ok {
		t.Fatal("staging directory must not count as report")
	}
	if err := os.WriteFile(filepath.Join(stage, "report.tex"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	final, err := ls.Commit(stage, "abcde")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(final, "report.tex")); err != nil {
		t.Fatalf("artifact missing after commit: %v", err)
	}
	if ok, _ := ls.Exists("abcde"); !ok {
		t.Fatal("report directory should exist after commit")
	}
}

func TestDiscardRemovesStaging(t *testing.T) {
	base := t.TempDir()
	ls, _ := NewLocalStorage(base)
	stage, _ := ls.Stage()
	ls.Discard(stage)
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Fatalf("left behind %d entries", len(entries))
	}
}

func TestMarkTerminal(t *testing.T) {
	ls, _ := NewLocalStorage(t.TempDir())
	if err := ls.MarkTerminal("empty", "SKIPPED_EMPTY"); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(ls.Path("empty"), StatusFile))
	if err != nil || strings.TrimSpace(string(b)) != "SKIPPED_EMPTY" {
		t.Fatalf("status=%q err=%v", b, err)
	}
}

type fakeS3 struct {
	s3iface.S3API
	keys []string
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if _, err := io.ReadAll(in.Body); err != nil {
		return nil, err
	}
	f.keys = append(f.keys, aws.StringValue(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func TestPublishUploadsEveryFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("pdf"), 0o644)
	os.MkdirAll(filepath.Join(dir, "plots"), 0o755)
	os.WriteFile(filepath.Join(dir, "plots", "you.png"), []byte("png"), 0o644)

	client := &fakeS3{}
	p := NewS3PublisherWithClient(client, "bucket", "reports")
	if err := p.Publish(context.Background(), dir, "abcde"); err != nil {
		t.Fatal(err)
	}
	sort.Strings(client.keys)
	want := []string{"reports/abcde/plots/you.png", "reports/abcde/report.pdf"}
	if strings.Join(client.keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys=%v", client.keys)
	}
}
