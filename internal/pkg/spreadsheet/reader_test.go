package spreadsheet

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/geclass/geclass/internal/pkg/apperrors"
)

var header = []interface{}{"data_id", "personal_code", "course_id", "pre_post", "start", "end", "privacy", "qcontrol", "q1_1"}

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestReadWorkbook(t *testing.T) {
	buf := workbook(t,
		header,
		[]interface{}{1, " ABC ", "xyzab", 1, "2001-01-05 10:00:00", "2001-01-05 10:20:00", 1, 4, 5},
		[]interface{}{},
		[]interface{}{2, "def", "xyzab", 2, "2001-02-05 10:00:00", "", 1, 3, ""},
	)
	rows, err := NewReader().Read(context.Background(), "export.xlsx", buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Number != 2 || rows[0].Get("personal_code") != "ABC" || rows[0].Get("q1_1") != "5" {
		t.Fatalf("row 0: %+v", rows[0])
	}
	if rows[1].Number != 4 || rows[1].Get("end") != "" {
		t.Fatalf("row 1: %+v", rows[1])
	}
}

func TestReadMissingColumn(t *testing.T) {
	buf := workbook(t, []interface{}{"personal_code", "course_id"})
	_, err := NewReader().Read(context.Background(), "export.xlsx", buf)
	if !errors.Is(err, apperrors.ErrMissingColumn) {
		t.Fatalf("err=%v", err)
	}
}

func TestReadCSV(t *testing.T) {
	in := "personal_code,course_id,pre_post,start,end,privacy,qcontrol\nabc,xyzab,1,2001-01-05,2001-01-06,1,4\n"
	rows, err := NewReader().Read(context.Background(), "export.CSV", strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Get("course_id") != "xyzab" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := NewReader().Read(context.Background(), "export.xlsx", strings.NewReader("not a workbook"))
	if !errors.Is(err, apperrors.ErrInvalidFileFormat) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2001-01-05 10:20:00", time.Date(2001, 1, 5, 10, 20, 0, 0, loc)},
		{"2001-01-05", time.Date(2001, 1, 5, 0, 0, 0, 0, loc)},
		{"05.01.2001 10:20", time.Date(2001, 1, 5, 10, 20, 0, 0, loc)},
		{"2001-01-05T10:20:00Z", time.Date(2001, 1, 5, 10, 20, 0, 0, time.UTC)},
		{"36896.5", time.Date(2001, 1, 5, 12, 0, 0, 0, loc)},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in, loc)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", c.in, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("ParseTimestamp(%q)=%s, want %s", c.in, got, c.want)
		}
	}
	if _, err := ParseTimestamp("yesterday", loc); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ParseTimestamp("", loc); err == nil {
		t.Fatal("expected error for empty cell")
	}
}
