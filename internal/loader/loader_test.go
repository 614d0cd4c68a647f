package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guttosm/isinmap/internal/domain/models"
	"github.com/guttosm/isinmap/internal/storage"
)

// fakeWriter stages batches and only commits them when fill succeeds.
type fakeWriter struct {
	replaced   int
	batches    [][]models.Security // committed
	staged     [][]models.Security
	replaceErr error
	insertErr  error
}

func (f *fakeWriter) ReplaceSecurities(ctx context.Context, fill func(context.Context, storage.SecurityBatchWriter) error) error {
	f.replaced++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.staged = nil
	if err := fill(ctx, f); err != nil {
		f.staged = nil
		return err
	}
	f.batches, f.staged = f.staged, nil
	return nil
}

func (f *fakeWriter) InsertSecuritiesBatch(_ context.Context, rows []models.Security) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.staged = append(f.staged, append([]models.Security(nil), rows...))
	return nil
}

func (f *fakeWriter) committedRows() int {
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return p
}

const header = "ticker\tissuer\tissue\tisin\n"

func rows(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("T\tISSUER\tFPO\tAU00000000")
		b.WriteByte(byte('0' + i%10))
		b.WriteString("\n")
	}
	return b.String()
}

func TestLoadFile_TableDriven(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name        string
		content     string
		batch       int
		wantErr     bool
		wantBatches int
		wantRows    int
		wantDupes   int
		wantReplace   int
	}{
		{name: "single batch", content: header + rows(3), batch: 5, wantBatches: 1, wantRows: 3, wantReplace: 1},
		{name: "exact multiple", content: header + rows(4), batch: 2, wantBatches: 2, wantRows: 4, wantReplace: 1},
		{name: "remainder batch", content: header + rows(5), batch: 2, wantBatches: 3, wantRows: 5, wantReplace: 1},
		{name: "duplicates counted", content: header + rows(12), batch: 100, wantBatches: 1, wantRows: 12, wantDupes: 2, wantReplace: 1},
		{name: "header only", content: header, batch: 5, wantBatches: 0, wantRows: 0, wantReplace: 1},
		{name: "default batch", content: header + rows(3), batch: 0, wantBatches: 1, wantRows: 3, wantReplace: 1},
		{name: "bad header", content: "a\tb\n", batch: 5, wantErr: true, wantReplace: 0},
		{name: "bad row", content: header + rows(2) + "X\tY\n", batch: 1, wantErr: true, wantReplace: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, dir, "isins.tsv", tc.content)
			w := &fakeWriter{}
			stats, err := LoadFile(context.Background(), path, w, tc.batch)
			if w.replaced != tc.wantReplace {
				t.Fatalf("replace calls: want %d got %d", tc.wantReplace, w.replaced)
			}
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				if n := w.committedRows(); n != 0 {
					t.Fatalf("failed load committed %d rows", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if stats.Rows != tc.wantRows || stats.Duplicates != tc.wantDupes {
				t.Fatalf("stats: want rows=%d dupes=%d got %+v", tc.wantRows, tc.wantDupes, stats)
			}
			if len(w.batches) != tc.wantBatches {
				t.Fatalf("batches: want %d got %d", tc.wantBatches, len(w.batches))
			}
		})
	}
}

func TestLoadFile_PreservesLineOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "isins.tsv", header+rows(5))
	w := &fakeWriter{}
	if _, err := LoadFile(context.Background(), path, w, 2); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	line := 0
	for _, b := range w.batches {
		for _, s := range b {
			line++
			if s.Line != line {
				t.Fatalf("want line %d got %d", line, s.Line)
			}
		}
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "isins.tsv", header+rows(50))

	if _, err := LoadFile(context.Background(), filepath.Join(dir, "missing.tsv"), &fakeWriter{}, 10); err == nil {
		t.Fatalf("expected open error")
	}

	boom := errors.New("copy failed")
	if _, err := LoadFile(context.Background(), path, &fakeWriter{insertErr: boom}, 10); !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}

	if _, err := LoadFile(context.Background(), path, &fakeWriter{replaceErr: boom}, 10); !errors.Is(err, boom) {
		t.Fatalf("expected replace error, got %v", err)
	}
}

func TestLoadFile_ContextCanceled(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "big.tsv", header+rows(1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &cancelAwareWriter{}
	if _, err := LoadFile(ctx, path, w, 10); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

type cancelAwareWriter struct{ fakeWriter }

func (c *cancelAwareWriter) ReplaceSecurities(ctx context.Context, fill func(context.Context, storage.SecurityBatchWriter) error) error {
	return c.fakeWriter.ReplaceSecurities(ctx, func(ctx context.Context, _ storage.SecurityBatchWriter) error {
		return fill(ctx, c)
	})
}

func (c *cancelAwareWriter) InsertSecuritiesBatch(ctx context.Context, rows []models.Security) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.fakeWriter.InsertSecuritiesBatch(ctx, rows)
}

func TestLoadFile_BadRowCommitsNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "isins.tsv", header+rows(4)+"X\tY\n")

	prev := []models.Security{{Line: 1, Ticker: "OLD", ISIN: "AU000000OLD0"}}
	w := &fakeWriter{batches: [][]models.Security{prev}}

	_, err := LoadFile(context.Background(), path, w, 2)
	if err == nil || !strings.Contains(err.Error(), "wrong number of fields") {
		t.Fatalf("expected field count error, got %v", err)
	}
	if w.replaced != 1 {
		t.Fatalf("replace calls: want 1 got %d", w.replaced)
	}
	if len(w.batches) != 1 || w.batches[0][0].Ticker != "OLD" {
		t.Fatalf("previous contents must survive a failed load, got %+v", w.batches)
	}
}

func TestLoadFile_CommitsEveryBatchOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "isins.tsv", header+rows(7))
	w := &fakeWriter{}

	stats, err := LoadFile(context.Background(), path, w, 3)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if w.replaced != 1 || len(w.batches) != 3 || w.committedRows() != 7 || stats.Rows != 7 {
		t.Fatalf("replaced=%d batches=%d rows=%d stats=%+v", w.replaced, len(w.batches), w.committedRows(), stats)
	}
}
