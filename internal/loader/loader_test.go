package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type fakeExecer struct {
	sqls   []string
	failOn string // substring of the statement to fail
}

func (f *fakeExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("SQLSTATE 42601")
	}
	return pgconn.NewCommandTag("OK"), nil
}

type fakeCopier struct {
	sql     string
	payload []byte
	rows    int64
	err     error
}

func (f *fakeCopier) CopyFrom(_ context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	f.sql = sql
	b, err := io.ReadAll(r)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	f.payload = b
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("COPY %d", f.rows)), nil
}

func TestTableStatements(t *testing.T) {
	stmts := tableStatements("osm_border_linestring")

	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(stmts))
	}
	if stmts[0] != "DROP TABLE IF EXISTS osm_border_linestring CASCADE" {
		t.Errorf("drop = %q", stmts[0])
	}
	for _, col := range []string{
		"osm_id bigint",
		"admin_level int",
		"dividing_line bool",
		"disputed bool",
		"maritime bool",
		"geometry Geometry(LineString, 3857)",
	} {
		if !strings.Contains(stmts[1], col) {
			t.Errorf("create statement missing %q: %s", col, stmts[1])
		}
	}
	if stmts[2] != "CREATE INDEX ON osm_border_linestring USING gist (geometry)" {
		t.Errorf("index = %q", stmts[2])
	}
}

func TestCopySQL(t *testing.T) {
	got := copySQL("osm_border_linestring")
	want := `COPY osm_border_linestring FROM STDIN WITH (FORMAT csv, DELIMITER E'\t')`
	if got != want {
		t.Errorf("copySQL = %q, want %q", got, want)
	}
}

func TestReplaceTable(t *testing.T) {
	fake := &fakeExecer{}
	if err := replaceTable(context.Background(), fake, "borders"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.sqls) != 3 {
		t.Fatalf("got %d statements, want 3", len(fake.sqls))
	}
	if !strings.HasPrefix(fake.sqls[0], "DROP TABLE") {
		t.Errorf("first statement = %q, want DROP TABLE", fake.sqls[0])
	}
	if !strings.HasPrefix(fake.sqls[1], "CREATE TABLE") {
		t.Errorf("second statement = %q, want CREATE TABLE", fake.sqls[1])
	}
	if !strings.HasPrefix(fake.sqls[2], "CREATE INDEX") {
		t.Errorf("third statement = %q, want CREATE INDEX", fake.sqls[2])
	}
}

func TestReplaceTableStopsOnFailure(t *testing.T) {
	fake := &fakeExecer{failOn: "CREATE TABLE"}
	err := replaceTable(context.Background(), fake, "borders")
	if err == nil {
		t.Fatal("expected error but got none")
	}
	for _, sql := range fake.sqls {
		if strings.HasPrefix(sql, "CREATE INDEX") {
			t.Errorf("index created after table creation failed: %v", fake.sqls)
		}
	}
}

func TestCopyCSV(t *testing.T) {
	content := "101\t2\tfalse\tfalse\tfalse\t0102000020110F0000\n" +
		"102\t4\ttrue\tfalse\ttrue\t0102000020110F0001\n"
	path := filepath.Join(t.TempDir(), "lines.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}

	fake := &fakeCopier{rows: 2}
	rows, err := copyCSV(context.Background(), fake, "osm_border_linestring", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rows != 2 {
		t.Errorf("rows = %d, want 2", rows)
	}
	if string(fake.payload) != content {
		t.Errorf("COPY payload = %q, want file content", fake.payload)
	}
	if fake.sql != copySQL("osm_border_linestring") {
		t.Errorf("COPY sql = %q", fake.sql)
	}
}

func TestCopyCSVMissingFile(t *testing.T) {
	fake := &fakeCopier{}
	_, err := copyCSV(context.Background(), fake, "borders", filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("expected error but got none")
	}
}

func TestCopyCSVCopyFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.csv")
	if err := os.WriteFile(path, []byte("1\t2\tf\tf\tf\tgeom\n"), 0644); err != nil {
		t.Fatalf("failed to write CSV: %v", err)
	}

	fake := &fakeCopier{err: errors.New("server closed the connection")}
	_, err := copyCSV(context.Background(), fake, "borders", path)
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if !strings.Contains(err.Error(), "COPY failed") {
		t.Errorf("error = %q, want COPY failed context", err)
	}
}

func TestOpenCSV(t *testing.T) {
	t.Run("regular file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lines.csv")
		content := "1\t2\tfalse\ttrue\tfalse\tabc\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write CSV: %v", err)
		}

		r, closeCSV, err := openCSV(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeCSV()

		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(got) != content {
			t.Errorf("content = %q, want %q", got, content)
		}
	})

	// mmap rejects zero-length files; the fallback reader must serve them
	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.csv")
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("failed to write CSV: %v", err)
		}

		r, closeCSV, err := openCSV(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closeCSV()

		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("content = %q, want empty", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := openCSV(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
			t.Error("expected error but got none")
		}
	})
}
