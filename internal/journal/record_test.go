package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/journal/internal/apperr"
	"github.com/starford/journal/internal/storage"
)

func newStore(t *testing.T) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func put(t *testing.T, s *storage.FS, rel, content string) string {
	t.Helper()
	if err := s.Write(rel, []byte(content)); err != nil {
		t.Fatal(err)
	}
	return s.Join(rel)
}

func read(t *testing.T, s *storage.FS, path string) string {
	t.Helper()
	data, err := s.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

const march5Entry = "---\ntags: [work]\n---\n# March 5, 2023\nNotes"

func TestReadRecord(t *testing.T) {
	s := newStore(t)
	path := put(t, s, "2023/03/2023-03-05.md", march5Entry)

	rec, err := NewReader(s).ReadRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if rec.FilePath != path {
		t.Errorf("FilePath = %q, want %q", rec.FilePath, path)
	}
	if rec.EntryDate() != march5 {
		t.Errorf("date = %s", rec.EntryDate())
	}
	if tags := rec.FrontMatter.Tags(); len(tags) != 1 || tags[0] != "work" {
		t.Errorf("tags = %v", tags)
	}
	if rec.Body != "# March 5, 2023\nNotes" {
		t.Errorf("body = %q", rec.Body)
	}
}

func TestReadRecord_RelativePath(t *testing.T) {
	s := newStore(t)
	abs := put(t, s, "2023/03/2023-03-05.md", march5Entry)
	rec, err := NewReader(s).ReadRecord("2023/03/2023-03-05.md")
	if err != nil {
		t.Fatal(err)
	}
	if rec.FilePath != abs {
		t.Errorf("FilePath = %q, want %q", rec.FilePath, abs)
	}
}

func TestReadRecord_NonCanonicalName(t *testing.T) {
	s := newStore(t)
	put(t, s, "misc/ideas.md", "---\ntags: [x]\n---\nbody")
	rec, err := NewReader(s).ReadRecord("misc/ideas.md")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.EntryDate().IsZero() {
		t.Errorf("date = %s, want zero", rec.EntryDate())
	}
}

func TestReadRecord_Missing(t *testing.T) {
	s := newStore(t)
	_, err := NewReader(s).ReadRecord("2023/03/2023-03-05.md")
	if !errors.Is(err, apperr.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestReadRecord_BadHeader(t *testing.T) {
	s := newStore(t)
	put(t, s, "2023/03/2023-03-05.md", "# March 5, 2023\nno header")
	_, err := NewReader(s).ReadRecord("2023/03/2023-03-05.md")
	if !errors.Is(err, apperr.ErrFrontMatterFormat) {
		t.Errorf("err = %v, want ErrFrontMatterFormat", err)
	}
}

func TestEntryFilePath_CreatesMonthDir(t *testing.T) {
	s := newStore(t)
	w := NewWriter(s)
	path, err := w.EntryFilePath(march5)
	if err != nil {
		t.Fatal(err)
	}
	if want := s.Join("2023", "03", "2023-03-05.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	// Directory exists now; the file does not.
	if w.EntryExists(path) {
		t.Error("file should not exist yet")
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("month dir missing: %v", err)
	}
}

func TestEntryFilePath_ZeroDate(t *testing.T) {
	if _, err := NewWriter(newStore(t)).EntryFilePath(Date{}); err == nil {
		t.Error("expected error for zero date")
	}
}

func TestCreateRecord(t *testing.T) {
	s := newStore(t)
	w := NewWriter(s)
	path, _ := w.EntryFilePath(march5)
	fm, _ := NewFrontMatter([]string{"work"}, "", march5)

	if err := w.CreateRecord(fm, path, march5); err != nil {
		t.Fatal(err)
	}
	content := read(t, s, path)
	if !strings.HasPrefix(content, "---\n") {
		t.Errorf("content = %q", content)
	}
	if !strings.HasSuffix(content, "---\n# March 5, 2023\n") {
		t.Errorf("content = %q", content)
	}
	if !w.EntryExists(path) {
		t.Error("EntryExists = false after create")
	}

	rec, err := NewReader(s).ReadRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.FrontMatter.Equal(fm) {
		t.Errorf("front matter = %v", rec.FrontMatter.Tags())
	}
}

func TestCreateRecord_NeverOverwrites(t *testing.T) {
	s := newStore(t)
	w := NewWriter(s)
	path := put(t, s, "2023/03/2023-03-05.md", march5Entry)
	fm, _ := NewFrontMatter([]string{"other"}, "", march5)

	err := w.CreateRecord(fm, path, march5)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
	if got := read(t, s, path); got != march5Entry {
		t.Errorf("existing file changed: %q", got)
	}
}

func TestRenameTag_KeepsBody(t *testing.T) {
	s := newStore(t)
	path := put(t, s, "2023/03/2023-03-05.md", march5Entry)
	r, w := NewReader(s), NewWriter(s)

	rec, err := r.ReadRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	updated, err := w.RenameTag(rec, "work", "job")
	if err != nil {
		t.Fatal(err)
	}
	if tags := updated.FrontMatter.Tags(); len(tags) != 1 || tags[0] != "job" {
		t.Errorf("returned tags = %v", tags)
	}

	content := read(t, s, path)
	if !strings.HasSuffix(content, "---\n# March 5, 2023\nNotes") {
		t.Errorf("body changed: %q", content)
	}
	reread, err := r.ReadRecord(path)
	if err != nil {
		t.Fatal(err)
	}
	if reread.Body != rec.Body {
		t.Errorf("body = %q, want %q", reread.Body, rec.Body)
	}
	if !reread.FrontMatter.HasTag("job") || reread.FrontMatter.HasTag("work") {
		t.Errorf("tags on disk = %v", reread.FrontMatter.Tags())
	}
}

func TestRenameTag_KeepsPosition(t *testing.T) {
	s := newStore(t)
	path := put(t, s, "2023/03/2023-03-05.md", "---\ntags: [a, b, c]\n---\nx")
	rec, _ := NewReader(s).ReadRecord(path)
	updated, err := NewWriter(s).RenameTag(rec, "b", "z")
	if err != nil {
		t.Fatal(err)
	}
	tags := updated.FrontMatter.Tags()
	if len(tags) != 3 || tags[0] != "a" || tags[1] != "z" || tags[2] != "c" {
		t.Errorf("tags = %v", tags)
	}
}

func TestRenameTag_Idempotent(t *testing.T) {
	s := newStore(t)
	path := put(t, s, "2023/03/2023-03-05.md", march5Entry)
	r, w := NewReader(s), NewWriter(s)

	rec, _ := r.ReadRecord(path)
	rec, err := w.RenameTag(rec, "work", "job")
	if err != nil {
		t.Fatal(err)
	}
	afterFirst := read(t, s, path)

	rec, err = w.RenameTag(rec, "job", "work")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = w.RenameTag(rec, "work", "job"); err != nil {
		t.Fatal(err)
	}
	if got := read(t, s, path); got != afterFirst {
		t.Errorf("second rename produced %q, want %q", got, afterFirst)
	}
}

func TestRenameTag_Errors(t *testing.T) {
	s := newStore(t)
	path := put(t, s, "2023/03/2023-03-05.md", "---\ntags: [work, life]\n---\nx")
	untagged := put(t, s, "2023/03/2023-03-06.md", "---\n---\nx")
	r, w := NewReader(s), NewWriter(s)
	rec, _ := r.ReadRecord(path)
	bare, _ := r.ReadRecord(untagged)

	cases := []struct {
		name     string
		rec      Record
		old, new string
		want     error
	}{
		{"blank old", rec, " ", "x", apperr.ErrInvalidTag},
		{"blank new", rec, "work", "", apperr.ErrInvalidTag},
		{"no tags", bare, "work", "job", apperr.ErrTagNotFound},
		{"absent", rec, "travel", "trip", apperr.ErrTagNotFound},
		{"case differs", rec, "Work", "job", apperr.ErrTagNotFound},
		{"new already present", rec, "work", "LIFE", apperr.ErrInvalidTag},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := w.RenameTag(tc.rec, tc.old, tc.new)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if got := read(t, s, path); got != "---\ntags: [work, life]\n---\nx" {
		t.Errorf("file modified by failed renames: %q", got)
	}
}

func TestRenameTag_ChangeCaseOfSameTag(t *testing.T) {
	s := newStore(t)
	path := put(t, s, "2023/03/2023-03-05.md", "---\ntags: [work]\n---\nx")
	rec, _ := NewReader(s).ReadRecord(path)
	updated, err := NewWriter(s).RenameTag(rec, "work", "Work")
	if err != nil {
		t.Fatal(err)
	}
	if tags := updated.FrontMatter.Tags(); tags[0] != "Work" {
		t.Errorf("tags = %v", tags)
	}
}

func TestRecord_EntryDateFromName(t *testing.T) {
	s := newStore(t)
	put(t, s, "2024/02/2024-02-29.md", "---\n---\n# February 29, 2024\n")
	rec, err := NewReader(s).ReadRecord("2024/02/2024-02-29.md")
	if err != nil {
		t.Fatal(err)
	}
	if rec.EntryDate() != MustDate(2024, time.February, 29) {
		t.Errorf("date = %s", rec.EntryDate())
	}
}
