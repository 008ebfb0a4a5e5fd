package journal

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/starford/journal/internal/apperr"
)

const (
	// DateLayout is the canonical YYYY-MM-DD form used in file names.
	DateLayout = "2006-01-02"
	// DisplayLayout renders the heading line of an entry, e.g. "March 5, 2023".
	DisplayLayout = "January 2, 2006"
	// EntryExtension is the extension of every entry file.
	EntryExtension = ".md"
)

var entryFileNameRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})\.md$`)

// Date is a calendar date without time of day or zone. The zero value means
// "no date".
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate returns the date for year, month and day. Impossible dates such as
// February 30th and years outside 1..9999 are rejected.
func NewDate(year int, month time.Month, day int) (Date, error) {
	if year < 1 || year > 9999 {
		return Date{}, fmt.Errorf("journal: year %d out of range", year)
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, fmt.Errorf("journal: invalid date %04d-%02d-%02d", year, int(month), day)
	}
	return Date{year: year, month: month, day: day}, nil
}

// MustDate is NewDate for literals; it panics on an invalid date.
func MustDate(year int, month time.Month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string. It accepts the same years as
// NewDate, so every parsed date names a readable entry file.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("journal: invalid date %q (expected YYYY-MM-DD)", s)
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) Year() int          { return d.year }
func (d Date) Month() time.Month  { return d.month }
func (d Date) Day() int           { return d.day }
func (d Date) IsZero() bool       { return d == Date{} }
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Compare returns -1, 0 or +1 as d is before, equal to, or after o.
func (d Date) Compare(o Date) int {
	switch {
	case d.year != o.year:
		return cmpInt(d.year, o.year)
	case d.month != o.month:
		return cmpInt(int(d.month), int(o.month))
	default:
		return cmpInt(d.day, o.day)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// Display returns the human-readable form used in entry headings.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DisplayLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// YearDirectoryName returns the zero-padded year directory for d.
func YearDirectoryName(d Date) string {
	return fmt.Sprintf("%04d", d.year)
}

// MonthDirectoryName returns the zero-padded month directory for d.
func MonthDirectoryName(d Date) string {
	return fmt.Sprintf("%02d", int(d.month))
}

// EntryFileName returns the canonical file name for d.
func EntryFileName(d Date) string {
	return d.String() + EntryExtension
}

// EntryRelPath returns YYYY/MM/YYYY-MM-DD.md for d, relative to the root.
func EntryRelPath(d Date) string {
	return filepath.Join(YearDirectoryName(d), MonthDirectoryName(d), EntryFileName(d))
}

// DateFromFileName derives the entry date from a file name or path. Names
// that are not canonical fail with apperr.ErrMalformedName.
func DateFromFileName(name string) (Date, error) {
	base := filepath.Base(name)
	m := entryFileNameRe.FindStringSubmatch(base)
	if m == nil {
		return Date{}, fmt.Errorf("%w: %q", apperr.ErrMalformedName, base)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d, err := NewDate(year, time.Month(month), day)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", apperr.ErrMalformedName, base)
	}
	return d, nil
}

// DateRange is an inclusive range of dates. A zero From is unbounded in the
// past and a zero To is unbounded in the future.
type DateRange struct {
	From Date
	To   Date
}

// NewDateRange validates from <= to.
func NewDateRange(from, to Date) (DateRange, error) {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return DateRange{}, fmt.Errorf("%w: %s is after %s", apperr.ErrInvalidRange, from, to)
	}
	return DateRange{From: from, To: to}, nil
}

// Contains reports whether d falls within r, bounds included.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}
