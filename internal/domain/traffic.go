// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Reserved names of the persisted table.
const (
	// AggregateRow is the name of the synthetic row summing every repository.
	AggregateRow = "TOTAL"
	// TotalColumn is the name of the derived per-row total column.
	TotalColumn = "Total"
	// RepositoryHeader is the header of the first column.
	RepositoryHeader = "Repository"
)

// DateLayout is the canonical date layout used for column keys.
const DateLayout = "2006-01-02"

// Date is a calendar day in canonical YYYY-MM-DD form.
// Lexicographic order of Dates is chronological order.
type Date string

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s as a canonical date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days after d (n may be negative).
// An invalid date is returned unchanged.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

func (d Date) String() string { return string(d) }

// Cell is the (views, clones) pair for one repository on one date.
type Cell struct {
	Views  int `json:"views"`
	Clones int `json:"clones"`
}

// Add returns the elementwise sum of c and o.
func (c Cell) Add(o Cell) Cell {
	return Cell{Views: c.Views + o.Views, Clones: c.Clones + o.Clones}
}

// IsZero reports whether both counts are zero.
func (c Cell) IsZero() bool { return c.Views == 0 && c.Clones == 0 }

// String encodes the cell as "{views}({clones})".
func (c Cell) String() string {
	return strconv.Itoa(c.Views) + "(" + strconv.Itoa(c.Clones) + ")"
}

var cellPattern = regexp.MustCompile(`^(\d+)\((\d+)\)$`)

// ParseCell decodes the "{views}({clones})" form. Surrounding whitespace is ignored.
// ok is false when s does not match or a count overflows an int.
func ParseCell(s string) (c Cell, ok bool) {
	m := cellPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Cell{}, false
	}
	views, err := strconv.Atoi(m[1])
	if err != nil {
		return Cell{}, false
	}
	clones, err := strconv.Atoi(m[2])
	if err != nil {
		return Cell{}, false
	}
	return Cell{Views: views, Clones: clones}, true
}

// DecodeCell is the total form of ParseCell: anything that does not parse is the zero cell.
func DecodeCell(s string) Cell {
	c, _ := ParseCell(s)
	return c
}
