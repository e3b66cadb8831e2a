// Package timetable turns a weekly timetable table into descriptive sentences,
// one paragraph per day, merging consecutive slots that hold the same unit.
package timetable

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSlot is returned when a column label is not in the slot vocabulary.
	ErrUnknownSlot = errors.New("unknown time slot")
	// ErrMalformedCell is returned when a non-blank cell lacks a course code and number.
	ErrMalformedCell = errors.New("malformed timetable cell")
)

// VenueNotProvided is written when a cell has no third token.
const VenueNotProvided = "Venue not provided"

// Slots is the fixed, ordered vocabulary of one-hour slots from 7am to 7pm.
var Slots = []string{
	"7-8am",
	"8-9am",
	"9-10am",
	"10-11am",
	"11-12pm",
	"12-1pm",
	"1-2pm",
	"2-3pm",
	"3-4pm",
	"4-5pm",
	"5-6pm",
	"6-7pm",
}

// SlotIndex returns the position of label in Slots, or -1.
func SlotIndex(label string) int {
	label = strings.TrimSpace(label)
	for i, s := range Slots {
		if s == label {
			return i
		}
	}
	return -1
}

// Table is a timetable grid. Header[0] labels the day column; the remaining
// header cells are slot labels. Each row starts with its day label.
type Table struct {
	Header []string
	Rows   [][]string
}

// CellError describes a cell that could not be parsed.
type CellError struct {
	Day     string
	Slot    string
	Content string
	Err     error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s at %s: %q: %v", e.Day, e.Slot, e.Content, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

// Entry is the parsed content of a timetable cell.
type Entry struct {
	Unit  string // Course code and name, e.g. "CS301 DataStructures"
	Venue string // Third token, or "" when absent
}

// ParseCell splits a cell on whitespace. The first two tokens form the unit;
// a third token, when present, is the venue.
func ParseCell(content string) (Entry, error) {
	fields := strings.Fields(content)
	if len(fields) < 2 {
		return Entry{}, fmt.Errorf("%w: need course code and name, got %d token(s)", ErrMalformedCell, len(fields))
	}
	e := Entry{Unit: fields[0] + " " + fields[1]}
	if len(fields) > 2 {
		e.Venue = fields[2]
	}
	return e, nil
}

// Formatter renders a Table as text.
type Formatter struct {
	// Title, when set, is written as a first line followed by a blank line.
	Title string
}

// Format writes one paragraph per row: an "On <day>:" header, a sentence per
// run of identical contiguous slots, and a trailing blank line.
func (f *Formatter) Format(t Table) (string, error) {
	if len(t.Header) == 0 {
		return "", fmt.Errorf("%w: timetable has no header row", ErrMalformedCell)
	}

	slots := t.Header[1:]
	indexes := make([]int, len(slots))
	for i, s := range slots {
		idx := SlotIndex(s)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q", ErrUnknownSlot, s)
		}
		indexes[i] = idx
	}

	var sb strings.Builder
	if f.Title != "" {
		sb.WriteString(f.Title)
		sb.WriteString("\n\n")
	}

	for _, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		day := strings.TrimSpace(row[0])
		sb.WriteString("On " + day + ":\n")

		var r run
		for i, slot := range slots {
			content := ""
			if i+1 < len(row) {
				content = strings.TrimSpace(row[i+1])
			}

			if content == "" {
				if r.open {
					if err := r.write(&sb, day); err != nil {
						return "", err
					}
				}
				r = run{}
				continue
			}

			if r.open && content == r.content && indexes[i] == r.lastIndex+1 {
				r.lastIndex = indexes[i]
				continue
			}

			if r.open {
				if err := r.write(&sb, day); err != nil {
					return "", err
				}
			}
			r = run{
				open:       true,
				content:    content,
				startSlot:  slot,
				startIndex: indexes[i],
				lastIndex:  indexes[i],
			}
		}
		if r.open {
			if err := r.write(&sb, day); err != nil {
				return "", err
			}
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// run is a maximal sequence of contiguous slots holding the same content.
type run struct {
	open       bool
	content    string
	startSlot  string
	startIndex int
	lastIndex  int
}

func (r *run) write(sb *strings.Builder, day string) error {
	entry, err := ParseCell(r.content)
	if err != nil {
		return &CellError{Day: day, Slot: r.startSlot, Content: r.content, Err: err}
	}
	venue := entry.Venue
	if venue == "" {
		venue = VenueNotProvided
	}
	fmt.Fprintf(sb, "From %s, the unit is %s, held in %s.\n", r.span(), entry.Unit, venue)
	return nil
}

// span merges the start of the first slot with the end of the last,
// e.g. "9-10am" through "10-11am" gives "9-11am".
func (r *run) span() string {
	start, _, _ := strings.Cut(Slots[r.startIndex], "-")
	_, end, _ := strings.Cut(Slots[r.lastIndex], "-")
	return start + "-" + end
}
