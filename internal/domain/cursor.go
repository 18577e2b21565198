package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadCursor marks malformed or mismatched continuation tokens so the
// transport layer can map them to a client error.
var ErrBadCursor = errors.New("bad cursor")

// CursorKind distinguishes the two pagination cursor shapes.
type CursorKind int

const (
	// CursorScore resumes a scored tab below the last returned score.
	CursorScore CursorKind = iota
	// CursorTime resumes a chronological tab before the last returned
	// (createdAt, id) pair.
	CursorTime
)

// Cursor is the decoded form of an opaque continuation token. Both shapes
// are strict exclusive bounds: the next page contains only rows strictly
// below the cursor value.
type Cursor struct {
	Kind  CursorKind
	Score float64
	Time  time.Time
	ID    string
}

// EncodeScoreCursor encodes the score of the last returned row.
func EncodeScoreCursor(score float64) string {
	return "s::" + strconv.FormatFloat(score, 'g', -1, 64)
}

// EncodeTimeCursor encodes the (createdAt, id) of the last returned row.
func EncodeTimeCursor(t time.Time, id string) string {
	return fmt.Sprintf("t::%d::%s", t.UnixMilli(), id)
}

// ParseCursor decodes a cursor produced by one of the Encode functions.
func ParseCursor(cursor string) (Cursor, error) {
	parts := strings.SplitN(cursor, "::", 3)
	switch parts[0] {
	case "s":
		if len(parts) != 2 {
			return Cursor{}, fmt.Errorf("%w: score cursor must be 's::<score>'", ErrBadCursor)
		}
		score, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: invalid score: %v", ErrBadCursor, err)
		}
		return Cursor{Kind: CursorScore, Score: score}, nil
	case "t":
		if len(parts) != 3 {
			return Cursor{}, fmt.Errorf("%w: time cursor must be 't::<millis>::<id>'", ErrBadCursor)
		}
		millis, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: invalid timestamp: %v", ErrBadCursor, err)
		}
		return Cursor{Kind: CursorTime, Time: time.UnixMilli(millis), ID: parts[2]}, nil
	}
	return Cursor{}, fmt.Errorf("%w: unrecognized cursor %q", ErrBadCursor, cursor)
}
