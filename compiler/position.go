package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Source positions
// ---------------------------------------------------------------------------

// Position is a location inside source code. Line is zero based. Character
// is the zero based offset inside the line, counted in UTF-16 code units so
// positions can be handed to editor tooling unchanged.
type Position struct {
	Line      int
	Character int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Before reports whether p comes before other in the source.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// After reports whether p comes after other in the source.
func (p Position) After(other Position) bool {
	return other.Before(p)
}

// PositionOrdering locates a position relative to a range.
type PositionOrdering int

const (
	PositionBefore PositionOrdering = iota
	PositionInside
	PositionAfter
)

// CmpRange reports where p lies relative to r. The range end is exclusive.
func (p Position) CmpRange(r Range) PositionOrdering {
	if p.Before(r.Start) {
		return PositionBefore
	}
	if p.Before(r.End) {
		return PositionInside
	}
	return PositionAfter
}

// Range is a half open span of source text: [Start, End). A range that runs
// to the end of a line has End at character 0 of the next line.
type Range struct {
	Start Position
	End   Position
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// Contains reports whether pos lies inside r.
func (r Range) Contains(pos Position) bool {
	return pos.CmpRange(r) == PositionInside
}
