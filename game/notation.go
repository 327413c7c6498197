package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/gdicarlo/damasco/board"
)

// ParsePosition reads a compact draughts-FEN-like notation, e.g.
//
//	"W:Wc3,b4:Bd4,Ke5"
//
// The leading field is the side to move, then each side's pieces with a K
// prefix marking Ladies. An optional fourth field carries the quiet-move
// counter ("Q12"). The hash is computed from scratch.
func ParsePosition(s string) (Position, error) {
	var p Position
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) < 3 {
		return p, fmt.Errorf("notation %q: want at least 3 colon-separated fields", s)
	}
	switch strings.ToUpper(fields[0]) {
	case "W":
		p.ToMove = board.White
	case "B":
		p.ToMove = board.Black
	default:
		return p, fmt.Errorf("notation %q: bad side to move %q", s, fields[0])
	}

	for _, field := range fields[1:] {
		if field == "" {
			continue
		}
		if strings.HasPrefix(field, "Q") {
			var q int
			if _, err := fmt.Sscanf(field, "Q%d", &q); err != nil {
				return p, fmt.Errorf("notation %q: bad quiet counter %q", s, field)
			}
			p.Quiet = uint8(q)
			continue
		}
		var color board.Color
		switch field[0] {
		case 'W', 'w':
			color = board.White
		case 'B', 'b':
			color = board.Black
		default:
			return p, fmt.Errorf("notation %q: bad piece field %q", s, field)
		}
		for _, piece := range strings.Split(field[1:], ",") {
			if piece == "" {
				continue
			}
			kind := board.Pawn
			if piece[0] == 'K' {
				kind = board.Lady
				piece = piece[1:]
			}
			sq := board.SquareFromString(piece)
			if sq == board.NoSquare {
				return p, fmt.Errorf("notation %q: bad square %q", s, piece)
			}
			if p.Occupied()&sq.Bit() != 0 {
				return p, fmt.Errorf("notation %q: square %s occupied twice", s, sq)
			}
			p.Occ[color][kind] |= sq.Bit()
		}
	}
	p.Key = p.FullHash()
	return p, nil
}

// MustParsePosition is ParsePosition for tests and fixtures.
func MustParsePosition(s string) Position {
	p, err := ParsePosition(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Notation renders the position in the format ParsePosition reads.
func (p *Position) Notation() string {
	side := "W"
	if p.ToMove == board.Black {
		side = "B"
	}
	render := func(c board.Color) string {
		var pieces []string
		board.EachSquare(p.Occ[c][board.Pawn], func(sq board.Square) {
			pieces = append(pieces, sq.String())
		})
		board.EachSquare(p.Occ[c][board.Lady], func(sq board.Square) {
			pieces = append(pieces, "K"+sq.String())
		})
		sort.Strings(pieces)
		return strings.Join(pieces, ",")
	}
	parts := []string{side, "W" + render(board.White), "B" + render(board.Black)}
	if p.Quiet > 0 {
		parts = append(parts, fmt.Sprintf("Q%d", p.Quiet))
	}
	return strings.Join(parts, ":")
}

// Diagram draws an ASCII board, rank 8 on top, for logs and test failures.
func (p *Position) Diagram() string {
	glyphs := map[[2]int]rune{
		{int(board.White), int(board.Pawn)}: 'w',
		{int(board.White), int(board.Lady)}: 'W',
		{int(board.Black), int(board.Pawn)}: 'b',
		{int(board.Black), int(board.Lady)}: 'B',
	}
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d ", rank+1)
		for file := 0; file < 8; file++ {
			sq := board.Square(rank*8 + file)
			ch := '.'
			if c, k, ok := p.PieceAt(sq); ok {
				ch = glyphs[[2]int{int(c), int(k)}]
			}
			sb.WriteRune(ch)
			sb.WriteRune(' ')
		}
		sb.WriteRune('\n')
	}
	files := lo.Map([]rune("abcdefgh"), func(r rune, _ int) string { return string(r) })
	sb.WriteString("  " + strings.Join(files, " ") + "\n")
	return sb.String()
}
