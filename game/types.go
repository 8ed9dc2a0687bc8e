// Package game implements the authoritative, in-memory Battleship rules
// engine: board state, ship placement, move adjudication, and win
// detection. It performs no I/O and is not safe for concurrent use on a
// single *Game without the caller holding that Game's lock — the Engine
// enforces that locking per game_id (see Engine.lookup and entry.mu).
package game

import "time"

// BoardSize is the fixed width and height of every board.
const BoardSize = 10

// Orientation is the axis a ship extends along from its anchor cell.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// ShipLengths is the fixed inventory every player starts with: one 2,
// two 3s, one 4, one 5 — 17 cells total.
var ShipLengths = []int{2, 3, 3, 4, 5}

// Cell values on a player's own board.
const (
	CellEmpty = ""
	CellShip  = "S"
)

// Cell values on a player's hit grid (shots fired by that player).
const (
	HitNone = ""
	HitHit  = "X"
	HitMiss = "O"
)

// MoveResult names the outcome of a make_move call.
type MoveResult string

const (
	ResultMiss = MoveResult("MISS")
	ResultHit  = MoveResult("HIT")
	ResultSunk = MoveResult("SUNK")
	ResultWin  = MoveResult("WIN")
)

// Coord is a zero-based (column, row) position on a 10x10 board.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PlacedShip is one ship a player has committed to their board.
type PlacedShip struct {
	Coords []Coord `json:"coords"`
	Sunk   bool    `json:"sunk"`
}

func (s *PlacedShip) contains(c Coord) bool {
	for _, sc := range s.Coords {
		if sc == c {
			return true
		}
	}
	return false
}

// Board is a 10x10 grid of cell markers.
type Board [BoardSize][BoardSize]string

// Game is the full authoritative state of one match. Access must go
// through the owning Engine, which serializes calls per game_id.
type Game struct {
	ID      string
	Players [2]string

	boards [2]Board
	hits   [2]Board

	shipsLeft    [2]map[int]int
	placedShips  [2][]*PlacedShip
	ready        [2]bool
	turn         string
	winner       string
	createdAt    time.Time
}

// idx returns 0 or 1 for a participant, or -1 if player is not in the
// game.
func (g *Game) idx(player string) int {
	if g.Players[0] == player {
		return 0
	}
	if g.Players[1] == player {
		return 1
	}
	return -1
}

// Opponent returns the other participant's username.
func (g *Game) Opponent(player string) string {
	i := g.idx(player)
	if i == -1 {
		return ""
	}
	return g.Players[1-i]
}

// HasPlayer reports whether username participates in this game.
func (g *Game) HasPlayer(username string) bool {
	return g.idx(username) != -1
}

// Winner returns the winning username, or "" if the game is ongoing.
func (g *Game) Winner() string {
	return g.winner
}

// Turn returns whose move it currently is.
func (g *Game) Turn() string {
	return g.turn
}
