package game

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Engine is the process-wide, supervised registry of live games. It is
// the only component allowed to mutate a *Game; every exported method
// takes and releases that game's lock internally, so calls on
// different game_ids never block each other (spec: never a global
// lock).
type Engine struct {
	mu    sync.RWMutex
	games map[string]*entry
	rand  *rand.Rand
	randMu sync.Mutex
}

type entry struct {
	mu   sync.Mutex
	game *Game
}

// NewEngine builds an empty engine.
func NewEngine() *Engine {
	return &Engine{
		games: make(map[string]*entry),
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GameID canonicalizes an unordered player pair into the deterministic
// game identifier.
func GameID(p1, p2 string) string {
	pair := []string{p1, p2}
	sort.Strings(pair)
	return "game-" + pair[0] + "-" + pair[1]
}

func newShipsLeft() map[int]int {
	m := make(map[int]int)
	for _, l := range ShipLengths {
		m[l]++
	}
	return m
}

func (e *Engine) pickTurn(p1, p2 string) string {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	if e.rand.Intn(2) == 0 {
		return p1
	}
	return p2
}

// CreateGame initializes a fresh game under game_id = GameID(p1, p2),
// overwriting any existing entry (used both for the initial invite
// acceptance and for a rematch reset). turn is chosen uniformly at
// random between the two players.
func (e *Engine) CreateGame(p1, p2 string) *Game {
	id := GameID(p1, p2)
	g := &Game{
		ID:        id,
		Players:   [2]string{p1, p2},
		createdAt: time.Now(),
	}
	g.shipsLeft[0] = newShipsLeft()
	g.shipsLeft[1] = newShipsLeft()
	g.turn = e.pickTurn(p1, p2)

	e.mu.Lock()
	e.games[id] = &entry{game: g}
	e.mu.Unlock()

	return g
}

func (e *Engine) lookup(gameID string) *entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.games[gameID]
}

// GetGame returns a read-only snapshot pointer to the live game, or nil
// if it does not exist. Callers must not mutate the returned value;
// use the Engine's mutating methods instead.
func (e *Engine) GetGame(gameID string) *Game {
	en := e.lookup(gameID)
	if en == nil {
		return nil
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	cp := *en.game
	return &cp
}

// FindGameFor scans live games for one containing username, returning
// its game_id, or "" if none exists. Used by the lobby handler's
// reconnect-to-game check.
func (e *Engine) FindGameFor(username string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, en := range e.games {
		en.mu.Lock()
		has := en.game.HasPlayer(username)
		en.mu.Unlock()
		if has {
			return id
		}
	}
	return ""
}

// PlayerState is the per-player view of a game returned by
// GetGameState: the caller's own board in full, the opponent's board
// redacted to only what the caller has fired at, plus bookkeeping.
type PlayerState struct {
	Players             [2]string       `json:"players"`
	Self                string          `json:"self"`
	OwnBoard            Board           `json:"own_board"`
	OpponentBoard       Board           `json:"opponent_board"`
	Hits                Board           `json:"hits"`
	OpponentHits        Board           `json:"opponent_hits"`
	PlacedShips         []*PlacedShip   `json:"placed_ships"`
	OpponentPlacedShips []*PlacedShip   `json:"opponent_placed_ships,omitempty"`
	ShipsLeft           map[int]int     `json:"ships_left"`
	Ready               bool            `json:"ready"`
	OpponentReady       bool            `json:"opponent_ready"`
	Turn                string          `json:"turn"`
	Winner              string          `json:"winner"`
}

// GetGameState projects game_id's state for player. The opponent board
// is redacted: ship cells are only revealed once Winner is set, and
// until then only cells the player has already fired at ("X"/"O" from
// their own hit grid) are shown. This deliberately diverges from the
// original source, which leaked the raw opponent board including
// unhit "S" cells — see DESIGN.md.
func (e *Engine) GetGameState(gameID, player string) *PlayerState {
	en := e.lookup(gameID)
	if en == nil {
		return nil
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	g := en.game
	i := g.idx(player)
	if i == -1 {
		return nil
	}
	j := 1 - i

	state := &PlayerState{
		Players:       g.Players,
		Self:          player,
		OwnBoard:      g.boards[i],
		Hits:          g.hits[i],
		OpponentHits:  g.hits[j],
		PlacedShips:   g.placedShips[i],
		ShipsLeft:     g.shipsLeft[i],
		Ready:         g.ready[i],
		OpponentReady: g.ready[j],
		Turn:          g.turn,
		Winner:        g.winner,
	}
	state.OpponentBoard = redactOpponentBoard(&g.boards[j], &g.hits[i], g.winner != "")
	if g.winner != "" {
		state.OpponentPlacedShips = g.placedShips[j]
	}
	return state
}

// redactOpponentBoard builds the view of the enemy board a player is
// allowed to see: hit/miss markers from the player's own hits grid,
// and nothing else unless the game is over.
func redactOpponentBoard(opponentBoard, selfHits *Board, revealAll bool) Board {
	var out Board
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			switch {
			case revealAll:
				out[y][x] = opponentBoard[y][x]
			default:
				out[y][x] = selfHits[y][x]
			}
		}
	}
	return out
}

// ActionResult is the outcome of a state-changing engine action, shaped
// for direct translation into a system chat message.
type ActionResult struct {
	Result MoveResult
	Text   string
	Access string // "public" or "private"
}

const (
	AccessPublic  = "public"
	AccessPrivate = "private"
)

// PlaceShip places a ship of the given length and orientation anchored
// at (x, y). Unlike the original engine, bounds and overlap are
// enforced: placement fails rather than corrupting the board.
func (e *Engine) PlaceShip(gameID, player string, x, y, length int, orientation Orientation) (*ActionResult, error) {
	en := e.lookup(gameID)
	if en == nil {
		return nil, gameNotFound()
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	g := en.game
	i := g.idx(player)
	if i == -1 {
		return nil, gameNotFound()
	}

	if g.shipsLeft[i][length] <= 0 {
		return nil, ruleViolation("NO MORE SHIPS OF LENGTH %d AVAILABLE", length)
	}

	coords := shipCoords(x, y, length, orientation)
	if !fits(&g.boards[i], coords) {
		return nil, ruleViolation("SHIP PLACEMENT OUT OF BOUNDS OR OVERLAPPING")
	}

	for _, c := range coords {
		g.boards[i][c.Y][c.X] = CellShip
	}
	g.placedShips[i] = append(g.placedShips[i], &PlacedShip{Coords: coords})
	g.shipsLeft[i][length]--

	return &ActionResult{Text: "SHIP PLACED", Access: AccessPrivate}, nil
}

// RemoveShip removes the ship occupying (x, y) and returns it to the
// player's inventory.
func (e *Engine) RemoveShip(gameID, player string, x, y int) (*ActionResult, error) {
	en := e.lookup(gameID)
	if en == nil {
		return nil, gameNotFound()
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	g := en.game
	i := g.idx(player)
	if i == -1 {
		return nil, gameNotFound()
	}

	coord := Coord{X: x, Y: y}
	ship := shipAt(g.placedShips[i], coord)
	if ship == nil {
		return nil, ruleViolation("NO SHIP FOUND AT CHOSEN POSITION")
	}

	for _, c := range ship.Coords {
		g.boards[i][c.Y][c.X] = CellEmpty
	}
	kept := g.placedShips[i][:0]
	for _, s := range g.placedShips[i] {
		if s != ship {
			kept = append(kept, s)
		}
	}
	g.placedShips[i] = kept
	g.shipsLeft[i][len(ship.Coords)]++

	return &ActionResult{Text: "SHIP REMOVED", Access: AccessPrivate}, nil
}

// SetReady flips the player's ready flag once every ship has been
// placed.
func (e *Engine) SetReady(gameID, player string) (*ActionResult, error) {
	en := e.lookup(gameID)
	if en == nil {
		return nil, gameNotFound()
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	g := en.game
	i := g.idx(player)
	if i == -1 {
		return nil, gameNotFound()
	}

	if remainingCells(g.shipsLeft[i]) > 0 {
		return nil, ruleViolation("YOU MUST PLACE ALL SHIPS FIRST")
	}

	g.ready[i] = true
	return &ActionResult{Text: upper(player) + " IS READY", Access: AccessPublic}, nil
}

// MakeMove fires a shot at (x, y) on behalf of player. Preconditions:
// the game exists, it is player's turn, both players are ready, and the
// cell hasn't already been fired at by player.
func (e *Engine) MakeMove(gameID, player string, x, y int) (*ActionResult, error) {
	en := e.lookup(gameID)
	if en == nil {
		return nil, gameNotFound()
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	g := en.game
	i := g.idx(player)
	if i == -1 {
		return nil, gameNotFound()
	}
	if g.winner != "" {
		return nil, ruleViolation("GAME IS ALREADY OVER")
	}
	if g.turn != player {
		return nil, ruleViolation("NOT YOUR TURN")
	}
	if !g.ready[0] || !g.ready[1] {
		return nil, ruleViolation("BOTH PLAYERS MUST BE READY")
	}

	coord := Coord{X: x, Y: y}
	if !inBounds(coord) {
		return nil, ruleViolation("SHOT OUT OF BOUNDS")
	}

	j := 1 - i
	hitBoard := &g.hits[i]
	if hitBoard[y][x] != HitNone {
		return nil, ruleViolation("ALREADY SHOT THIS POSITION - CHOOSE ANOTHER")
	}

	var res MoveResult
	var text string

	if g.boards[j][y][x] == CellShip {
		hitBoard[y][x] = HitHit
		res = ResultHit
		text = upper(player) + " LANDED A HIT"

		ship := shipAt(g.placedShips[j], coord)
		if ship != nil && sunkOn(hitBoard, ship) {
			ship.Sunk = true
			res = ResultSunk
			text = upper(player) + " SUNK ENEMY SHIP"

			if allSunk(g.placedShips[j]) {
				res = ResultWin
				text = "GAME OVER! " + upper(player) + " WON!"
				g.winner = player
			}
		}
	} else {
		hitBoard[y][x] = HitMiss
		res = ResultMiss
		text = upper(player) + " MISSED"
	}

	g.turn = g.Opponent(player)

	return &ActionResult{Result: res, Text: text, Access: AccessPublic}, nil
}

// EndGame deletes the game. Idempotent.
func (e *Engine) EndGame(gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.games, gameID)
}
