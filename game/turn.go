package game

import (
	"fmt"
	"sort"
	"strings"
)

// ActionType is the kind of move a seat submits during the choose phase.
type ActionType string

const (
	ActionChooseCard   ActionType = "CHOOSE_CARD"
	ActionUsePower     ActionType = "USE_POWER"
	ActionReselectCard ActionType = "RESELECT_CARD"
)

// StartTurn resets per-turn state, draws the GM deck and opens the choose
// phase. It is a guarded no-op when the game is over or a choose phase is
// already running.
func (g *Game) StartTurn() []Event {
	if g.setPhase(PhaseChoosing) != nil {
		return nil
	}

	g.MovementVisuals = nil
	for _, p := range g.Players {
		p.Choice = ColorNone
		p.PrevPosition = p.Position
	}
	g.RemoveGmUsedThisTurn = false
	g.RemoveGmUserSeat = nil
	g.PriorityColor = ColorNone
	g.ColorCounts = nil

	numCards := 5 - g.ConnectedCount()
	if numCards < 1 {
		numCards = 1
	}
	g.GMChoices = make([]Color, 0, numCards)
	for i := 0; i < numCards; i++ {
		g.GMChoices = append(g.GMChoices, gmDeck[g.rng.Intn(len(gmDeck))])
	}

	return []Event{g.log(fmt.Sprintf("Turn %d", g.Turn), "everyone pick a card")}
}

// SubmitAction applies one player action. Out-of-phase actions, double
// submissions and spent powers are silently ignored: the client may race
// the server and that is not an error. When the last active seat locks in,
// the whole turn resolves before SubmitAction returns.
func (g *Game) SubmitAction(seat int, action ActionType, card Color) []Event {
	if g.Phase != PhaseChoosing || seat < 0 || seat >= len(g.Players) {
		return nil
	}
	p := g.Players[seat]
	if p.Choice != ColorNone {
		return nil
	}

	switch action {
	case ActionChooseCard, ActionReselectCard:
		if card != ColorRed && card != ColorGreen && card != ColorYellow && card != ColorWhite {
			return nil
		}
		p.Choice = card
	case ActionUsePower:
		// First caller claims the power for the turn; a later caller keeps
		// its own one-shot.
		if !p.CanUseRemoveGm || g.RemoveGmUsedThisTurn {
			return nil
		}
		g.RemoveGmUsedThisTurn = true
		s := p.Seat
		g.RemoveGmUserSeat = &s
		p.CanUseRemoveGm = false
	default:
		return nil
	}

	var events []Event
	if action == ActionUsePower {
		events = []Event{g.log("Power", "%s played their one-shot power", p.Name)}
	} else {
		events = []Event{g.log("Locked", "%s has locked in", p.Name)}
	}

	for _, active := range g.activePlayers() {
		if active.Choice == ColorNone {
			return events
		}
	}
	return append(events, g.resolve()...)
}

// resolve runs a full turn resolution: reveal, white-card handling,
// priority color, movement, end of turn. It runs to completion as one
// atomic transition; the only early exit is the forced reselect.
func (g *Game) resolve() []Event {
	if g.setPhase(PhaseReveal) != nil {
		return nil
	}

	events := []Event{
		g.log("Reveal", "the GM drew %s", joinColors(g.GMChoices)),
		{Kind: EventShowChoices},
	}

	if g.RemoveGmUsedThisTurn && g.RemoveGmUserSeat != nil {
		events = append(events, g.log("Remove GM", "%s removed the GM cards from play", g.Players[*g.RemoveGmUserSeat].Name))
	}

	var whiteUsers []*Player
	for _, p := range g.activePlayers() {
		if p.Choice == ColorWhite {
			whiteUsers = append(whiteUsers, p)
		}
	}

	if g.RemoveGmUsedThisTurn && len(whiteUsers) > 0 {
		// With the GM gone there is nothing to copy; the white cards are
		// voided and their owners must make an honest pick. Only the choice
		// resets, the spent power stays spent.
		events = append(events, g.log("Voided", "white cards are voided, pick a color"))
		seats := make([]int, 0, len(whiteUsers))
		for _, p := range whiteUsers {
			p.Choice = ColorNone
			seats = append(seats, p.Seat)
		}
		g.setPhase(PhaseChoosing)
		return append(events, Event{Kind: EventForceReselect, Seats: seats})
	}

	if len(whiteUsers) > 0 {
		first := g.GMChoices[0]
		events = append(events, g.log("White card", "copies the first GM card: %s", first))
		g.PriorityColor = first
		for _, p := range whiteUsers {
			p.Choice = first
		}
	}

	counts := map[Color]int{ColorRed: 0, ColorGreen: 0, ColorYellow: 0}
	for _, p := range g.activePlayers() {
		if _, ok := counts[p.Choice]; ok {
			counts[p.Choice]++
		}
	}
	if !g.RemoveGmUsedThisTurn {
		for _, c := range g.GMChoices {
			counts[c]++
		}
	}
	g.ColorCounts = counts
	events = append(events, g.log("Counting", "counting the cards"))

	if g.PriorityColor == ColorNone {
		g.PriorityColor = determinePriority(counts, g.GMChoices[0], !g.RemoveGmUsedThisTurn)
	}

	if g.PriorityColor == ColorNone {
		events = append(events, g.log("Draw", "no priority color, nobody moves"))
		return append(events, g.endTurn()...)
	}

	events = append(events, g.log("Priority", "the priority color is %s", g.PriorityColor))
	events = append(events, g.moveCars()...)
	return append(events, g.endTurn()...)
}

// determinePriority implements the minority-favoring vote. Counted colors
// are sorted ascending; ties fall back to the first GM card only while the
// GM cards are in play.
func determinePriority(counts map[Color]int, gmFirst Color, gmCounted bool) Color {
	type colorCount struct {
		color Color
		count int
	}
	entries := make([]colorCount, 0, 3)
	for _, c := range gmDeck {
		if counts[c] > 0 {
			entries = append(entries, colorCount{c, counts[c]})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].count < entries[j].count })

	gmFallback := func() Color {
		if gmCounted {
			return gmFirst
		}
		return ColorNone
	}

	switch len(entries) {
	case 0:
		return ColorNone
	case 1:
		return entries[0].color
	case 2:
		if entries[0].count == entries[1].count {
			return gmFallback()
		}
		return entries[0].color
	default:
		a, b, c := entries[0], entries[1], entries[2]
		switch {
		case a.count < b.count && b.count < c.count:
			return a.color
		case a.count == b.count && b.count < c.count:
			return c.color
		case a.count < b.count && b.count == c.count:
			return a.color
		default:
			return gmFallback()
		}
	}
}

// moveCars computes and applies the movement deltas for the turn, in strict
// narration order.
func (g *Game) moveCars() []Event {
	active := g.activePlayers()
	moves := make(map[int]int)
	events := []Event{g.log("Movement", "calculating movement")}

	if g.Effects.LowestPlayerBonusMove && len(active) > 0 {
		lowest := active[0].Position
		for _, p := range active {
			if p.Position < lowest {
				lowest = p.Position
			}
		}
		var rewarded []string
		for _, p := range active {
			if p.Position == lowest {
				moves[p.Seat]++
				rewarded = append(rewarded, p.Name)
			}
		}
		events = append(events, g.log("Effect", "bottom of the board bonus: %s (+1)", strings.Join(rewarded, ", ")))
	}

	base := baseMove(g.PriorityColor)
	if g.Effects.AllMovesMinusOne && base > 0 {
		base--
		events = append(events, g.log("Effect", "all base movement reduced by 1"))
	}
	if base > 0 {
		events = append(events, g.log("Base", "everyone advances +%d", base))
		for _, p := range active {
			moves[p.Seat] += base
		}
	}

	var matching, nonMatching []*Player
	for _, p := range active {
		if p.Choice == g.PriorityColor {
			matching = append(matching, p)
		} else {
			nonMatching = append(nonMatching, p)
		}
	}

	if g.PriorityColor != ColorRed && len(matching) > 0 {
		var names []string
		for _, p := range matching {
			moves[p.Seat]++
			names = append(names, p.Name)
		}
		events = append(events, g.log("Bonus", "matched the priority color: %s (+1)", strings.Join(names, ", ")))
	}

	if len(nonMatching) > 0 {
		if g.PriorityColor != ColorRed {
			highest := maxPosition(nonMatching)
			var names []string
			for _, p := range nonMatching {
				if p.Position == highest {
					moves[p.Seat]--
					names = append(names, p.Name)
				}
			}
			events = append(events, g.log("Penalty", "highest non-matching seat: %s (-1)", strings.Join(names, ", ")))
		} else {
			lateGame := g.Turn > MinTurns || g.anyFinished()
			if !lateGame {
				var names []string
				for _, p := range nonMatching {
					moves[p.Seat]--
					names = append(names, p.Name)
				}
				events = append(events, g.log("Penalty", "did not pick red: %s (-1)", strings.Join(names, ", ")))

				highest := maxPosition(nonMatching)
				var leaders []*Player
				for _, p := range nonMatching {
					if p.Position == highest {
						leaders = append(leaders, p)
					}
				}
				if len(leaders) == 1 {
					moves[leaders[0].Seat]--
					events = append(events, g.log("Penalty", "extra penalty for the sole leader: %s (-1 more)", leaders[0].Name))
				}
			} else {
				events = append(events, g.log("Notice", "late game, the red penalty is skipped"))
			}
		}
	}

	if g.Effects.HighestPlayerCannotMove && len(active) > 0 {
		highest := maxPosition(active)
		var blocked []string
		for _, p := range active {
			if p.Position == highest && moves[p.Seat] > 0 {
				moves[p.Seat] = 0
				blocked = append(blocked, p.Name)
			}
		}
		if len(blocked) > 0 {
			events = append(events, g.log("Effect", "the leader cannot move: %s", strings.Join(blocked, ", ")))
		}
	}

	g.MovementVisuals = make(map[int]*MovementVisual)
	for _, p := range active {
		move := moves[p.Seat]
		p.Position = clampPosition(p.Position + move)
		if move != 0 {
			g.MovementVisuals[p.Seat] = &MovementVisual{
				PrevPos:  p.PrevPosition,
				FinalPos: p.Position,
				Move:     move,
			}
		}
	}
	events = append(events, Event{Kind: EventMovements}, g.log("Result", "positions updated"))

	// Red-light rule: early in the game, leaving the start line on a red
	// turn rewards everyone who picked red.
	if g.PriorityColor == ColorRed && !g.anyFinished() && g.Turn <= MinTurns {
		var caught []string
		for _, p := range active {
			if p.PrevPosition == 0 && p.Choice != ColorRed {
				caught = append(caught, p.Name)
			}
		}
		if len(caught) > 0 {
			events = append(events, g.log("Red light", "%s ran the red light", strings.Join(caught, ", ")))
			var redPickers []*Player
			for _, p := range active {
				if p.Choice == ColorRed {
					redPickers = append(redPickers, p)
				}
			}
			if len(redPickers) > 0 {
				var names []string
				for _, p := range redPickers {
					names = append(names, p.Name)
				}
				events = append(events, g.log("Bonus", "red pickers %s advance +%d", strings.Join(names, ", "), len(caught)))
				for _, p := range redPickers {
					p.Position = clampPosition(p.Position + len(caught))
				}
			}
		}
	}

	return events
}

// endTurn arms next-turn effects, marks finishers and either ends the game
// or requests the next turn.
func (g *Game) endTurn() []Event {
	var events []Event

	g.Effects = Effects{}
	choices := make([]Color, 0, len(g.Players)+len(g.GMChoices))
	for _, p := range g.activePlayers() {
		choices = append(choices, p.Choice)
	}
	if !g.RemoveGmUsedThisTurn {
		choices = append(choices, g.GMChoices...)
	}

	threshold := 0
	if len(choices) > 1 {
		threshold = len(choices) - 1
	}
	if threshold > 1 {
		counts := map[Color]int{}
		for _, c := range choices {
			counts[c]++
		}
		for _, c := range gmDeck {
			if counts[c] < threshold {
				continue
			}
			switch c {
			case ColorRed:
				g.Effects.HighestPlayerCannotMove = true
			case ColorGreen:
				g.Effects.LowestPlayerBonusMove = true
			case ColorYellow:
				g.Effects.AllMovesMinusOne = true
			}
			events = append(events, g.log("Effect", "near-unanimous %s: a special effect is armed for next turn", c))
			break
		}
	}

	for _, p := range g.Players {
		if p.Position >= FinishLine && !p.IsFinished {
			p.IsFinished = true
			turn := g.Turn
			p.FinishTurn = &turn
			events = append(events, g.log("Finish!", "%s crossed the finish line", p.Name))
		}
		if !p.IsFinished {
			p.LastPlayed = p.Choice
		}
	}

	finishers := 0
	connected := 0
	connectedFinished := 0
	for _, p := range g.Players {
		if p.IsFinished {
			finishers++
		}
		if p.IsConnected {
			connected++
			if p.IsFinished {
				connectedFinished++
			}
		}
	}
	allConnectedFinished := connected > 0 && connected == connectedFinished

	if (finishers >= RequiredPlayers-1 && g.Turn >= MinTurns) || g.Turn >= MaxTurns || allConnectedFinished {
		g.setPhase(PhaseGameOver)
		events = append(events, g.log("Game over", "the race is over"))
		return append(events, Event{Kind: EventGameOver})
	}

	g.Turn++
	return append(events, Event{Kind: EventNextTurn})
}

func maxPosition(players []*Player) int {
	highest := players[0].Position
	for _, p := range players {
		if p.Position > highest {
			highest = p.Position
		}
	}
	return highest
}

func clampPosition(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > FinishLine {
		return FinishLine
	}
	return pos
}

func joinColors(colors []Color) string {
	parts := make([]string, len(colors))
	for i, c := range colors {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
