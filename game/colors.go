package game

// Color is one of the playable card colors. The zero value means "no card
// chosen yet" and is never a legal play.
type Color string

const (
	ColorNone   Color = ""
	ColorRed    Color = "R"
	ColorGreen  Color = "G"
	ColorYellow Color = "Y"
	ColorWhite  Color = "W"
)

// gmDeck is the set of colors the game master draws from. White is a
// player-only card.
var gmDeck = []Color{ColorRed, ColorGreen, ColorYellow}

// ParseColor validates a client-supplied card value.
func ParseColor(s string) (Color, bool) {
	switch Color(s) {
	case ColorRed, ColorGreen, ColorYellow, ColorWhite:
		return Color(s), true
	default:
		return ColorNone, false
	}
}

// baseMove is the movement everyone earns from the priority color.
func baseMove(c Color) int {
	switch c {
	case ColorYellow:
		return 1
	case ColorGreen:
		return 2
	default:
		return 0
	}
}
