// Package games holds the minigame catalog and the reference simulations.
// Games are deterministic, self-contained and only ever report an outcome;
// they have no visibility into sessions or balances.
package games

// Meta describes one playable minigame.
type Meta struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var catalog = []Meta{
	{
		Slug:        "reaction-duel",
		Title:       "Reaction Duel",
		Description: "Tap the instant the screen flashes. >250 ms = lose.",
	},
	{
		Slug:        "stop-the-timer",
		Title:       "Stop the Timer",
		Description: "Freeze the counter at 50.0 (±2). Precision or bust.",
	},
	{
		Slug:        "archery-2d",
		Title:       "Archery 2D",
		Description: "Drag to aim with gravity. Hit the bullseye to win.",
	},
	{
		Slug:        "falling-strikes",
		Title:       "Falling Strikes",
		Description: "Click every falling pin before it hits the ground.",
	},
	{
		Slug:        "bullet-dodge",
		Title:       "Bullet Dodge",
		Description: "Survive 20s as bullets spawn from 360°. Any hit = lose.",
	},
	{
		Slug:        "target-shooter",
		Title:       "Target Shooter",
		Description: "Click disappearing targets before the timer runs out.",
	},
}

// All returns the catalog in display order.
func All() []Meta {
	out := make([]Meta, len(catalog))
	copy(out, catalog)

	return out
}

// Exists reports whether slug names a known game.
func Exists(slug string) bool {
	for _, m := range catalog {
		if m.Slug == slug {
			return true
		}
	}

	return false
}
