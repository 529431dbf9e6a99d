package synth

import "math"

// LiveableThreshold is the score an entity must exceed to be classified liveable.
const LiveableThreshold = 0.65

// Composition holds the five element proportions of one entity. They sum to one.
type Composition struct {
	Rock  float64 `json:"rock"`
	Water float64 `json:"water"`
	Air   float64 `json:"air"`
	Fire  float64 `json:"fire"`
	Ether float64 `json:"ether"`
}

// Sum returns the total of all five proportions.
func (c Composition) Sum() float64 {
	return c.Rock + c.Water + c.Air + c.Fire + c.Ether
}

// Entity is one row of an entity dataset.
type Entity struct {
	Name string `json:"name"`
	Composition
	Liveability float64 `json:"liveability"`
	Liveable    bool    `json:"liveable"`
	Coords      *Point  `json:"coords,omitempty"`
}

// DrawEntity draws one unnamed entity. The elements are drawn in dependency order
// (ether, rock, water, air, fire) and then renormalized.
func DrawEntity(src *Source) Entity {
	c := drawComposition(src)
	score := Liveability(c)
	return Entity{Composition: c, Liveability: score, Liveable: score > LiveableThreshold}
}

func drawComposition(src *Source) Composition {
	ether := drawEther(src)
	rock := drawRock(src, ether)
	water := drawWater(src, rock, ether)
	air := drawAir(src, rock, water, ether)
	fire := math.Max(0, 1-rock-water-air-ether)
	return normalize(Composition{Rock: rock, Water: water, Air: air, Fire: fire, Ether: ether})
}

func drawEther(src *Source) float64 {
	return clip(src.Beta1(20), 0.001, 0.05)
}

// Rock noise shrinks linearly to zero as ether approaches its 0.05 ceiling.
func drawRock(src *Source, ether float64) float64 {
	noise := (1 - ether*20) * 0.1
	return clip(src.Normal(0.3, noise), 0.1, 0.6)
}

func drawWater(src *Source, rock, ether float64) float64 {
	noise := (1 - ether*15) * 0.05
	return clip(idealWater(rock)+src.Normal(0, noise), 0.05, 0.5)
}

// idealWater peaks at 0.5 for rock = 0.4.
func idealWater(rock float64) float64 {
	return -4*(rock-0.4)*(rock-0.4) + 0.5
}

func drawAir(src *Source, rock, water, ether float64) float64 {
	air := 0.5*(rock*water) + 0.2*math.Sqrt(ether)
	air += src.Normal(0, 0.02*(1-ether*10))
	return clip(air, 0.05, 0.4)
}

// normalize scales the four non-ether elements so that all five sum to one.
func normalize(c Composition) Composition {
	rest := c.Rock + c.Water + c.Air + c.Fire
	scale := (1 - c.Ether) / rest
	c.Rock *= scale
	c.Water *= scale
	c.Air *= scale
	c.Fire *= scale
	return c
}

// Liveability scores a composition in [0, 1]: Gaussian bumps around rock 0.3 and
// water 0.4, a linear air bonus, a quadratic fire penalty and a square-root ether bonus.
func Liveability(c Composition) float64 {
	score := 0.35*math.Exp(-((c.Rock-0.3)*(c.Rock-0.3))/0.02) +
		0.3*math.Exp(-((c.Water-0.4)*(c.Water-0.4))/0.02) +
		0.2*c.Air -
		0.5*c.Fire*c.Fire +
		0.1*math.Sqrt(c.Ether)
	return clip(score, 0, 1)
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
