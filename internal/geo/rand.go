package geo

import (
	"math"
	"math/rand"
	"sync"

	"ridequick/internal/types"
)

// Rand is the random source used for jitter and seeded driver ratings.
type Rand interface {
	Float64() float64
}

// LockedRand is a seeded source safe for concurrent use.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Jitter moves p by up to maxDeg degrees on each axis, clamped to the valid range.
func Jitter(p types.Point, maxDeg float64, rnd Rand) types.Point {
	if rnd == nil || maxDeg <= 0 {
		return p
	}
	lat := p.Lat + (rnd.Float64()-0.5)*2*maxDeg
	lng := p.Lng + (rnd.Float64()-0.5)*2*maxDeg
	return types.Point{
		Lat: math.Max(-90, math.Min(90, lat)),
		Lng: math.Max(-180, math.Min(180, lng)),
	}
}
