package store

import (
	"math/rand"
	"sync"
	"time"
)

// Alphabet ordered by ASCII value so generated ids sort the same way as
// the timestamps they encode.
const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// pushGenerator allocates 20-character log ids: 8 characters of base-64
// encoded milliseconds followed by 12 random characters. Ids produced in
// the same millisecond reuse the previous random suffix incremented by
// one, which keeps allocation order and lexicographic order identical.
type pushGenerator struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	lastTime int64
	lastRand [12]int
}

func (g *pushGenerator) next(nowMillis int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rnd == nil {
		g.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
		g.lastTime = -1
	}

	if nowMillis <= g.lastTime {
		// same millisecond, or the clock went backwards: stay on the
		// last encoded time and bump the suffix
		nowMillis = g.lastTime
		for i := len(g.lastRand) - 1; i >= 0; i-- {
			g.lastRand[i]++
			if g.lastRand[i] < 64 {
				break
			}
			g.lastRand[i] = 0
		}
	} else {
		g.lastTime = nowMillis
		for i := range g.lastRand {
			g.lastRand[i] = g.rnd.Intn(64)
		}
	}

	var b [20]byte
	ts := nowMillis
	for i := 7; i >= 0; i-- {
		b[i] = pushChars[ts%64]
		ts /= 64
	}
	for i, v := range g.lastRand {
		b[8+i] = pushChars[v]
	}
	return string(b[:])
}
