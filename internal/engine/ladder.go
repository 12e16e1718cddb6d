package engine

import (
	"sync"
	"time"
)

// The progression ladder maps a saved-opportunity count to one of the
// fixed level brackets defined in config/engine.yaml, plus in-level
// progress for the badge bar.

// CompletionDwell is how long the display stays frozen on a just-filled
// bar before revealing the next level.
const CompletionDwell = time.Second

// Levels returns the ladder bracket table in ascending order. The
// returned slice is a copy; callers may not mutate engine state.
func Levels() []Level {
	out := make([]Level, len(cfg.Levels))
	copy(out, cfg.Levels)
	return out
}

// LevelIndex returns the index of the first bracket containing count.
// Counts beyond the last bracket fall back to index 0. That fallback
// mirrors the shipped product and is almost certainly a bug for very
// high counts; it is preserved deliberately (see DESIGN.md) rather than
// replaced with a terminal max level.
func LevelIndex(count int) int {
	for i, lvl := range cfg.Levels {
		if count >= lvl.Min && count <= lvl.Max {
			return i
		}
	}
	return 0
}

// CurrentLevel returns the bracket for the given saved count.
func CurrentLevel(count int) Level {
	return cfg.Levels[LevelIndex(count)]
}

// Progress computes the in-level bar for count against a bracket:
// size = max(1, max-min+1), offset = clamp(count-min, 0, size).
// The fraction is offset/size. Offset reaching size means the bar is
// full and the bracket has just been completed.
func Progress(count int, lvl Level) (offset, size int, fraction float64) {
	size = lvl.Max - lvl.Min + 1
	if size < 1 {
		size = 1
	}

	offset = count - lvl.Min
	if offset < 0 {
		offset = 0
	}
	if offset > size {
		offset = size
	}

	return offset, size, float64(offset) / float64(size)
}

// Clock abstracts the dwell timer so level-up behavior is testable
// without wall-clock waits.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func())
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// LadderDisplay is what the badge UI should currently render. While a
// level-up celebration is playing, the display is frozen on the
// just-completed bracket with a full bar.
type LadderDisplay struct {
	Level      Level   `json:"level"`
	LevelIndex int     `json:"level_index"`
	Offset     int     `json:"offset"`
	Size       int     `json:"size"`
	Fraction   float64 `json:"fraction"`
	Completing bool    `json:"completing"`
}

// LadderTracker is the two-state machine over ladder evaluations:
// Normal, and a transient Completing state entered when a bracket's bar
// fills. Completing freezes the display for CompletionDwell and fires
// the level-up callback exactly once; further count increases while
// Completing fire nothing until Normal is re-entered.
type LadderTracker struct {
	mu         sync.Mutex
	clock      Clock
	dwell      time.Duration
	onLevelUp  func(completed Level)
	trackedIdx int // bracket the bar is rendered against; -1 = unsynced
	completing bool
	frozen     LadderDisplay
	stopTimer  func()
}

// NewLadderTracker builds a tracker with the real clock. onLevelUp may
// be nil.
func NewLadderTracker(onLevelUp func(Level)) *LadderTracker {
	return NewLadderTrackerWithClock(realClock{}, CompletionDwell, onLevelUp)
}

// NewLadderTrackerWithClock injects the clock and dwell, for tests.
func NewLadderTrackerWithClock(clock Clock, dwell time.Duration, onLevelUp func(Level)) *LadderTracker {
	return &LadderTracker{
		clock:      clock,
		dwell:      dwell,
		onLevelUp:  onLevelUp,
		trackedIdx: -1,
	}
}

// Observe evaluates the ladder for the current saved count and returns
// what the UI should render. Crossing out of the tracked bracket
// triggers the Completing transition.
func (t *LadderTracker) Observe(count int) LadderDisplay {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completing {
		return t.frozen
	}

	idx := LevelIndex(count)
	if t.trackedIdx < 0 {
		t.trackedIdx = idx
	}

	tracked := cfg.Levels[t.trackedIdx]
	offset, size, _ := Progress(count, tracked)

	// idx > trackedIdx guards the degenerate overflow case: beyond the
	// last bracket LevelIndex falls back to 0, which must not look like
	// a completed level.
	if offset >= size && idx > t.trackedIdx {
		// Bar full: freeze on the completed bracket, celebrate once.
		t.completing = true
		t.frozen = LadderDisplay{
			Level:      tracked,
			LevelIndex: t.trackedIdx,
			Offset:     size,
			Size:       size,
			Fraction:   1,
			Completing: true,
		}

		if t.onLevelUp != nil {
			t.onLevelUp(tracked)
		}
		t.stopTimer = t.clock.AfterFunc(t.dwell, t.finishCompletion)

		return t.frozen
	}

	t.trackedIdx = idx
	live := cfg.Levels[idx]
	offset, size, fraction := Progress(count, live)
	return LadderDisplay{
		Level:      live,
		LevelIndex: idx,
		Offset:     offset,
		Size:       size,
		Fraction:   fraction,
	}
}

// finishCompletion returns the tracker to Normal. The next Observe
// resyncs to the live bracket, which naturally reveals the new level.
func (t *LadderTracker) finishCompletion() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completing = false
	t.trackedIdx = -1
	t.stopTimer = nil
}

// Stop cancels a pending dwell timer. Used on teardown so no callback
// fires into a dead UI.
func (t *LadderTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopTimer != nil {
		t.stopTimer()
		t.stopTimer = nil
	}
	t.completing = false
	t.trackedIdx = -1
}
