package umbra

import (
	"time"
)

// Time tracks the wall clock, the previous frame's delta in seconds, and a
// monotonically increasing frame counter.
type Time struct {
	Now        time.Time
	Dt         float64
	FrameIndex uint64
}

type TimeModule struct{}

func (mod TimeModule) Install(app *App) {
	app.AddResources(&Time{
		Now: time.Now(),
	})
	app.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(tm *Time) {
	now := time.Now()
	tm.Dt = now.Sub(tm.Now).Seconds()
	tm.Now = now
	tm.FrameIndex++
}
