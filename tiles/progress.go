package tiles

import (
	"sync/atomic"

	pb "gopkg.in/cheggaaa/pb.v1"
)

// Progress observes a generation run and carries the cooperative
// cancellation signal. IsActive is polled before every zoom level and every
// row and column iteration.
type Progress interface {
	SetMax(max int)
	AddProgress(n int)
	IsActive() bool
	CleanupOnCancel() bool
}

type nopProgress struct{}

func (nopProgress) SetMax(int)            {}
func (nopProgress) AddProgress(int)       {}
func (nopProgress) IsActive() bool        { return true }
func (nopProgress) CleanupOnCancel() bool { return false }

// Bar is a terminal progress bar sink.
type Bar struct {
	bar       *pb.ProgressBar
	cancelled atomic.Bool
	cleanup   bool
}

// NewBar returns a progress bar sink. When cleanupOnCancel is set, a
// cancelled generation removes the target tile table.
func NewBar(cleanupOnCancel bool) *Bar {
	return &Bar{bar: pb.New64(0), cleanup: cleanupOnCancel}
}

func (b *Bar) SetMax(max int) {
	b.bar.Total = int64(max)
	b.bar.Start()
}

func (b *Bar) AddProgress(n int) {
	b.bar.Add(n)
}

func (b *Bar) IsActive() bool {
	return !b.cancelled.Load()
}

func (b *Bar) CleanupOnCancel() bool {
	return b.cleanup
}

// Cancel deactivates the sink, stopping the generation at its next poll.
func (b *Bar) Cancel() {
	b.cancelled.Store(true)
}

func (b *Bar) Finish() {
	b.bar.Finish()
}
