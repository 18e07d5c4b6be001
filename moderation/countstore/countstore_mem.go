package countstore

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemCountStore keeps counters in process memory. Safe for concurrent use;
// the engine runs one invocation per inbound event, many at a time.
type MemCountStore struct {
	Counts *xsync.MapOf[string, *xsync.Counter]
}

func NewMemCountStore() MemCountStore {
	return MemCountStore{
		Counts: xsync.NewMapOf[string, *xsync.Counter](),
	}
}

func (s MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	c, ok := s.Counts.Load(periodBucket(name, val, period))
	if !ok {
		return 0, nil
	}
	return int(c.Value()), nil
}

func (s MemCountStore) Increment(ctx context.Context, name, val string) error {
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		k := periodBucket(name, val, p)
		c, _ := s.Counts.LoadOrCompute(k, func() *xsync.Counter {
			return xsync.NewCounter()
		})
		c.Inc()
	}
	return nil
}
