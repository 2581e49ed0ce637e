package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"krl-safety-backend/internal/model"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultBatchLimit   = 50
)

// CaseSource is the query the poller runs on every tick.
type CaseSource interface {
	CasesReportedSince(ctx context.Context, since time.Time, exclude []string, limit int) ([]model.Case, error)
}

// Poller implements Notifier by querying the store on a fixed interval.
// Every subscription owns its own timer and watermark.
type Poller struct {
	source   CaseSource
	interval time.Duration
	limit    int
	log      *zap.Logger
}

func NewPoller(source CaseSource, interval time.Duration, limit int, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	return &Poller{
		source:   source,
		interval: interval,
		limit:    limit,
		log:      log.Named("events"),
	}
}

// Subscribe starts a polling loop for one client.
func (p *Poller) Subscribe(ctx context.Context, since time.Time) <-chan Batch {
	out := make(chan Batch)
	go p.run(ctx, since, out)
	return out
}

func (p *Poller) run(ctx context.Context, since time.Time, out chan<- Batch) {
	defer close(out)

	w := newWatermark(since)
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if batch, ok := p.poll(ctx, w); ok {
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
			timer.Reset(p.interval)
		}
	}
}

// poll runs one query. A failed query is logged and the loop continues.
func (p *Poller) poll(ctx context.Context, w *watermark) (Batch, bool) {
	cases, err := p.source.CasesReportedSince(ctx, w.at, w.seenIDs(), p.limit)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("case poll failed", zap.Time("since", w.at), zap.Error(err))
		}
		return Batch{}, false
	}
	if len(cases) == 0 {
		return Batch{}, false
	}

	w.advance(cases)

	batch := Batch{Cases: make([]CaseEvent, 0, len(cases))}
	for i := len(cases) - 1; i >= 0; i-- {
		batch.Cases = append(batch.Cases, FromCase(cases[i]))
	}
	return batch, true
}

// watermark is the newest report time delivered plus the ids delivered at
// exactly that instant, so equal timestamps are neither lost nor repeated.
type watermark struct {
	at   time.Time
	seen map[string]struct{}
}

func newWatermark(since time.Time) *watermark {
	return &watermark{at: since, seen: map[string]struct{}{}}
}

func (w *watermark) seenIDs() []string {
	ids := make([]string, 0, len(w.seen))
	for id := range w.seen {
		ids = append(ids, id)
	}
	return ids
}

// advance expects cases oldest first.
func (w *watermark) advance(cases []model.Case) {
	newest := cases[len(cases)-1].ReportedAt
	if newest.After(w.at) {
		w.at = newest
		w.seen = map[string]struct{}{}
	}
	for _, c := range cases {
		if c.ReportedAt.Equal(w.at) {
			w.seen[c.ID] = struct{}{}
		}
	}
}
