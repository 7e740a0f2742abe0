package lobbypush

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"kaillera-relay/internal/lobbypush/platforms"
)

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.dispatchCh:
			metricPushQueueLen.Set(int64(len(m.dispatchCh)))
			if err := m.deliver(ctx, job); err != nil {
				m.retryOrDrop(job, err)
			}
		}
	}
}

// deliver sends one job through its platform adapter, consulting the
// target's breaker first.
func (m *Manager) deliver(ctx context.Context, job pushJob) error {
	adapter, ok := m.adapters[job.Target.Platform]
	if !ok {
		metricPushDroppedTotal.Add(1)
		log.Warn().Str("platform", job.Target.Platform).Msg("lobby push: unknown platform")
		return nil
	}
	key := job.key()
	if err := m.breaker.allow(key, m.now()); err != nil {
		metricPushCircuitOpenTotal.Add(1)
		return err
	}
	if err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, FormatMessage(job.Event, m.cfg.ServerName)); err != nil {
		metricPushFailedTotal.Add(1)
		m.breaker.fail(key, m.now())
		return err
	}
	metricPushSentTotal.Add(1)
	m.breaker.succeed(key)
	return nil
}

// retryOrDrop schedules job again after RetryBase doubled per attempt, until
// RetryMax retries have been spent.
func (m *Manager) retryOrDrop(job pushJob, err error) {
	if job.Attempt >= m.cfg.RetryMax || platforms.Permanent(err) {
		metricPushRetryDroppedTotal.Add(1)
		log.Warn().Err(err).
			Str("event", job.Event.Type).
			Str("platform", job.Target.Platform).
			Int("attempts", job.Attempt+1).
			Msg("lobby push dropped")
		return
	}
	delay := backoff(m.cfg.RetryBase, job.Attempt)
	job.Attempt++
	metricPushRetryTotal.Add(1)
	m.retryQ.Enqueue(job, delay)
}

func backoff(base time.Duration, attempt int) time.Duration {
	return base << attempt
}
