// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package workqueue

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type depthReporter interface {
	queueName() string
	depth() int
}

var (
	liveQueuesMu sync.Mutex
	liveQueues   = map[depthReporter]struct{}{}

	pushBlockedCounter metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/bigsort/internal/workqueue")

	_, err := meter.Int64ObservableGauge(
		"bigsort.workqueue.depth",
		metric.WithDescription("Number of chunks read but not yet claimed by a sort worker"),
		metric.WithInt64Callback(observeQueueDepth),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create workqueue.depth gauge: %w", err))
	}

	pushBlockedCounter, err = meter.Int64Counter(
		"bigsort.workqueue.push.blocked",
		metric.WithDescription("Number of pushes that had to wait for a full queue to drain"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create workqueue.push.blocked counter: %w", err))
	}
}

// observeQueueDepth is the callback for the depth gauge. Queues are reported
// from creation until a consumer sees ErrEndOfWork.
func observeQueueDepth(_ context.Context, observer metric.Int64Observer) error {
	liveQueuesMu.Lock()
	queues := make([]depthReporter, 0, len(liveQueues))
	for q := range liveQueues {
		queues = append(queues, q)
	}
	liveQueuesMu.Unlock()

	for _, q := range queues {
		observer.Observe(int64(q.depth()), metric.WithAttributes(
			attribute.String("queue", q.queueName()),
		))
	}
	return nil
}

func registerQueue(q depthReporter) {
	liveQueuesMu.Lock()
	defer liveQueuesMu.Unlock()
	liveQueues[q] = struct{}{}
}

func unregisterQueue(q depthReporter) {
	liveQueuesMu.Lock()
	defer liveQueuesMu.Unlock()
	delete(liveQueues, q)
}

func (q *Queue[T]) attrs() attribute.Set {
	return attribute.NewSet(attribute.String("queue", q.name))
}
