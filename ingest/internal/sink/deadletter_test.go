package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/dlq"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

type fakeQueue struct {
	err     error
	records []openphone.Record
	errs    []error
	reasons []string
	ctxErr  error
}

func (q *fakeQueue) Write(ctx context.Context, rec openphone.Record, err error, reason string) error {
	q.records = append(q.records, rec)
	q.errs = append(q.errs, err)
	q.reasons = append(q.reasons, reason)
	q.ctxErr = ctx.Err()
	return q.err
}

func TestDeadLetter_Success(t *testing.T) {
	next := &fakeSink{}
	queue := &fakeQueue{}

	err := WithDeadLetter(next, queue, logging.Discard()).Deliver(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, queue.records)
}

func TestDeadLetter_FailureIsQueued(t *testing.T) {
	deliverErr := errors.New("postgres sink: connection refused")
	queue := &fakeQueue{}
	d := WithDeadLetter(&fakeSink{err: deliverErr}, queue, logging.Discard())

	err := d.Deliver(context.Background(), testRecord())
	assert.ErrorIs(t, err, deliverErr)

	require.Len(t, queue.records, 1)
	assert.Equal(t, "AC123", queue.records[0].EntityID)
	assert.Equal(t, deliverErr, queue.errs[0])
	assert.Equal(t, dlq.ReasonSinkFailure, queue.reasons[0])
}

func TestDeadLetter_ExpiredRequestContext(t *testing.T) {
	queue := &fakeQueue{}
	d := WithDeadLetter(&fakeSink{err: context.DeadlineExceeded}, queue, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	err := d.Deliver(ctx, testRecord())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, queue.records, 1)
	assert.NoError(t, queue.ctxErr)
}

func TestDeadLetter_QueueFailureKeepsDeliveryError(t *testing.T) {
	deliverErr := errors.New("boom")
	d := WithDeadLetter(&fakeSink{err: deliverErr}, &fakeQueue{err: errors.New("disk full")}, logging.Discard())

	err := d.Deliver(context.Background(), testRecord())
	assert.ErrorIs(t, err, deliverErr)
}

func TestDeadLetter_FileQueue(t *testing.T) {
	queue, err := dlq.NewQueue(t.TempDir())
	require.NoError(t, err)

	d := WithDeadLetter(Fanout{&fakeSink{err: errors.New("boom")}}, queue, logging.Discard())
	require.Error(t, d.Deliver(context.Background(), testRecord()))

	events, err := queue.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "boom", events[0].Error)
}

func TestDeadLetter_PingAndClose(t *testing.T) {
	next := &fakeSink{pingErr: errors.New("down")}
	d := WithDeadLetter(next, &fakeQueue{}, logging.Discard())

	assert.ErrorContains(t, d.Ping(context.Background()), "down")
	require.NoError(t, d.Close())
	assert.True(t, next.closed)
}
