package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpstunnel/gpstunnel/internal/events"
	"github.com/gpstunnel/gpstunnel/internal/worker"
)

var occurredAt = time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC)

func sampleEvent() events.ProgressEvent {
	return events.ProgressEvent{
		ID:         "evt_7",
		Type:       events.EventWaypointReached,
		SessionID:  "sess_1",
		RouteID:    "route_1",
		UserID:     "user_1",
		WaypointID: "wp_2",
		Index:      2,
		Total:      5,
		OccurredAt: occurredAt,
	}
}

func encode(t *testing.T, event events.ProgressEvent) []byte {
	t.Helper()
	data, err := events.Encode(event)
	require.NoError(t, err)
	return data
}

type recordingSink struct {
	stored []events.ProgressEvent
	err    error
}

func (s *recordingSink) Store(_ context.Context, event events.ProgressEvent) error {
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, event)
	return nil
}

func TestPostgresSink_Store(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ev := sampleEvent()
	mock.ExpectExec(`INSERT INTO tour_progress_events`).
		WithArgs("evt_7", "waypoint_reached", "sess_1", "route_1", "user_1", "wp_2", 2, 5, occurredAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sink := worker.NewPostgresSink(mock)
	require.NoError(t, sink.Store(context.Background(), ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_StoreError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO tour_progress_events`).
		WillReturnError(errors.New("connection refused"))

	err = worker.NewPostgresSink(mock).Store(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert progress event")
}

func TestEventID(t *testing.T) {
	ev := sampleEvent()
	assert.Equal(t, "evt_7", worker.EventID(ev))

	ev.ID = ""
	assert.Equal(t, "sess_1:waypoint_reached:2", worker.EventID(ev))
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		sinkErr   error
		want      worker.Outcome
		wantStore int
	}{
		{name: "valid event", data: nil, want: worker.Ack, wantStore: 1},
		{name: "malformed json", data: []byte("{not json"), want: worker.Ack},
		{name: "unknown type", data: []byte(`{"type":"jumped","sessionId":"s"}`), want: worker.Ack},
		{name: "sink failure", data: nil, sinkErr: errors.New("db down"), want: worker.Nack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			if data == nil {
				data = encode(t, sampleEvent())
			}
			sink := &recordingSink{err: tt.sinkErr}
			p := worker.NewProcessor(sink, time.Second, zerolog.Nop())

			assert.Equal(t, tt.want, p.Process(context.Background(), data))
			assert.Len(t, sink.stored, tt.wantStore)
		})
	}
}

func TestMultiSink_StoresEverywhere(t *testing.T) {
	first := &recordingSink{err: errors.New("first failed")}
	second := &recordingSink{}

	err := worker.MultiSink{first, second}.Store(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Len(t, second.stored, 1)
}

func TestRelaySink_PublishesToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, events.SessionChannel("sess_1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sink := worker.NewRelaySink(events.NewRedisPublisher(client))
	require.NoError(t, sink.Store(ctx, sampleEvent()))

	select {
	case msg := <-sub.Channel():
		ev, err := events.Decode([]byte(msg.Payload))
		require.NoError(t, err)
		assert.Equal(t, "wp_2", ev.WaypointID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}
