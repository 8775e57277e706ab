package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/model"
)

type recordingChannel struct {
	mu     sync.Mutex
	events []Type
	err    error
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Send(ctx context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e.Type)
	return c.err
}

func ordersState() model.SyncState {
	return model.SyncState{
		ID:             "0190a1b2-0000-7000-8000-000000000001",
		RecordType:     "orders",
		Kind:           model.KindFull,
		Mode:           model.ModeAppend,
		Status:         model.StatusRunning,
		TotalProcessed: 150,
	}
}

var allTypes = []Type{SyncStarted, ChunkProcessed, SyncCompleted, SyncFailed, RetryScheduled, RetriesExhausted}

func TestDispatcher_SubscribersSeeEverything(t *testing.T) {
	ch := &recordingChannel{}
	d := NewDispatcher(DefaultToggles(), WithChannels(ch))

	var seen []Type
	d.Subscribe(func(ctx context.Context, e Event) { seen = append(seen, e.Type) })

	for _, typ := range allTypes {
		d.Publish(context.Background(), Event{Type: typ, State: ordersState()})
	}

	assert.Equal(t, allTypes, seen)
	assert.Equal(t, []Type{SyncFailed, RetryScheduled, RetriesExhausted}, ch.events)
}

func TestDispatcher_ChannelErrorIsSwallowed(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ch := &recordingChannel{err: errors.New("unreachable")}
	d := NewDispatcher(Toggles{Error: true}, WithChannels(ch), WithLogger(logger))

	d.Publish(context.Background(), Event{Type: SyncFailed, State: ordersState(), Err: "boom"})

	assert.Len(t, ch.events, 1)
	assert.Contains(t, logs.String(), "notification failed")
	assert.Contains(t, logs.String(), "unreachable")
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Subscribe(func(context.Context, Event) {})
	d.Publish(context.Background(), Event{Type: SyncStarted})
}

func TestToggles_Allows(t *testing.T) {
	all := Toggles{Started: true, ChunkProcessed: true, SyncCompleted: true, Retry: true, RetryExhausted: true, Error: true}
	for _, typ := range allTypes {
		assert.True(t, all.Allows(typ), typ)
		assert.False(t, Toggles{}.Allows(typ), typ)
	}
	assert.False(t, all.Allows(Type("sync.unknown")))

	def := DefaultToggles()
	assert.False(t, def.Allows(SyncCompleted))
	assert.True(t, def.Allows(RetriesExhausted))
}

func TestMessage(t *testing.T) {
	st := ordersState()
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Type: SyncStarted, State: st}, "Sheet sync started: orders (full, append)"},
		{Event{Type: ChunkProcessed, State: st, Processed: 50}, "Sheet sync progress: orders processed 50 records (150 total)"},
		{Event{Type: SyncCompleted, State: st}, "Sheet sync completed: orders (150 records)"},
		{Event{Type: SyncFailed, State: st, Err: "boom"}, "Sheet sync failed: orders: boom"},
		{Event{Type: RetryScheduled, State: st, Attempt: 3}, "Sheet sync retry: orders attempt #3"},
		{Event{Type: RetriesExhausted, State: st, Err: "boom"}, "Sheet sync retries exhausted: orders: boom"},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.event))
		})
	}
}

func TestPayload_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := map[string]Event{
		"webhook_started":         {Type: SyncStarted, State: ordersState()},
		"webhook_retry":           {Type: RetryScheduled, State: ordersState(), Attempt: 2, Pending: 100, RetryIn: 2 * time.Minute},
		"webhook_retry_exhausted": {Type: RetriesExhausted, State: ordersState(), Err: "quota exceeded"},
	}
	for name, e := range tests {
		t.Run(name, func(t *testing.T) {
			body, err := Payload(e)
			require.NoError(t, err)
			g.Assert(t, name, body)
		})
	}
}

func TestWebhook_Send(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []byte
		kind string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		got, _ = io.ReadAll(r.Body)
		kind = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookOptions{URL: srv.URL})
	e := Event{Type: SyncFailed, State: ordersState(), Err: "boom"}
	require.NoError(t, w.Send(context.Background(), e))

	want, err := Payload(e)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.JSONEq(t, string(want), string(got))
	assert.Equal(t, "application/json", kind)
}

func TestWebhook_SendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewWebhook(WebhookOptions{URL: srv.URL}).Send(context.Background(), Event{Type: SyncStarted, State: ordersState()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestChannels(t *testing.T) {
	chs, err := Channels([]string{"log", "webhook"}, "http://localhost/hook", nil)
	require.NoError(t, err)
	require.Len(t, chs, 2)
	assert.Equal(t, ChannelLog, chs[0].Name())
	assert.Equal(t, ChannelWebhook, chs[1].Name())

	_, err = Channels([]string{"webhook"}, "", nil)
	assert.Error(t, err)

	_, err = Channels([]string{"mail"}, "", nil)
	assert.ErrorContains(t, err, `unknown channel "mail"`)
}

func TestLogChannel_Levels(t *testing.T) {
	var logs bytes.Buffer
	c := NewLogChannel(slog.New(slog.NewTextHandler(&logs, nil)))

	require.NoError(t, c.Send(context.Background(), Event{Type: RetriesExhausted, State: ordersState(), Err: "boom"}))
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "record_type=orders")
}
