package watch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFiltersByUser(t *testing.T) {
	h := NewHub(4, nil)
	all, cancelAll := h.Subscribe("")
	defer cancelAll()
	mine, cancelMine := h.Subscribe("u1")
	defer cancelMine()

	h.Publish(Event{UserID: "u2", TurnID: "a"})
	h.Publish(Event{UserID: "u1", TurnID: "b"})

	assert.Equal(t, "a", (<-all).TurnID)
	assert.Equal(t, "b", (<-all).TurnID)
	assert.Equal(t, "b", (<-mine).TurnID)
	assert.Empty(t, mine)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(1, nil)
	ch, cancel := h.Subscribe("")
	defer cancel()

	h.Publish(Event{TurnID: "1"})
	h.Publish(Event{TurnID: "2"})

	assert.Equal(t, "1", (<-ch).TurnID)
	assert.Empty(t, ch)
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(1, nil)
	ch, cancel := h.Subscribe("")
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers())
	_, ok := <-ch
	assert.False(t, ok)
}

func TestHubConcurrentPublish(t *testing.T) {
	h := NewHub(1000, nil)
	ch, cancel := h.Subscribe("")
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(Event{UserID: "u"})
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ch, 500)
}

func TestHandlerStreamsEvents(t *testing.T) {
	h := NewHub(8, nil)
	srv := httptest.NewServer(NewHandler(h, "*", false))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=u1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	h.Publish(Event{UserID: "u2", TurnID: "other"})
	h.Publish(Event{UserID: "u1", TurnID: "t1", ActiveAgent: "job_info"})

	var got Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, "t1", got.TurnID)
	assert.Equal(t, "job_info", got.ActiveAgent)
}

func TestHandlerRejectsOrigin(t *testing.T) {
	h := NewHub(1, nil)
	srv := httptest.NewServer(NewHandler(h, "https://ops.example.com", false))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
