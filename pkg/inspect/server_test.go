package inspect

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
	"github.com/fluxion-dev/fluxion/pkg/result"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildGraph(t *testing.T) (*fluxion.Registry, *fluxion.Source[int]) {
	t.Helper()
	reg := fluxion.NewRegistry()
	src := fluxion.NewSource(20, fluxion.WithName("celsius"), fluxion.WithRegistry(reg))
	doubled := fluxion.NewMap(src, func(in result.Result[int]) result.Result[int] {
		v, err := in.Value()
		if err != nil {
			return in
		}
		return result.Ok(v * 2)
	}, fluxion.WithName("doubled"), fluxion.WithRegistry(reg))
	fluxion.NewWatch(doubled, func(result.Result[int]) {}, fluxion.WithRegistry(reg))
	return reg, src
}

func TestGraphSnapshot(t *testing.T) {
	reg, src := buildGraph(t)
	srv := New(reg, WithInspectLogger(quietLogger()))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/graph")
	if err != nil {
		t.Fatalf("GET /graph: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var nodes []struct {
		ID       uint64   `json:"id"`
		Name     string   `json:"name"`
		Kind     string   `json:"kind"`
		Level    int      `json:"level"`
		Result   string   `json:"result"`
		Children []uint64 `json:"children"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&nodes); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}

	byName := make(map[string]int)
	for i, n := range nodes {
		byName[n.Name] = i
	}
	root, ok := byName["celsius"]
	if !ok {
		t.Fatal("celsius node missing from snapshot")
	}
	if nodes[root].Kind != "source" || nodes[root].Level != 0 {
		t.Errorf("unexpected root node %+v", nodes[root])
	}
	if nodes[root].ID != src.ID() {
		t.Errorf("root id %d, want %d", nodes[root].ID, src.ID())
	}
	if len(nodes[root].Children) != 1 {
		t.Errorf("root children %v, want the map node", nodes[root].Children)
	}
	if !strings.Contains(nodes[root].Result, "20") {
		t.Errorf("root result %q, want the current value rendered", nodes[root].Result)
	}

	mapped, ok := byName["doubled"]
	if !ok {
		t.Fatal("doubled node missing from snapshot")
	}
	if nodes[mapped].Kind != "map" || nodes[mapped].Level != 1 {
		t.Errorf("unexpected map node %+v", nodes[mapped])
	}
}

func TestMetricsRoute(t *testing.T) {
	reg, _ := buildGraph(t)
	srv := New(reg, WithInspectLogger(quietLogger()))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestWatchStreamsChanges(t *testing.T) {
	reg, src := buildGraph(t)
	srv := New(reg, WithInspectLogger(quietLogger()))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close()

	// Let the server register the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		n := len(srv.clients)
		srv.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	src.Set(25)
	srv.Hooks().NodeChanged(src)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev ChangeEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}

	if ev.ID != src.ID() || ev.Name != "celsius" {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Kind != "source" {
		t.Errorf("event kind %q, want source", ev.Kind)
	}
	if !strings.Contains(ev.Result, "25") {
		t.Errorf("event result %q, want the updated value", ev.Result)
	}
}

func TestSlowClientDropped(t *testing.T) {
	reg, src := buildGraph(t)
	srv := New(reg, WithInspectLogger(quietLogger()), WithSendBuffer(1))

	c := &client{send: make(chan ChangeEvent, 1)}
	srv.mu.Lock()
	srv.clients[c] = struct{}{}
	srv.mu.Unlock()

	// No writeLoop drains the channel, so the second broadcast overflows.
	// The client has no live conn; dropClient only closes the channel.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("broadcast panicked: %v", r)
		}
	}()

	hooks := srv.Hooks()
	hooks.NodeChanged(src)

	srv.mu.Lock()
	n := len(srv.clients)
	srv.mu.Unlock()
	if n != 1 {
		t.Fatalf("client dropped after one buffered event, clients=%d", n)
	}

	hooks.NodeChanged(src)

	srv.mu.Lock()
	n = len(srv.clients)
	srv.mu.Unlock()
	if n != 0 {
		t.Errorf("slow client not dropped, clients=%d", n)
	}
}

// A client disconnect closes its send channel while change events are
// being broadcast from the scheduling goroutine. The two must be able to
// race without a send landing on a closed channel.
func TestBroadcastDuringDisconnect(t *testing.T) {
	reg, src := buildGraph(t)
	srv := New(reg, WithInspectLogger(quietLogger()), WithSendBuffer(1))
	hooks := srv.Hooks()

	for i := 0; i < 200; i++ {
		c := &client{send: make(chan ChangeEvent, 1)}
		srv.mu.Lock()
		srv.clients[c] = struct{}{}
		srv.mu.Unlock()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			srv.dropClient(c)
		}()
		go func() {
			defer wg.Done()
			hooks.NodeChanged(src)
			hooks.NodeChanged(src)
		}()
		wg.Wait()
	}

	srv.mu.Lock()
	n := len(srv.clients)
	srv.mu.Unlock()
	if n != 0 {
		t.Errorf("all clients should be gone, clients=%d", n)
	}
}
