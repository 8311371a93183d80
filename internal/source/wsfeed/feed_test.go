package wsfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/feedmux/feedmux/internal/model"
)

var upgrader = websocket.Upgrader{}

// startServer runs a mock feed endpoint. handler gets the server side of
// each accepted connection after the subscribe message is consumed.
func startServer(t *testing.T, handler func(conn *websocket.Conn, sub subscribeMessage)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribeMessage
		if err := json.Unmarshal(data, &sub); err != nil {
			t.Errorf("bad subscribe message: %v", err)
			return
		}
		handler(conn, sub)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func sendTick(conn *websocket.Conn, tick tickMessage) error {
	data, _ := json.Marshal(tick)
	return conn.WriteMessage(websocket.TextMessage, data)
}

func TestOpenFeed_Subscribes(t *testing.T) {
	subscribed := make(chan string, 1)
	server := startServer(t, func(conn *websocket.Conn, sub subscribeMessage) {
		subscribed <- sub.Symbol
		sendTick(conn, tickMessage{Symbol: "BTCUSD", Price: 42000.5, Volume: 0.2, Timestamp: 1700000000000})
		time.Sleep(100 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f, err := NewOpener(wsURL(server)).OpenFeed(ctx, "BTCUSD")
	if err != nil {
		t.Fatalf("OpenFeed: %v", err)
	}
	defer f.Close()

	select {
	case sym := <-subscribed:
		if sym != "BTCUSD" {
			t.Errorf("subscribed symbol = %q", sym)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw subscribe")
	}

	select {
	case point := <-f.Ticks():
		if point.Symbol != "BTCUSD" {
			t.Errorf("symbol = %q", point.Symbol)
		}
		// Ticks widen to flat bars.
		if point.Open != 42000.5 || point.High != 42000.5 || point.Low != 42000.5 || point.Close != 42000.5 {
			t.Errorf("expected flat bar, got %+v", point)
		}
		if point.Interval != model.IntervalTick {
			t.Errorf("interval = %q", point.Interval)
		}
		if !point.Timestamp.Equal(time.UnixMilli(1700000000000).UTC()) {
			t.Errorf("timestamp = %v", point.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
}

func TestFeed_MalformedTickDropped(t *testing.T) {
	server := startServer(t, func(conn *websocket.Conn, sub subscribeMessage) {
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		sendTick(conn, tickMessage{Symbol: "ETHUSD", Price: 3100, Volume: 1, Timestamp: 1700000000000})
		time.Sleep(100 * time.Millisecond)
	})

	f, err := NewOpener(wsURL(server)).OpenFeed(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("OpenFeed: %v", err)
	}
	defer f.Close()

	// The malformed frame is skipped; the valid tick still arrives.
	select {
	case point := <-f.Ticks():
		if point.Close != 3100 {
			t.Errorf("unexpected tick %+v", point)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid tick after malformed frame never arrived")
	}
}

func TestFeed_ForeignSymbolFiltered(t *testing.T) {
	server := startServer(t, func(conn *websocket.Conn, sub subscribeMessage) {
		sendTick(conn, tickMessage{Symbol: "OTHER", Price: 1, Volume: 1, Timestamp: 1700000000000})
		sendTick(conn, tickMessage{Symbol: "ETHUSD", Price: 3100, Volume: 1, Timestamp: 1700000001000})
		time.Sleep(100 * time.Millisecond)
	})

	f, err := NewOpener(wsURL(server)).OpenFeed(context.Background(), "ETHUSD")
	if err != nil {
		t.Fatalf("OpenFeed: %v", err)
	}
	defer f.Close()

	select {
	case point := <-f.Ticks():
		if point.Symbol != "ETHUSD" || point.Close != 3100 {
			t.Errorf("foreign tick leaked: %+v", point)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
}

func TestFeed_ServerCloseSurfacesError(t *testing.T) {
	server := startServer(t, func(conn *websocket.Conn, sub subscribeMessage) {
		// Return immediately so the connection closes under the reader.
	})

	f, err := NewOpener(wsURL(server)).OpenFeed(context.Background(), "BTCUSD")
	if err != nil {
		t.Fatalf("OpenFeed: %v", err)
	}
	defer f.Close()

	select {
	case err := <-f.Errors():
		if err == nil {
			t.Fatal("expected a connection error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server close never surfaced")
	}
}

func TestFeed_CloseIdempotent(t *testing.T) {
	server := startServer(t, func(conn *websocket.Conn, sub subscribeMessage) {
		time.Sleep(200 * time.Millisecond)
	})

	f, err := NewOpener(wsURL(server)).OpenFeed(context.Background(), "BTCUSD")
	if err != nil {
		t.Fatalf("OpenFeed: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
