package server

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEncodePCM16LE(t *testing.T) {
	data := encodePCM16LE([]float64{0.5, -0.5, 2.0, -2.0})

	if len(data) != 8 {
		t.Fatalf("Expected 8 bytes, got %d", len(data))
	}

	first := int16(binary.LittleEndian.Uint16(data[0:2]))
	if first != 16384 {
		t.Errorf("Expected 16384 for 0.5, got %d", first)
	}

	clippedHigh := int16(binary.LittleEndian.Uint16(data[4:6]))
	if clippedHigh != 32767 {
		t.Errorf("Over-range samples must clip to 32767, got %d", clippedHigh)
	}

	clippedLow := int16(binary.LittleEndian.Uint16(data[6:8]))
	if clippedLow != -32768 {
		t.Errorf("Under-range samples must clip to -32768, got %d", clippedLow)
	}
}

func TestMonitorHubWriteWithoutClients(t *testing.T) {
	hub := NewMonitorHub(testLogger())

	// Must be a cheap no-op on the audio path.
	hub.Write([]float64{0.1, 0.2, 0.3})

	if hub.ListenerCount() != 0 {
		t.Errorf("Expected no listeners, got %d", hub.ListenerCount())
	}
}

func TestMonitorHubBroadcast(t *testing.T) {
	hub := NewMonitorHub(testLogger())

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		hub.Add(conn)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	// The hub registers the client on the server goroutine; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ListenerCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Listener never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Write([]float64{0.25, -0.25})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("Expected binary message, got type %d", msgType)
	}
	if len(data) != 4 {
		t.Errorf("Expected 4 bytes of PCM, got %d", len(data))
	}

	hub.CloseAll()

	deadline = time.Now().Add(2 * time.Second)
	for hub.ListenerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("CloseAll did not drop the listener")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
