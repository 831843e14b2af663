package natsbus

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) (*Bus, *Client) {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port:    -1, // Random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)
	return bus, client
}

func TestBusAdvertisesMaxPayload(t *testing.T) {
	bus, client := newTestBus(t)

	if !strings.HasPrefix(bus.ClientURL(), "nats://") {
		t.Fatalf("unexpected client URL %q", bus.ClientURL())
	}
	if got := client.conn.MaxPayload(); got != MaxPayload {
		t.Errorf("expected max payload %d, got %d", MaxPayload, got)
	}
}

func TestDeliberationEventsWildcard(t *testing.T) {
	_, client := newTestBus(t)

	received := make(chan *nats.Msg, 2)
	_, err := client.Subscribe(TopicEventsDeliberations, func(msg *nats.Msg) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	_ = client.Flush()

	event := map[string]string{"type": "phase_changed", "run_id": "r1"}
	if err := client.PublishJSON(TopicEventsDeliberation("r1"), event); err != nil {
		t.Fatalf("publish json error: %v", err)
	}
	if err := client.PublishJSON(TopicEventsSecrets, event); err != nil {
		t.Fatalf("publish json error: %v", err)
	}
	_ = client.Flush()

	select {
	case msg := <-received:
		if msg.Subject != "events.deliberation.r1" {
			t.Errorf("unexpected subject %s", msg.Subject)
		}
		if string(msg.Data) != `{"run_id":"r1","type":"phase_changed"}` {
			t.Errorf("unexpected payload %s", msg.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case msg := <-received:
		t.Errorf("secrets event leaked into deliberation subscription: %s", msg.Subject)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishTwoImages(t *testing.T) {
	_, client := newTestBus(t)

	received := make(chan int, 1)
	_, err := client.Subscribe(TopicIPC(IPCService), func(msg *nats.Msg) {
		received <- len(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	_ = client.Flush()

	// Two 2 MiB images grow by a third when base64 encoded.
	img := bytes.Repeat([]byte{0xff}, 2<<20)
	if err := client.PublishJSON(TopicIPC(IPCService), map[string][][]byte{"images": {img, img}}); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	_ = client.Flush()

	select {
	case n := <-received:
		if n < 4<<20 {
			t.Errorf("expected full payload, got %d bytes", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for payload")
	}

	huge := bytes.Repeat([]byte{0xff}, MaxPayload)
	if err := client.PublishJSON(TopicIPC(IPCService), map[string][]byte{"image": huge}); err == nil {
		t.Error("expected oversize payload to be refused")
	}
}

func TestRequestJSON(t *testing.T) {
	_, client := newTestBus(t)

	_, err := client.Subscribe(TopicIPC(IPCService), func(msg *nats.Msg) {
		var req map[string]string
		_ = json.Unmarshal(msg.Data, &req)
		data, _ := json.Marshal(map[string]string{"echo": req["type"]})
		_ = msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	_ = client.Flush()

	var resp map[string]string
	if err := client.RequestJSON(TopicIPC(IPCService), map[string]string{"type": "state"}, &resp, 2*time.Second); err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp["echo"] != "state" {
		t.Errorf("expected echo state, got %v", resp)
	}

	if err := client.RequestJSON("host.ipc.nobody", map[string]string{}, &resp, time.Second); err == nil {
		t.Error("expected error without a responder")
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicIPC(IPCService); got != "host.ipc.council" {
		t.Errorf("expected host.ipc.council, got %s", got)
	}
	if got := TopicEventsDeliberation("r1"); got != "events.deliberation.r1" {
		t.Errorf("expected events.deliberation.r1, got %s", got)
	}
}
