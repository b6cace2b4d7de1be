package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - failed to create server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("events:comms_publisher_integration_test - server failed to start")
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("events:comms_publisher_integration_test - failed to connect: %v", err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

func subscribeEvents(t *testing.T, nc *comms.Conn, subject string) (chan *ObjectLifecycleEvent, *comms.Subscription) {
	t.Helper()
	received := make(chan *ObjectLifecycleEvent, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event ObjectLifecycleEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("events:comms_publisher_integration_test - failed to unmarshal: %v", err)
			return
		}
		received <- &event
	})
	if err != nil {
		t.Fatalf("events:comms_publisher_integration_test - failed to subscribe: %v", err)
	}
	return received, sub
}

func TestCommsPublisher_PublishObjectEvent_ActionSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14230)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	received, sub := subscribeEvents(t, nc, "webapps.objects.registered")
	defer sub.Unsubscribe()

	event := NewObjectLifecycleEvent(ActionRegistered, "AlarmAlarm0", "Alarm", "Alarm", 1)
	if err := publisher.PublishObjectEvent(context.Background(), event); err != nil {
		t.Fatalf("events:comms_publisher_integration_test - PublishObjectEvent failed: %v", err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.ObjectID != "AlarmAlarm0" {
			t.Errorf("events:comms_publisher_integration_test - ObjectID = %q, want %q", got.ObjectID, "AlarmAlarm0")
		}
		if got.URI != "Alarm" || got.ClassName != "Alarm" {
			t.Errorf("events:comms_publisher_integration_test - unexpected metadata %s/%s", got.URI, got.ClassName)
		}
		if got.Live != 1 {
			t.Errorf("events:comms_publisher_integration_test - Live = %d, want 1", got.Live)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_publisher_integration_test - timeout waiting for action event")
	}
}

func TestCommsPublisher_PublishObjectEvent_BothSubjects(t *testing.T) {
	nc, cleanup := startTestServer(t, 14231)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)

	actionReceived, sub1 := subscribeEvents(t, nc, "webapps.objects.deleted")
	defer sub1.Unsubscribe()
	globalReceived, sub2 := subscribeEvents(t, nc, "webapps.objects")
	defer sub2.Unsubscribe()

	event := NewObjectLifecycleEvent(ActionDeleted, "LauncherAction2", "Launcher", "Action", 0)
	if err := publisher.PublishObjectEvent(context.Background(), event); err != nil {
		t.Fatalf("events:comms_publisher_integration_test - PublishObjectEvent failed: %v", err)
	}
	nc.Flush()

	for _, ch := range []struct {
		name string
		ch   chan *ObjectLifecycleEvent
	}{
		{"action", actionReceived},
		{"global", globalReceived},
	} {
		select {
		case got := <-ch.ch:
			if got.Action != ActionDeleted {
				t.Errorf("events:comms_publisher_integration_test - %s: Action = %q, want deleted", ch.name, got.Action)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("events:comms_publisher_integration_test - timeout waiting for %s event", ch.name)
		}
	}
}

func TestCommsPublisher_CustomGlobalSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14232)
	defer cleanup()

	customSubject := "custom.objects"
	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{GlobalSubject: customSubject})
	received, sub := subscribeEvents(t, nc, customSubject)
	defer sub.Unsubscribe()

	event := NewObjectLifecycleEvent(ActionRegistered, "x", "U", "C", 3)
	if err := publisher.PublishObjectEvent(context.Background(), event); err != nil {
		t.Fatalf("events:comms_publisher_integration_test - PublishObjectEvent failed: %v", err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.ObjectID != "x" {
			t.Errorf("events:comms_publisher_integration_test - ObjectID = %q, want x", got.ObjectID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_publisher_integration_test - timeout waiting for custom subject event")
	}
}

func TestNewCommsPublisher_Defaults(t *testing.T) {
	nc, cleanup := startTestServer(t, 14233)
	defer cleanup()

	for _, opts := range []*CommsPublisherOpts{nil, {GlobalSubject: ""}} {
		publisher := NewCommsPublisher(nc, opts)
		if publisher.globalSubject != "webapps.objects" {
			t.Errorf("events:comms_publisher_integration_test - globalSubject = %q, want %q",
				publisher.globalSubject, "webapps.objects")
		}
	}
}
