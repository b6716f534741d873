package recorder

import (
	"errors"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/SuperID/nanoservices/pkg/commsutil"
	"github.com/SuperID/nanoservices/pkg/svcerr"
	"github.com/SuperID/nanoservices/pkg/trace"
)

// startTestServer starts an in-process NATS server on a random port.
func startTestServer(t *testing.T) *comms.Conn {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   commsserver.RANDOM_PORT,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("recorder:comms_test - failed to create server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("recorder:comms_test - server failed to start")
	}

	nc, err := commsutil.Connect(ns.ClientURL(), "recorder-test")
	if err != nil {
		ns.Shutdown()
		t.Fatalf("recorder:comms_test - failed to connect: %v", err)
	}
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return nc
}

func TestCommsRecorder_PublishesPerKind(t *testing.T) {
	nc := startTestServer(t)

	rec, err := NewCommsRecorder(nc, "test.trace")
	if err != nil {
		t.Fatalf("recorder:comms_test - NewCommsRecorder: %v", err)
	}

	received := make(chan *comms.Msg, 4)
	sub, err := nc.ChanSubscribe(commsutil.BuildTraceWildcard("test.trace"), received)
	if err != nil {
		t.Fatalf("recorder:comms_test - subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	rec.Record(testEvent(trace.KindCall, trace.CallPayload{Service: "user.get", Params: map[string]interface{}{"phone": "1"}}))
	rec.Record(testEvent(trace.KindResult, trace.ResultPayload{Spent: 5, Result: "ok"}))
	nc.Flush()

	wantSubjects := []string{"test.trace.call", "test.trace.result"}
	wantContent := []string{
		`{"service":"user.get","params":{"phone":"1"}}`,
		`{"spent":5,"result":"ok"}`,
	}
	for i := range wantSubjects {
		select {
		case msg := <-received:
			if msg.Subject != wantSubjects[i] {
				t.Errorf("recorder:comms_test - subject = %q, want %q", msg.Subject, wantSubjects[i])
			}
			var m Message
			if err := commsutil.DecodePayload(msg.Data, &m); err != nil {
				t.Fatalf("recorder:comms_test - decode: %v", err)
			}
			if m.RequestID != "R:1" || m.Service != "user.get" || m.Content != wantContent[i] {
				t.Errorf("recorder:comms_test - message = %+v", m)
			}
			if !m.Time.Equal(testTime) {
				t.Errorf("recorder:comms_test - time = %v, want %v", m.Time, testTime)
			}
			if e := m.Event(); e.Content() != wantContent[i] {
				t.Errorf("recorder:comms_test - Event().Content() = %q", e.Content())
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("recorder:comms_test - timeout waiting for %s", wantSubjects[i])
		}
	}
}

func TestCommsRecorder_ClosedConnectionIsSwallowed(t *testing.T) {
	nc := startTestServer(t)
	rec, _ := NewCommsRecorder(nc, "")
	nc.Close()
	rec.Record(testEvent(trace.KindLog, "after close"))
}

func TestNewCommsRecorder_NilConn(t *testing.T) {
	if _, err := NewCommsRecorder(nil, ""); !errors.Is(err, svcerr.ErrInvalidConfiguration) {
		t.Errorf("recorder:comms_test - expected INVALID_CONFIGURATION, got %v", err)
	}
}
