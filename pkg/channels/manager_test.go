package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/logger"
)

type fakeChannel struct {
	id       string
	enabled  bool
	startErr error
	started  bool
	stopped  bool
	sent     chan *bus.Message
}

func (f *fakeChannel) ID() string      { return f.id }
func (f *fakeChannel) Name() string    { return "Fake " + f.id }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }

func (f *fakeChannel) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeChannel) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeChannel) SendMessage(ctx context.Context, msg *bus.Message) error {
	f.sent <- msg
	return nil
}

func TestManagerRoutesOutboundToChannel(t *testing.T) {
	b := bus.NewLocalBus(logger.NewNop(), 10)
	b.Start()
	defer b.Stop()

	ch := &fakeChannel{id: "discord", enabled: true, sent: make(chan *bus.Message, 1)}
	m := NewManager(logger.NewNop(), b)
	if err := m.Register(ch); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !ch.started || !m.Status()["discord"] {
		t.Fatalf("channel not started")
	}

	b.SendOutbound(&bus.Message{ID: "r1", ChannelID: "discord", ChatID: "c1", Content: "hi"})

	select {
	case msg := <-ch.sent:
		if msg.ID != "r1" {
			t.Fatalf("unexpected message %s", msg.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for outbound delivery")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !ch.stopped || m.Status()["discord"] {
		t.Fatalf("channel not stopped")
	}
}

func TestManagerSkipsDisabledAndRejectsDuplicates(t *testing.T) {
	m := NewManager(logger.NewNop(), bus.NewLocalBus(logger.NewNop(), 1))

	disabled := &fakeChannel{id: "discord"}
	if err := m.Register(disabled); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(&fakeChannel{id: "discord"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if disabled.started {
		t.Fatalf("disabled channel must not start")
	}
	if _, err := m.GetChannel("discord"); err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if _, err := m.GetChannel("slack"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestManagerStartFailure(t *testing.T) {
	m := NewManager(logger.NewNop(), bus.NewLocalBus(logger.NewNop(), 1))
	m.Register(&fakeChannel{id: "discord", enabled: true, startErr: errors.New("invalid token")})

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
}
