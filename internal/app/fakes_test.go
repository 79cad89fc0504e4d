package app

import (
	"context"
	"sync"

	"github.com/huddlewire/signaling/internal/domain"
)

type sentMsg struct {
	conn    domain.ConnectionID
	event   string
	payload any
}

type broadcastMsg struct {
	session domain.SessionID
	event   string
	payload any
	exclude domain.ConnectionID
}

type fakeTransport struct {
	mu         sync.Mutex
	sent       []sentMsg
	broadcasts []broadcastMsg
	rooms      map[domain.SessionID]map[domain.ConnectionID]bool
	dropped    []domain.ConnectionID
	sendErr    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{rooms: make(map[domain.SessionID]map[domain.ConnectionID]bool)}
}

func (f *fakeTransport) Send(conn domain.ConnectionID, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMsg{conn: conn, event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Broadcast(session domain.SessionID, event string, payload any, exclude domain.ConnectionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, broadcastMsg{session: session, event: event, payload: payload, exclude: exclude})
}

func (f *fakeTransport) JoinRoom(conn domain.ConnectionID, session domain.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[session] == nil {
		f.rooms[session] = make(map[domain.ConnectionID]bool)
	}
	f.rooms[session][conn] = true
}

func (f *fakeTransport) LeaveRoom(conn domain.ConnectionID, session domain.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[session], conn)
}

func (f *fakeTransport) Drop(conn domain.ConnectionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, conn)
}

func (f *fakeTransport) sentMessages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

func (f *fakeTransport) broadcastsOf(event string) []broadcastMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcastMsg
	for _, b := range f.broadcasts {
		if b.event == event {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakeTransport) droppedConns() []domain.ConnectionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ConnectionID(nil), f.dropped...)
}

func (f *fakeTransport) inRoom(session domain.SessionID, conn domain.ConnectionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[session][conn]
}

type publishedMsg struct {
	topic   string
	payload []byte
}

type fakeBus struct {
	mu        sync.Mutex
	published []publishedMsg
	handler   func(topic string, payload []byte)
}

func (f *fakeBus) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, _ string, handler func(topic string, payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) publishedMessages() []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMsg(nil), f.published...)
}

// deliver simulates an event arriving from the bus.
func (f *fakeBus) deliver(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}
