package service

import (
	"sync"
	"time"

	"minesweeper_coop/internal/repository"
)

// записанное исходящее событие: кому (подключение или комната) и что
type emission struct {
	kind    string // "emit" | "broadcast" | "except"
	target  string
	except  string
	event   string
	payload any
}

// fakeChannel записывает все исходящие события вместо отправки по сети
type fakeChannel struct {
	mu   sync.Mutex
	log  []emission
	subs map[string]map[string]bool // room -> connID
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subs: make(map[string]map[string]bool)}
}

func (f *fakeChannel) Emit(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, emission{kind: "emit", target: connID, event: event, payload: payload})
}

func (f *fakeChannel) Broadcast(room, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, emission{kind: "broadcast", target: room, event: event, payload: payload})
}

func (f *fakeChannel) BroadcastExcept(room, exceptID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, emission{kind: "except", target: room, except: exceptID, event: event, payload: payload})
}

func (f *fakeChannel) Subscribe(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[room] == nil {
		f.subs[room] = make(map[string]bool)
	}
	f.subs[room][connID] = true
}

func (f *fakeChannel) Unsubscribe(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[room], connID)
}

// количество записанных событий с данным именем
func (f *fakeChannel) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.log {
		if e.event == event {
			n++
		}
	}
	return n
}

// количество событий с данным именем, адресованных конкретному получателю
func (f *fakeChannel) countFor(target, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.log {
		if e.event == event && e.target == target {
			n++
		}
	}
	return n
}

// последнее событие с данным именем, nil если не было
func (f *fakeChannel) last(event string) *emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.log) - 1; i >= 0; i-- {
		if f.log[i].event == event {
			e := f.log[i]
			return &e
		}
	}
	return nil
}

func (f *fakeChannel) subscribed(connID, room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[room][connID]
}

func (f *fakeChannel) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = nil
}

// fixture собирает весь сервисный слой поверх памяти
type fixture struct {
	store    *repository.MemoryStore
	rooms    *repository.RoomRepository
	players  *repository.PlayerRepository
	guard    *repository.Guard
	events   *fakeChannel
	sessions *PlayerService
	registry *RoomService
	coop     *CoopMode
	pvp      *PvpMode
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	rooms := repository.NewRoomRepository(store)
	players := repository.NewPlayerRepository(store)
	guard := repository.NewGuardWithPolling(store, 20, time.Millisecond)
	events := newFakeChannel()
	sessions := NewPlayerService(players, rooms, events)
	return &fixture{
		store:    store,
		rooms:    rooms,
		players:  players,
		guard:    guard,
		events:   events,
		sessions: sessions,
		registry: NewRoomService(rooms, players, sessions, events),
		coop:     NewCoopMode(rooms, sessions, guard, events),
		pvp:      NewPvpMode(rooms, players, sessions, guard, events),
	}
}
