package ws

import (
	"context"
	"encoding/json"
	"testing"
)

// recordingHandler фиксирует имя последнего вызова и его аргументы
type recordingHandler struct {
	calls []string
	conn  string
	cell  CellRequest
	room  RoomRequest
}

func (r *recordingHandler) note(name, connID string) {
	r.calls = append(r.calls, name)
	r.conn = connID
}

func (r *recordingHandler) OnCreateRoom(_ context.Context, connID string, _ CreateRoomRequest) {
	r.note("createRoom", connID)
}
func (r *recordingHandler) OnJoinRoom(_ context.Context, connID string, _ JoinRoomRequest) {
	r.note("joinRoom", connID)
}
func (r *recordingHandler) OnOpenCell(_ context.Context, connID string, req CellRequest) {
	r.note("openCell", connID)
	r.cell = req
}
func (r *recordingHandler) OnChordCell(_ context.Context, connID string, req CellRequest) {
	r.note("chordCell", connID)
	r.cell = req
}
func (r *recordingHandler) OnToggleFlag(_ context.Context, connID string, req CellRequest) {
	r.note("toggleFlag", connID)
	r.cell = req
}
func (r *recordingHandler) OnCellHover(_ context.Context, connID string, req CellRequest) {
	r.note("cellHover", connID)
	r.cell = req
}
func (r *recordingHandler) OnResetGame(_ context.Context, connID string, req RoomRequest) {
	r.note("resetGame", connID)
	r.room = req
}
func (r *recordingHandler) OnStartPvpGame(_ context.Context, connID string, req RoomRequest) {
	r.note("startPvpGame", connID)
	r.room = req
}
func (r *recordingHandler) OnResetMyBoard(_ context.Context, connID string, req RoomRequest) {
	r.note("resetMyBoard", connID)
	r.room = req
}
func (r *recordingHandler) OnPvpRematch(_ context.Context, connID string, req RoomRequest) {
	r.note("pvpRematch", connID)
	r.room = req
}
func (r *recordingHandler) OnConfetti(_ context.Context, connID string, req RoomRequest) {
	r.note("confetti", connID)
	r.room = req
}
func (r *recordingHandler) OnLeave(_ context.Context, connID string) {
	r.note("leave", connID)
}

func newTestHub() (*Hub, *recordingHandler) {
	h := NewHub()
	rec := &recordingHandler{}
	h.SetHandler(rec)
	return h, rec
}

func TestDispatch_ValidCellEvent(t *testing.T) {
	h, rec := newTestHub()

	h.dispatch("c1", []byte(`{"type":"openCell","payload":{"room":"r1","row":3,"col":4}}`))

	if len(rec.calls) != 1 || rec.calls[0] != "openCell" {
		t.Fatalf("ожидался один вызов openCell, получено %v", rec.calls)
	}
	if rec.conn != "c1" || rec.cell.Room != "r1" || rec.cell.Row != 3 || rec.cell.Col != 4 {
		t.Fatalf("аргументы разобраны неверно: %q %+v", rec.conn, rec.cell)
	}
}

func TestDispatch_DropsInvalidInput(t *testing.T) {
	h, rec := newTestHub()

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type":"openCell","payload":"string"}`),
		[]byte(`{"type":"openCell","payload":{"room":"","row":1,"col":1}}`),
		[]byte(`{"type":"openCell","payload":{"room":"r1","row":-1,"col":1}}`),
		[]byte(`{"type":"createRoom","payload":{"room":""}}`),
		[]byte(`{"type":"resetGame","payload":{"room":""}}`),
		[]byte(`{"type":"noSuchEvent","payload":{}}`),
	}
	for _, raw := range cases {
		h.dispatch("c1", raw)
	}

	if len(rec.calls) != 0 {
		t.Fatalf("кривой ввод должен отбрасываться до обработчика, вызовы %v", rec.calls)
	}
}

func TestDispatch_RoomEvents(t *testing.T) {
	h, rec := newTestHub()

	h.dispatch("c1", []byte(`{"type":"startPvpGame","payload":{"room":"r1"}}`))
	h.dispatch("c1", []byte(`{"type":"emitConfetti","payload":{"room":"r1"}}`))
	h.dispatch("c1", []byte(`{"type":"playerLeave","payload":{}}`))

	want := []string{"startPvpGame", "confetti", "leave"}
	if len(rec.calls) != len(want) {
		t.Fatalf("вызовы: %v", rec.calls)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("вызов %d: %q, ожидался %q", i, rec.calls[i], want[i])
		}
	}
}

func TestHub_EmitAndBroadcast(t *testing.T) {
	h, _ := newTestHub()

	c1 := NewClient("c1", nil, h)
	c2 := NewClient("c2", nil, h)
	c3 := NewClient("c3", nil, h)
	h.mu.Lock()
	h.clients["c1"], h.clients["c2"], h.clients["c3"] = c1, c2, c3
	h.mu.Unlock()

	h.Subscribe("c1", "r1")
	h.Subscribe("c2", "r1")
	h.Subscribe("c3", "other")

	h.Broadcast("r1", "gameWon", map[string]any{})

	for _, c := range []*Client{c1, c2} {
		select {
		case raw := <-c.Send:
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "gameWon" {
				t.Fatalf("подписчик %s получил не то: %s", c.ID, raw)
			}
		default:
			t.Fatalf("подписчик %s не получил броадкаст", c.ID)
		}
	}
	select {
	case raw := <-c3.Send:
		t.Fatalf("чужая комната не должна получать броадкаст: %s", raw)
	default:
	}

	// адресная отправка
	h.Emit("c3", "roomInvalid", map[string]any{"room": "r1"})
	select {
	case raw := <-c3.Send:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "roomInvalid" {
			t.Fatalf("emit доставил не то: %s", raw)
		}
	default:
		t.Fatalf("emit должен доставить адресату")
	}

	// отправка незнакомому id безопасна
	h.Emit("ghost", "gameWon", map[string]any{})
}

func TestHub_BroadcastExcept(t *testing.T) {
	h, _ := newTestHub()

	c1 := NewClient("c1", nil, h)
	c2 := NewClient("c2", nil, h)
	h.mu.Lock()
	h.clients["c1"], h.clients["c2"] = c1, c2
	h.mu.Unlock()
	h.Subscribe("c1", "r1")
	h.Subscribe("c2", "r1")

	h.BroadcastExcept("r1", "c1", "playerHoverUpdate", map[string]any{})

	select {
	case <-c1.Send:
		t.Fatalf("исключенный не должен получать событие")
	default:
	}
	select {
	case <-c2.Send:
	default:
		t.Fatalf("остальные должны получить событие")
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	h, _ := newTestHub()

	c := NewClient("c1", nil, h)
	h.mu.Lock()
	h.clients["c1"] = c
	h.mu.Unlock()
	h.Subscribe("c1", "r1")

	// переполняем буфер; лишние события молча отбрасываются
	for i := 0; i < sendBufferSize+10; i++ {
		h.Broadcast("r1", "updateCells", i)
	}
	if len(c.Send) != sendBufferSize {
		t.Fatalf("буфер должен быть полон, в нем %d", len(c.Send))
	}
}

// обрыв соединения во время броадкаста: снапшот получателей снимается
// до удаления клиента, отправка ушедшему не должна ронять процесс
func TestHub_BroadcastRacesUnregister(t *testing.T) {
	h, _ := newTestHub()

	const rounds = 50
	for i := 0; i < rounds; i++ {
		c := NewClient("c1", nil, h)
		h.mu.Lock()
		h.clients["c1"] = c
		h.mu.Unlock()
		h.Subscribe("c1", "r1")

		done := make(chan struct{})
		go func() {
			defer close(done)
			// широкий payload растягивает окно между снапшотом и отправкой
			payload := make([]int, 512)
			for j := 0; j < 20; j++ {
				h.Broadcast("r1", "updateCells", payload)
			}
		}()
		h.Unregister(c)
		<-done
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h, _ := newTestHub()

	c := NewClient("c1", nil, h)
	h.mu.Lock()
	h.clients["c1"] = c
	h.mu.Unlock()
	h.Subscribe("c1", "r1")
	h.Unsubscribe("c1", "r1")

	h.Broadcast("r1", "gameWon", map[string]any{})
	select {
	case <-c.Send:
		t.Fatalf("после отписки событий быть не должно")
	default:
	}
}
