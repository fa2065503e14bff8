package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"minesweeper_coop/internal/logger"
	"minesweeper_coop/internal/metrics"
)

// бюджет времени одного игрового события: дольше держать обработчик
// нет смысла, блокировки init/winner живут дольше любого запроса
const dispatchTimeout = 5 * time.Second

// Hub - реестр живых подключений и подписок на комнаты. Реализует
// service.EventChannel; входящие конверты валидирует и передает
// обработчику, назначенному при старте
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]struct{} // room -> conn ids

	handler EventHandler
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// SetHandler назначает приемник событий; вызывается один раз при сборке
func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.OpenConnections.Inc()
	logger.Debug("connection registered", "conn", c.ID)
}

// Unregister убирает подключение и сообщает игровому слою об уходе игрока.
// Send канал не закрывается: параллельный broadcast мог снять снапшот
// получателей до удаления, и запись в закрытый канал уронила бы процесс.
// writePump завершается сам через закрытие Conn
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for room, members := range h.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	metrics.OpenConnections.Dec()
	logger.Debug("connection unregistered", "conn", c.ID)

	if h.handler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		h.handler.OnLeave(ctx, c.ID)
	}
}

func (h *Hub) Subscribe(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Emit(connID, event string, payload any) {
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	h.send(c, event, payload)
}

func (h *Hub) Broadcast(room, event string, payload any) {
	h.broadcast(room, "", event, payload)
}

func (h *Hub) BroadcastExcept(room, exceptID, event string, payload any) {
	h.broadcast(room, exceptID, event, payload)
}

func (h *Hub) broadcast(room, exceptID, event string, payload any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if id == exceptID {
			continue
		}
		if c := h.clients[id]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, event, payload)
	}
}

// неблокирующая отправка: забитый канал медленного клиента не должен
// стопорить обработчик события
func (h *Hub) send(c *Client, event string, payload any) {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		logger.Error("outbound marshal failed", "event", event, "error", err)
		return
	}
	select {
	case c.Send <- data:
	default:
		logger.Warn("send buffer full, dropping", "conn", c.ID, "event", event)
	}
}

type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// dispatch валидирует конверт и типизированный payload на границе канала,
// затем зовет обработчик; неизвестные и кривые сообщения отбрасываются
func (h *Hub) dispatch(connID string, raw []byte) {
	if h.handler == nil {
		return
	}

	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Debug("bad envelope", "conn", connID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	metrics.EventsTotal.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case InCreateRoom:
		var req CreateRoomRequest
		if decode(connID, env, &req) && req.Room != "" {
			h.handler.OnCreateRoom(ctx, connID, req)
		}
	case InJoinRoom:
		var req JoinRoomRequest
		if decode(connID, env, &req) && req.Room != "" {
			h.handler.OnJoinRoom(ctx, connID, req)
		}
	case InOpenCell:
		var req CellRequest
		if decode(connID, env, &req) && validCell(req) {
			h.handler.OnOpenCell(ctx, connID, req)
		}
	case InChordCell:
		var req CellRequest
		if decode(connID, env, &req) && validCell(req) {
			h.handler.OnChordCell(ctx, connID, req)
		}
	case InToggleFlag:
		var req CellRequest
		if decode(connID, env, &req) && validCell(req) {
			h.handler.OnToggleFlag(ctx, connID, req)
		}
	case InCellHover:
		var req CellRequest
		if decode(connID, env, &req) && validCell(req) {
			h.handler.OnCellHover(ctx, connID, req)
		}
	case InResetGame:
		var req RoomRequest
		if decode(connID, env, &req) && req.Room != "" {
			h.handler.OnResetGame(ctx, connID, req)
		}
	case InStartPvpGame:
		var req RoomRequest
		if decode(connID, env, &req) && req.Room != "" {
			h.handler.OnStartPvpGame(ctx, connID, req)
		}
	case InResetMyBoard:
		var req RoomRequest
		if decode(connID, env, &req) && req.Room != "" {
			h.handler.OnResetMyBoard(ctx, connID, req)
		}
	case InPvpRematch:
		var req RoomRequest
		if decode(connID, env, &req) && req.Room != "" {
			h.handler.OnPvpRematch(ctx, connID, req)
		}
	case InEmitConfetti:
		var req RoomRequest
		if decode(connID, env, &req) && req.Room != "" {
			h.handler.OnConfetti(ctx, connID, req)
		}
	case InPlayerLeave:
		h.handler.OnLeave(ctx, connID)
	default:
		logger.Debug("unknown event", "conn", connID, "type", env.Type)
	}
}

func decode(connID string, env inboundEnvelope, dst any) bool {
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		logger.Debug("bad payload", "conn", connID, "type", env.Type, "error", err)
		return false
	}
	return true
}

func validCell(req CellRequest) bool {
	return req.Room != "" && req.Row >= 0 && req.Col >= 0
}
