package service

import (
	"context"
	"errors"
	"strings"

	"minesweeper_coop/internal/domain"
	"minesweeper_coop/internal/logger"
	"minesweeper_coop/internal/ws"
)

// Coordinator - входная точка всех игровых событий: проверяет членство,
// выбирает обработчик активного режима. Ошибки жизненного цикла уходят
// клиенту именованными событиями, невалидные внутриигровые запросы
// отбрасываются молча
type Coordinator struct {
	registry *RoomService
	sessions *PlayerService
	coop     *CoopMode
	pvp      *PvpMode
	events   EventChannel
}

func NewCoordinator(registry *RoomService, sessions *PlayerService, coop *CoopMode, pvp *PvpMode, events EventChannel) *Coordinator {
	return &Coordinator{registry: registry, sessions: sessions, coop: coop, pvp: pvp, events: events}
}

// приводит имя к отображаемому виду; пустое имя заменяется заглушкой.
// Обрезка по рунам - срез байтов мог бы разорвать многобайтовый символ
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "anonymous"
	}
	if r := []rune(name); len(r) > 24 {
		name = string(r[:24])
	}
	return name
}

func parseMode(raw string) (domain.Mode, bool) {
	switch raw {
	case "", string(domain.ModeCoop):
		return domain.ModeCoop, true
	case string(domain.ModePvp):
		return domain.ModePvp, true
	}
	return "", false
}

func (c *Coordinator) OnCreateRoom(ctx context.Context, connID string, req ws.CreateRoomRequest) {
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.events.Emit(connID, EvtCreateRoomError, map[string]any{"reason": "unknown mode"})
		return
	}

	room, err := c.registry.Create(ctx, CreateParams{
		Room:        req.Room,
		Rows:        req.NumRows,
		Cols:        req.NumCols,
		Mines:       req.NumMines,
		Mode:        mode,
		Symmetric:   req.Symmetric,
		CreatorID:   connID,
		CreatorName: sanitizeName(req.Name),
	})
	if err != nil {
		reason := "internal error"
		switch {
		case errors.Is(err, domain.ErrRoomExists):
			reason = "room already exists"
		case errors.Is(err, domain.ErrInvalidParams):
			reason = "invalid board parameters"
		default:
			logger.Error("create room failed", "room", req.Room, "error", err)
		}
		c.events.Emit(connID, EvtCreateRoomError, map[string]any{"reason": reason})
		return
	}

	c.events.Emit(connID, EvtJoinRoomSuccess, map[string]any{
		"room":   room.Code,
		"mode":   room.Mode,
		"isHost": room.Mode == domain.ModePvp,
	})
}

func (c *Coordinator) OnJoinRoom(ctx context.Context, connID string, req ws.JoinRoomRequest) {
	room, err := c.registry.Join(ctx, req.Room, connID, sanitizeName(req.Name))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			c.events.Emit(connID, EvtJoinRoomError, map[string]any{"room": req.Room})
		case errors.Is(err, domain.ErrRoomFull):
			c.events.Emit(connID, EvtPvpRoomFull, map[string]any{"room": req.Room})
		default:
			logger.Error("join room failed", "room", req.Room, "error", err)
			c.events.Emit(connID, EvtJoinRoomError, map[string]any{"room": req.Room})
		}
		return
	}

	c.events.Emit(connID, EvtJoinRoomSuccess, map[string]any{
		"room":   room.Code,
		"mode":   room.Mode,
		"isHost": room.Mode == domain.ModePvp && room.HostID == connID,
	})
}

// member загружает комнату и игрока, проверяя границы клетки; общая
// прелюдия всех клеточных операций
func (c *Coordinator) member(ctx context.Context, connID string, req ws.CellRequest) (*domain.Room, *domain.Player, bool) {
	room, p, ok := c.registry.ValidateMember(ctx, req.Room, connID)
	if !ok {
		return nil, nil, false
	}
	if req.Row < 0 || req.Row >= room.NumRows || req.Col < 0 || req.Col >= room.NumCols {
		return nil, nil, false
	}
	return room, p, true
}

func (c *Coordinator) OnOpenCell(ctx context.Context, connID string, req ws.CellRequest) {
	room, p, ok := c.member(ctx, connID, req)
	if !ok {
		return
	}
	switch room.Mode {
	case domain.ModeCoop:
		c.coop.OpenCell(ctx, room, p, req.Row, req.Col)
	case domain.ModePvp:
		c.pvp.OpenCell(ctx, room, p, req.Row, req.Col)
	}
}

func (c *Coordinator) OnChordCell(ctx context.Context, connID string, req ws.CellRequest) {
	room, p, ok := c.member(ctx, connID, req)
	if !ok {
		return
	}
	switch room.Mode {
	case domain.ModeCoop:
		c.coop.ChordCell(ctx, room, p, req.Row, req.Col)
	case domain.ModePvp:
		c.pvp.ChordCell(ctx, room, p, req.Row, req.Col)
	}
}

func (c *Coordinator) OnToggleFlag(ctx context.Context, connID string, req ws.CellRequest) {
	room, p, ok := c.member(ctx, connID, req)
	if !ok {
		return
	}
	switch room.Mode {
	case domain.ModeCoop:
		c.coop.ToggleFlag(ctx, room, req.Row, req.Col)
	case domain.ModePvp:
		c.pvp.ToggleFlag(ctx, room, p, req.Row, req.Col)
	}
}

// hover только в coop: на общей доске курсоры других игроков видимы
func (c *Coordinator) OnCellHover(ctx context.Context, connID string, req ws.CellRequest) {
	room, p, ok := c.member(ctx, connID, req)
	if !ok || room.Mode != domain.ModeCoop {
		return
	}
	c.coop.Hover(room, p, req.Row, req.Col)
}

func (c *Coordinator) OnResetGame(ctx context.Context, connID string, req ws.RoomRequest) {
	room, _, ok := c.registry.ValidateMember(ctx, req.Room, connID)
	if !ok || room.Mode != domain.ModeCoop {
		return
	}
	c.coop.Reset(ctx, room)
}

func (c *Coordinator) OnStartPvpGame(ctx context.Context, connID string, req ws.RoomRequest) {
	room, p, ok := c.registry.ValidateMember(ctx, req.Room, connID)
	if !ok || room.Mode != domain.ModePvp {
		return
	}
	c.pvp.StartGame(ctx, room, p)
}

func (c *Coordinator) OnResetMyBoard(ctx context.Context, connID string, req ws.RoomRequest) {
	room, p, ok := c.registry.ValidateMember(ctx, req.Room, connID)
	if !ok || room.Mode != domain.ModePvp {
		return
	}
	c.pvp.ResetMyBoard(ctx, room, p)
}

func (c *Coordinator) OnPvpRematch(ctx context.Context, connID string, req ws.RoomRequest) {
	room, p, ok := c.registry.ValidateMember(ctx, req.Room, connID)
	if !ok || room.Mode != domain.ModePvp {
		return
	}
	c.pvp.Rematch(ctx, room, p)
}

func (c *Coordinator) OnConfetti(ctx context.Context, connID string, req ws.RoomRequest) {
	_, _, ok := c.registry.ValidateMember(ctx, req.Room, connID)
	if !ok {
		return
	}
	c.events.Broadcast(req.Room, EvtReceiveConfetti, map[string]any{})
}

// OnLeave обрабатывает и явный playerLeave, и обрыв соединения - для
// сервера это одно и то же
func (c *Coordinator) OnLeave(ctx context.Context, connID string) {
	p, err := c.sessions.Get(ctx, connID)
	if err != nil {
		logger.Error("player read failed on leave", "player", connID, "error", err)
		return
	}
	if p == nil {
		return
	}

	room, err := c.registry.rooms.Get(ctx, p.Room)
	if err != nil {
		// комната уже истекла или удалена - чистим только запись игрока
		c.sessions.Discard(ctx, connID)
		return
	}

	if room.Mode == domain.ModePvp {
		c.pvp.HandleLeave(ctx, room, connID)
	}
	if err := c.sessions.Leave(ctx, room, connID); err != nil {
		logger.Error("leave failed", "room", room.Code, "player", connID, "error", err)
	}
}
