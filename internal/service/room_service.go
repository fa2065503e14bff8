package service

import (
	"context"
	"errors"

	"minesweeper_coop/internal/domain"
	"minesweeper_coop/internal/logger"
	"minesweeper_coop/internal/metrics"
	"minesweeper_coop/internal/repository"
)

// RoomService - жизненный цикл комнат: создание, вход, проверка членства
type RoomService struct {
	rooms    *repository.RoomRepository
	players  *repository.PlayerRepository
	sessions *PlayerService
	events   EventChannel
}

func NewRoomService(rooms *repository.RoomRepository, players *repository.PlayerRepository, sessions *PlayerService, events EventChannel) *RoomService {
	return &RoomService{rooms: rooms, players: players, sessions: sessions, events: events}
}

type CreateParams struct {
	Room        string
	Rows        int
	Cols        int
	Mines       int
	Mode        domain.Mode
	Symmetric   bool
	CreatorID   string
	CreatorName string
}

// Create заводит комнату и сразу вводит в нее создателя.
// Существующий код комнаты или невалидные размеры - явная ошибка,
// о которой клиенту сообщают отдельным событием
func (s *RoomService) Create(ctx context.Context, p CreateParams) (*domain.Room, error) {
	exists, err := s.rooms.Exists(ctx, p.Room)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrRoomExists
	}
	if err := domain.ValidateDimensions(p.Rows, p.Cols, p.Mines); err != nil {
		return nil, err
	}
	if p.Mode != domain.ModeCoop && p.Mode != domain.ModePvp {
		return nil, domain.ErrInvalidParams
	}

	room := &domain.Room{
		Code:     p.Room,
		Mode:     p.Mode,
		NumRows:  p.Rows,
		NumCols:  p.Cols,
		NumMines: p.Mines,
	}
	switch p.Mode {
	case domain.ModeCoop:
		room.Board = domain.NewEmptyBoard(p.Rows, p.Cols)
	case domain.ModePvp:
		room.HostID = p.CreatorID
		room.Symmetric = p.Symmetric
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	metrics.RoomsCreated.WithLabelValues(string(p.Mode)).Inc()
	logger.Info("room created", "room", p.Room, "mode", p.Mode, "rows", p.Rows, "cols", p.Cols, "mines", p.Mines)

	if err := s.sessions.Join(ctx, room, p.CreatorID, p.CreatorName); err != nil {
		return nil, err
	}
	return room, nil
}

// Join вводит игрока в существующую комнату. PVP комната вмещает двух
// различных игроков; реконнект участника проходит всегда
func (s *RoomService) Join(ctx context.Context, code, playerID, name string) (*domain.Room, error) {
	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.Mode == domain.ModePvp && !room.HasPlayer(playerID) && len(room.Players) >= 2 {
		return nil, domain.ErrRoomFull
	}

	if err := s.sessions.Join(ctx, room, playerID, name); err != nil {
		return nil, err
	}

	// второй pvp игрок на месте - обе стороны узнают оппонента
	if room.Mode == domain.ModePvp && len(room.Players) == 2 {
		s.notifyRoomReady(ctx, room)
	}
	return room, nil
}

func (s *RoomService) notifyRoomReady(ctx context.Context, room *domain.Room) {
	for _, id := range room.Players {
		opp, err := s.players.Get(ctx, room.Opponent(id))
		if err != nil || opp == nil {
			logger.Warn("opponent record missing on room ready", "room", room.Code, "error", err)
			continue
		}
		s.events.Emit(id, EvtPvpRoomReady, map[string]any{
			"opponentName": opp.Name,
			"isHost":       id == room.HostID,
		})
	}
}

// ValidateMember - guard перед любой мутацией клеток: комната и игрок
// существуют, и игрок числится в комнате. При провале вызывающему
// отправляется уведомление о невалидной комнате и он из нее убирается
func (s *RoomService) ValidateMember(ctx context.Context, code, playerID string) (*domain.Room, *domain.Player, bool) {
	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			logger.Error("room read failed", "room", code, "error", err)
			return nil, nil, false
		}
		s.evict(code, playerID)
		return nil, nil, false
	}

	p, err := s.players.Get(ctx, playerID)
	if err != nil {
		logger.Error("player read failed", "player", playerID, "error", err)
		return nil, nil, false
	}
	if p == nil || !room.HasPlayer(playerID) {
		s.evict(code, playerID)
		return nil, nil, false
	}
	return room, p, true
}

func (s *RoomService) evict(code, playerID string) {
	s.events.Emit(playerID, EvtRoomInvalid, map[string]any{"room": code})
	s.events.Unsubscribe(playerID, code)
}
