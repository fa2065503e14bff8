package service

import (
	"context"

	"minesweeper_coop/internal/domain"
	"minesweeper_coop/internal/logger"
	"minesweeper_coop/internal/repository"
)

// PlayerService управляет записями игроков и их членством в комнатах;
// после любой мутации очков рассылает агрегированную статистику
type PlayerService struct {
	players *repository.PlayerRepository
	rooms   *repository.RoomRepository
	events  EventChannel
}

func NewPlayerService(players *repository.PlayerRepository, rooms *repository.RoomRepository, events EventChannel) *PlayerService {
	return &PlayerService{players: players, rooms: rooms, events: events}
}

// Join создает или обновляет запись игрока и добавляет его в комнату.
// Идемпотентен относительно реконнекта: повторный вход той же identity
// не дублирует членство и не сбрасывает счет
func (s *PlayerService) Join(ctx context.Context, room *domain.Room, playerID, name string) error {
	p, err := s.players.Get(ctx, playerID)
	if err != nil {
		return err
	}
	if p == nil {
		p = &domain.Player{ID: playerID, Name: name, Room: room.Code, PvpPlayerIndex: -1}
	} else {
		p.Name = name
		p.Room = room.Code
	}
	if err := s.players.Upsert(ctx, p); err != nil {
		return err
	}

	if !room.HasPlayer(playerID) {
		room.Players = append(room.Players, playerID)
		if err := s.rooms.SetMembers(ctx, room.Code, room.Players); err != nil {
			return err
		}
	}

	s.events.Subscribe(playerID, room.Code)

	// комната уже в терминальном состоянии - сразу повторяем статус входящему
	if room.Mode == domain.ModeCoop {
		if room.GameOver {
			s.events.Emit(playerID, EvtGameOver, map[string]any{"name": ""})
		} else if room.GameWon {
			s.events.Emit(playerID, EvtGameWon, map[string]any{})
		}
	}

	s.BroadcastStats(ctx, room.Code, room.Players)
	return nil
}

// Leave убирает игрока из комнаты; опустевшая комната удаляется сразу,
// не дожидаясь TTL
func (s *PlayerService) Leave(ctx context.Context, room *domain.Room, playerID string) error {
	p, err := s.players.Get(ctx, playerID)
	if err != nil {
		return err
	}

	remaining := make([]string, 0, len(room.Players))
	for _, id := range room.Players {
		if id != playerID {
			remaining = append(remaining, id)
		}
	}
	room.Players = remaining

	s.events.Unsubscribe(playerID, room.Code)
	if err := s.players.Delete(ctx, playerID); err != nil {
		return err
	}

	if len(remaining) == 0 {
		logger.Info("room emptied, deleting", "room", room.Code)
		return s.rooms.Delete(ctx, room.Code)
	}

	if err := s.rooms.SetMembers(ctx, room.Code, remaining); err != nil {
		return err
	}

	name := ""
	if p != nil {
		name = p.Name
	}
	// уведомление нужно слою отображения - у него может жить транзиентное
	// состояние ушедшего (курсор, подсветка)
	s.events.Broadcast(room.Code, EvtPlayerLeft, map[string]any{
		"playerId": playerID,
		"name":     name,
	})
	s.BroadcastStats(ctx, room.Code, remaining)
	return nil
}

// StatsSnapshot собирает таблицу очков по записям всех участников;
// пропавшие записи молча пропускаются
func (s *PlayerService) StatsSnapshot(ctx context.Context, members []string) ([]domain.PlayerStats, error) {
	stats := make([]domain.PlayerStats, 0, len(members))
	for _, id := range members {
		p, err := s.players.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		stats = append(stats, domain.PlayerStats{Name: p.Name, Score: p.Score})
	}
	return stats, nil
}

func (s *PlayerService) BroadcastStats(ctx context.Context, roomCode string, members []string) {
	stats, err := s.StatsSnapshot(ctx, members)
	if err != nil {
		logger.Error("stats snapshot failed", "room", roomCode, "error", err)
		return
	}
	s.events.Broadcast(roomCode, EvtPlayerStatsUpdate, stats)
}

// ResetScores зануляет очки всех участников (сброс coop игры, pvp рематч)
func (s *PlayerService) ResetScores(ctx context.Context, members []string) error {
	for _, id := range members {
		if err := s.players.ResetScore(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Discard удаляет осиротевшую запись игрока, чья комната уже исчезла
func (s *PlayerService) Discard(ctx context.Context, playerID string) {
	if err := s.players.Delete(ctx, playerID); err != nil {
		logger.Error("player delete failed", "player", playerID, "error", err)
	}
}

func (s *PlayerService) Get(ctx context.Context, playerID string) (*domain.Player, error) {
	return s.players.Get(ctx, playerID)
}

func (s *PlayerService) AddScore(ctx context.Context, playerID string, delta int) (int, error) {
	return s.players.AddScore(ctx, playerID, delta)
}
