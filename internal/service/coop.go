package service

import (
	"context"

	"minesweeper_coop/internal/domain"
	"minesweeper_coop/internal/game"
	"minesweeper_coop/internal/logger"
	"minesweeper_coop/internal/metrics"
	"minesweeper_coop/internal/repository"
)

// CoopMode - одна общая доска на всех участников. Мутации best-effort
// (последняя запись побеждает); строго защищена только единственность
// генерации доски через init lock
type CoopMode struct {
	rooms    *repository.RoomRepository
	sessions *PlayerService
	guard    *repository.Guard
	events   EventChannel
}

func NewCoopMode(rooms *repository.RoomRepository, sessions *PlayerService, guard *repository.Guard, events EventChannel) *CoopMode {
	return &CoopMode{rooms: rooms, sessions: sessions, guard: guard, events: events}
}

// OpenCell открывает клетку, лениво генерируя доску при первом клике комнаты
func (m *CoopMode) OpenCell(ctx context.Context, room *domain.Room, p *domain.Player, row, col int) {
	if room.GameOver || room.GameWon {
		return
	}

	first := false
	if !room.Initialized {
		generated, err := m.initBoard(ctx, room, row, col)
		if err != nil {
			logger.Warn("coop board init failed, dropping open", "room", room.Code, "error", err)
			return
		}
		first = generated
	}

	res := game.Reveal(room.Board, row, col)
	if len(res.Updated) == 0 && !first {
		return
	}
	m.applyReveal(ctx, room, p, res, first)
}

// ChordCell - аккорд по открытой клетке с совпавшим числом флагов
func (m *CoopMode) ChordCell(ctx context.Context, room *domain.Room, p *domain.Player, row, col int) {
	if room.GameOver || room.GameWon || !room.Initialized {
		return
	}
	if !room.Board.InBounds(row, col) || !room.Board[row][col].IsOpen {
		return
	}

	res := game.Chord(room.Board, row, col)
	if len(res.Updated) == 0 {
		return
	}
	m.applyReveal(ctx, room, p, res, false)
}

// единая точка применения изменений доски: сохранение, очки, броадкасты,
// проверки конца игры. Очки начисляются за каждую фактически открытую
// безопасную клетку - и за одиночное открытие, и за аккорд
func (m *CoopMode) applyReveal(ctx context.Context, room *domain.Room, p *domain.Player, res game.RevealResult, first bool) {
	if err := m.rooms.SaveBoard(ctx, room.Code, room.Board); err != nil {
		logger.Error("board save failed", "room", room.Code, "error", err)
		return
	}

	if first {
		m.events.Broadcast(room.Code, EvtBoardUpdate, boardPayload(room.Board, room.NumRows, room.NumCols, room.NumMines))
	} else {
		m.events.Broadcast(room.Code, EvtUpdateCells, res.Updated)
	}

	if res.MineHit {
		if err := m.rooms.SetGameOver(ctx, room.Code); err != nil {
			logger.Error("game over flag save failed", "room", room.Code, "error", err)
		}
		room.GameOver = true
		m.events.Broadcast(room.Code, EvtGameOver, map[string]any{"name": p.Name})
		return
	}

	if res.SafeOpened > 0 {
		if _, err := m.sessions.AddScore(ctx, p.ID, res.SafeOpened); err != nil {
			logger.Error("score update failed", "player", p.ID, "error", err)
		}
		m.sessions.BroadcastStats(ctx, room.Code, room.Players)
	}

	m.checkWin(ctx, room)
}

// победа: каждая не-minная клетка открыта и ни одна мина не открыта.
// Повторное чтение персистентного флага прямо перед установкой убирает
// дублирование won-броадкаста при почти одновременных открытиях
func (m *CoopMode) checkWin(ctx context.Context, room *domain.Room) {
	for r := range room.Board {
		for c := range room.Board[r] {
			cell := room.Board[r][c]
			if cell.IsMine && cell.IsOpen {
				return
			}
			if !cell.IsMine && !cell.IsOpen {
				return
			}
		}
	}

	won, err := m.rooms.IsGameWon(ctx, room.Code)
	if err != nil {
		logger.Error("game won flag read failed", "room", room.Code, "error", err)
		return
	}
	if won {
		return
	}
	if err := m.rooms.SetGameWon(ctx, room.Code); err != nil {
		logger.Error("game won flag save failed", "room", room.Code, "error", err)
		return
	}
	room.GameWon = true
	metrics.GamesWon.WithLabelValues(string(domain.ModeCoop)).Inc()
	m.events.Broadcast(room.Code, EvtGameWon, map[string]any{})
}

// ToggleFlag переключает флаг закрытой клетки; чистая операция без каскада
func (m *CoopMode) ToggleFlag(ctx context.Context, room *domain.Room, row, col int) {
	if room.GameOver || room.GameWon || !room.Initialized {
		return
	}
	upd, ok := game.ToggleFlag(room.Board, row, col)
	if !ok {
		return
	}
	if err := m.rooms.SaveBoard(ctx, room.Code, room.Board); err != nil {
		logger.Error("board save failed", "room", room.Code, "error", err)
		return
	}
	m.events.Broadcast(room.Code, EvtUpdateCells, []domain.CellUpdate{upd})
}

// Reset возвращает комнату к неинициализированной доске и нулевым счетам
func (m *CoopMode) Reset(ctx context.Context, room *domain.Room) {
	empty := domain.NewEmptyBoard(room.NumRows, room.NumCols)
	if err := m.rooms.ResetCoop(ctx, room.Code, empty); err != nil {
		logger.Error("coop reset failed", "room", room.Code, "error", err)
		return
	}
	room.Board = empty
	room.Initialized = false
	room.GameOver = false
	room.GameWon = false

	if err := m.sessions.ResetScores(ctx, room.Players); err != nil {
		logger.Error("score reset failed", "room", room.Code, "error", err)
	}

	m.events.Broadcast(room.Code, EvtBoardUpdate, boardPayload(empty, room.NumRows, room.NumCols, room.NumMines))
	m.events.Broadcast(room.Code, EvtResetEveryone, map[string]any{})
	m.sessions.BroadcastStats(ctx, room.Code, room.Players)
}

// Hover ретранслирует позицию курсора остальным участникам
func (m *CoopMode) Hover(room *domain.Room, p *domain.Player, row, col int) {
	m.events.BroadcastExcept(room.Code, p.ID, EvtPlayerHoverUpdate, map[string]any{
		"playerId": p.ID,
		"name":     p.Name,
		"row":      row,
		"col":      col,
	})
}

// initBoard гарантирует ровно одну генерацию доски на комнату.
// Возвращает true, если доску сгенерировал этот вызов
func (m *CoopMode) initBoard(ctx context.Context, room *domain.Room, row, col int) (bool, error) {
	acquired, err := m.guard.AcquireInitLock(ctx, room.Code, -1)
	if err != nil {
		return false, err
	}

	if acquired {
		defer m.guard.ReleaseInitLock(ctx, room.Code, -1)

		// блокировка могла достаться нам уже после чужой генерации
		done, err := m.rooms.IsInitialized(ctx, room.Code)
		if err != nil {
			return false, err
		}
		if !done {
			board := game.Generate(room.NumRows, room.NumCols, room.NumMines, row, col)
			if err := m.rooms.MarkInitialized(ctx, room.Code, board); err != nil {
				return false, err
			}
			room.Board = board
			room.Initialized = true
			return true, nil
		}
	} else {
		// доску генерирует кто-то другой - ждем флага с ограниченным опросом
		err := m.guard.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
			return m.rooms.IsInitialized(ctx, room.Code)
		})
		if err != nil {
			return false, err
		}
	}

	fresh, err := m.rooms.Get(ctx, room.Code)
	if err != nil {
		return false, err
	}
	room.Board = fresh.Board
	room.Initialized = fresh.Initialized
	return false, nil
}

func boardPayload(b domain.Board, rows, cols, mines int) map[string]any {
	return map[string]any{
		"board":    b,
		"numRows":  rows,
		"numCols":  cols,
		"numMines": mines,
	}
}
