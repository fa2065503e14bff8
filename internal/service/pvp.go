package service

import (
	"context"
	"math/rand"

	"minesweeper_coop/internal/domain"
	"minesweeper_coop/internal/game"
	"minesweeper_coop/internal/logger"
	"minesweeper_coop/internal/metrics"
	"minesweeper_coop/internal/repository"
)

// PvpMode - две независимые доски, по одной на игрока. Каждый мутирует
// только свою; гонка возможна лишь на инициализации доски и заявке победы,
// обе закрыты блокировками
type PvpMode struct {
	rooms    *repository.RoomRepository
	players  *repository.PlayerRepository
	sessions *PlayerService
	guard    *repository.Guard
	events   EventChannel
}

func NewPvpMode(rooms *repository.RoomRepository, players *repository.PlayerRepository, sessions *PlayerService, guard *repository.Guard, events EventChannel) *PvpMode {
	return &PvpMode{rooms: rooms, players: players, sessions: sessions, guard: guard, events: events}
}

// StartGame запускает матч: только хост, ровно два участника, не запущено
func (m *PvpMode) StartGame(ctx context.Context, room *domain.Room, p *domain.Player) {
	if p.ID != room.HostID {
		logger.Debug("start rejected: not host", "room", room.Code, "player", p.ID)
		return
	}
	if len(room.Players) != 2 {
		logger.Debug("start rejected: need two players", "room", room.Code)
		return
	}
	if room.Started {
		logger.Debug("start rejected: already started", "room", room.Code)
		return
	}

	mines := game.CapMines(room.NumRows, room.NumCols, room.NumMines)
	totalSafe := room.NumRows*room.NumCols - mines
	seed := rand.Int63()

	if err := m.rooms.StartPvp(ctx, room, totalSafe, seed); err != nil {
		logger.Error("pvp start failed", "room", room.Code, "error", err)
		return
	}
	room.Started = true
	room.TotalSafeCells = totalSafe
	room.Seed = seed
	room.WinnerID = ""

	for _, id := range room.Players {
		idx := 1
		if id == room.HostID {
			idx = 0
		}
		oppName := ""
		if opp, err := m.players.Get(ctx, room.Opponent(id)); err == nil && opp != nil {
			oppName = opp.Name
		}
		if err := m.players.SetPvpInfo(ctx, id, idx, oppName); err != nil {
			logger.Error("pvp info save failed", "player", id, "error", err)
		}
		m.events.Emit(id, EvtPvpGameStarted, map[string]any{
			"playerIndex":    idx,
			"opponentName":   oppName,
			"isHost":         id == room.HostID,
			"totalSafeCells": totalSafe,
			"symmetric":      room.Symmetric,
		})
	}
	logger.Info("pvp game started", "room", room.Code, "symmetric", room.Symmetric)
}

// индекс доски игрока в запущенном матче. Берется из персистентной записи,
// выданной при старте: передача хоста после ухода оппонента не должна
// переключать выжившего на чужую доску
func (m *PvpMode) boardIndex(room *domain.Room, p *domain.Player) (int, bool) {
	if p.PvpPlayerIndex == 0 || p.PvpPlayerIndex == 1 {
		return p.PvpPlayerIndex, true
	}
	return room.PlayerIndex(p.ID)
}

// OpenCell открывает клетку на собственной доске игрока. Первое открытие
// лениво генерирует именно его доску под init lock c индексом игрока
func (m *PvpMode) OpenCell(ctx context.Context, room *domain.Room, p *domain.Player, row, col int) {
	if !room.Started {
		return
	}
	idx, ok := m.boardIndex(room, p)
	if !ok {
		return
	}
	pb := &room.PvpBoards[idx]
	if pb.GameOver || pb.GameWon {
		return
	}

	first := false
	if !pb.Initialized {
		generated, err := m.initBoard(ctx, room, idx, row, col)
		if err != nil {
			logger.Warn("pvp board init failed, dropping open", "room", room.Code, "idx", idx, "error", err)
			return
		}
		first = generated
	}

	res := game.Reveal(pb.Board, row, col)
	if len(res.Updated) == 0 && !first {
		return
	}
	m.applyReveal(ctx, room, p, idx, res, first)
}

// ChordCell - аккорд на собственной доске
func (m *PvpMode) ChordCell(ctx context.Context, room *domain.Room, p *domain.Player, row, col int) {
	if !room.Started {
		return
	}
	idx, ok := m.boardIndex(room, p)
	if !ok {
		return
	}
	pb := &room.PvpBoards[idx]
	if pb.GameOver || pb.GameWon || !pb.Initialized {
		return
	}
	if !pb.Board.InBounds(row, col) || !pb.Board[row][col].IsOpen {
		return
	}

	res := game.Chord(pb.Board, row, col)
	if len(res.Updated) == 0 {
		return
	}
	m.applyReveal(ctx, room, p, idx, res, false)
}

// ToggleFlag на собственной доске
func (m *PvpMode) ToggleFlag(ctx context.Context, room *domain.Room, p *domain.Player, row, col int) {
	if !room.Started {
		return
	}
	idx, ok := m.boardIndex(room, p)
	if !ok {
		return
	}
	pb := &room.PvpBoards[idx]
	if pb.GameOver || pb.GameWon || !pb.Initialized {
		return
	}
	upd, flipped := game.ToggleFlag(pb.Board, row, col)
	if !flipped {
		return
	}
	if err := m.rooms.SavePlayerBoard(ctx, room.Code, idx, pb.Board); err != nil {
		logger.Error("pvp board save failed", "room", room.Code, "idx", idx, "error", err)
		return
	}
	m.events.Emit(p.ID, EvtUpdateCells, []domain.CellUpdate{upd})
}

// применяет изменения доски игрока: сохранение, прогресс, очки, броадкасты.
// Обновления клеток видит только действующий игрок; оппонент получает
// только счетчик прогресса
func (m *PvpMode) applyReveal(ctx context.Context, room *domain.Room, p *domain.Player, idx int, res game.RevealResult, first bool) {
	pb := &room.PvpBoards[idx]

	if err := m.rooms.SavePlayerBoard(ctx, room.Code, idx, pb.Board); err != nil {
		logger.Error("pvp board save failed", "room", room.Code, "idx", idx, "error", err)
		return
	}

	if first {
		m.events.Emit(p.ID, EvtPvpBoardUpdate, boardPayload(pb.Board, room.NumRows, room.NumCols, room.NumMines))
	} else {
		m.events.Emit(p.ID, EvtUpdateCells, res.Updated)
	}

	opponent := room.Opponent(p.ID)

	if res.MineHit {
		if err := m.rooms.SetPlayerGameOver(ctx, room.Code, idx); err != nil {
			logger.Error("pvp game over save failed", "room", room.Code, "idx", idx, "error", err)
		}
		pb.GameOver = true
		m.events.Emit(p.ID, EvtGameOver, map[string]any{"name": p.Name})
		if opponent != "" {
			// оппонент продолжает играть, уведомление чисто косметическое
			m.events.Emit(opponent, EvtPvpOpponentGameOver, map[string]any{"name": p.Name})
		}
		return
	}

	if res.SafeOpened > 0 {
		pb.Progress += res.SafeOpened
		if err := m.rooms.SetProgress(ctx, room.Code, idx, pb.Progress); err != nil {
			logger.Error("pvp progress save failed", "room", room.Code, "idx", idx, "error", err)
		}
		if _, err := m.sessions.AddScore(ctx, p.ID, res.SafeOpened); err != nil {
			logger.Error("score update failed", "player", p.ID, "error", err)
		}
		m.sessions.BroadcastStats(ctx, room.Code, room.Players)
		if opponent != "" {
			m.events.Emit(opponent, EvtPvpProgressUpdate, map[string]any{
				"progress":       pb.Progress,
				"totalSafeCells": room.TotalSafeCells,
			})
		}
	}

	if pb.Progress == room.TotalSafeCells {
		m.claimWin(ctx, room, p, idx)
	}
}

// claimWin переводит комнату в состояние победы ровно один раз.
// Собственный флаг won игрок получает всегда; winnerId и броадкаст -
// только первый успешный заявитель под winner lock
func (m *PvpMode) claimWin(ctx context.Context, room *domain.Room, p *domain.Player, idx int) {
	if err := m.rooms.SetPlayerWon(ctx, room.Code, idx); err != nil {
		logger.Error("pvp won flag save failed", "room", room.Code, "idx", idx, "error", err)
	}
	room.PvpBoards[idx].GameWon = true

	acquired, err := m.guard.AcquireWinnerLock(ctx, room.Code)
	if err != nil {
		logger.Error("winner lock failed", "room", room.Code, "error", err)
		return
	}
	if !acquired {
		return
	}
	defer m.guard.ReleaseWinnerLock(ctx, room.Code)

	// двойная проверка: победитель мог записаться до захвата блокировки
	winner, err := m.rooms.Winner(ctx, room.Code)
	if err != nil {
		logger.Error("winner read failed", "room", room.Code, "error", err)
		return
	}
	if winner != "" {
		return
	}

	if err := m.rooms.SetWinner(ctx, room.Code, p.ID); err != nil {
		logger.Error("winner save failed", "room", room.Code, "error", err)
		return
	}
	room.WinnerID = p.ID
	metrics.GamesWon.WithLabelValues(string(domain.ModePvp)).Inc()
	m.events.Broadcast(room.Code, EvtPvpGameWon, map[string]any{
		"winnerId": p.ID,
		"name":     p.Name,
	})
	logger.Info("pvp winner claimed", "room", room.Code, "winner", p.ID)
}

// ResetMyBoard - самостоятельный сброс собственной доски, пока победитель
// не заявлен. Доску и очки оппонента не трогает
func (m *PvpMode) ResetMyBoard(ctx context.Context, room *domain.Room, p *domain.Player) {
	if !room.Started || room.WinnerID != "" {
		return
	}
	idx, ok := m.boardIndex(room, p)
	if !ok {
		return
	}

	if err := m.rooms.ResetPlayerBoard(ctx, room.Code, idx, room.NumRows, room.NumCols); err != nil {
		logger.Error("pvp board reset failed", "room", room.Code, "idx", idx, "error", err)
		return
	}
	room.PvpBoards[idx] = domain.PvpBoardState{Board: domain.NewEmptyBoard(room.NumRows, room.NumCols)}

	if err := m.players.ResetScore(ctx, p.ID); err != nil {
		logger.Error("score reset failed", "player", p.ID, "error", err)
	}

	m.events.Emit(p.ID, EvtPvpBoardUpdate, boardPayload(room.PvpBoards[idx].Board, room.NumRows, room.NumCols, room.NumMines))
	if opponent := room.Opponent(p.ID); opponent != "" {
		m.events.Emit(opponent, EvtPvpProgressUpdate, map[string]any{
			"progress":       0,
			"totalSafeCells": room.TotalSafeCells,
		})
	}
	m.sessions.BroadcastStats(ctx, room.Code, room.Players)
}

// Rematch - рестарт матча хостом: обе доски, прогресс, очки и winnerId
// сбрасываются вместе, идентичности и хост сохраняются
func (m *PvpMode) Rematch(ctx context.Context, room *domain.Room, p *domain.Player) {
	if p.ID != room.HostID || !room.Started {
		return
	}

	mines := game.CapMines(room.NumRows, room.NumCols, room.NumMines)
	totalSafe := room.NumRows*room.NumCols - mines
	seed := rand.Int63()

	if err := m.rooms.StartPvp(ctx, room, totalSafe, seed); err != nil {
		logger.Error("pvp rematch failed", "room", room.Code, "error", err)
		return
	}
	for i := range room.PvpBoards {
		room.PvpBoards[i] = domain.PvpBoardState{Board: domain.NewEmptyBoard(room.NumRows, room.NumCols)}
	}
	room.WinnerID = ""
	room.TotalSafeCells = totalSafe
	room.Seed = seed

	if err := m.sessions.ResetScores(ctx, room.Players); err != nil {
		logger.Error("score reset failed", "room", room.Code, "error", err)
	}

	m.events.Broadcast(room.Code, EvtPvpRematchStarted, map[string]any{
		"totalSafeCells": totalSafe,
	})
	m.sessions.BroadcastStats(ctx, room.Code, room.Players)
	logger.Info("pvp rematch", "room", room.Code)
}

// HandleLeave - выход или обрыв соединения участника pvp комнаты:
// оставшийся становится хостом, а при незавершенном матче получает
// техническую победу (событие отличается от победы прохождением)
func (m *PvpMode) HandleLeave(ctx context.Context, room *domain.Room, leaverID string) {
	survivor := room.Opponent(leaverID)
	if survivor == "" {
		return
	}

	if leaverID == room.HostID {
		if err := m.rooms.SetHost(ctx, room.Code, survivor); err != nil {
			logger.Error("host transfer failed", "room", room.Code, "error", err)
		} else {
			room.HostID = survivor
			m.events.Emit(survivor, EvtPvpHostChanged, map[string]any{"isHost": true})
		}
	}

	forfeit := false
	if room.Started && room.WinnerID == "" {
		forfeit = m.claimForfeit(ctx, room, survivor)
	}
	m.events.Emit(survivor, EvtPvpOpponentLeft, map[string]any{
		"forfeit":  forfeit,
		"winnerId": room.WinnerID,
	})
}

// техническая победа проходит через тот же winner lock, что и обычная:
// уход оппонента может гоняться с его же последним открытием
func (m *PvpMode) claimForfeit(ctx context.Context, room *domain.Room, survivor string) bool {
	acquired, err := m.guard.AcquireWinnerLock(ctx, room.Code)
	if err != nil || !acquired {
		return false
	}
	defer m.guard.ReleaseWinnerLock(ctx, room.Code)

	winner, err := m.rooms.Winner(ctx, room.Code)
	if err != nil || winner != "" {
		return false
	}
	if err := m.rooms.SetWinner(ctx, room.Code, survivor); err != nil {
		logger.Error("forfeit winner save failed", "room", room.Code, "error", err)
		return false
	}
	room.WinnerID = survivor
	metrics.GamesWon.WithLabelValues(string(domain.ModePvp)).Inc()
	return true
}

// initBoard генерирует доску конкретного игрока ровно один раз.
// Симметричная комната использует сидированный генератор с общим сидом -
// обе доски побитово совпадают ценой отсутствия безопасного первого клика
func (m *PvpMode) initBoard(ctx context.Context, room *domain.Room, idx, row, col int) (bool, error) {
	acquired, err := m.guard.AcquireInitLock(ctx, room.Code, idx)
	if err != nil {
		return false, err
	}

	if acquired {
		defer m.guard.ReleaseInitLock(ctx, room.Code, idx)

		done, err := m.rooms.IsPlayerInitialized(ctx, room.Code, idx)
		if err != nil {
			return false, err
		}
		if !done {
			var board domain.Board
			if room.Symmetric {
				board = game.GenerateSeeded(room.NumRows, room.NumCols, room.NumMines, room.Seed)
			} else {
				board = game.Generate(room.NumRows, room.NumCols, room.NumMines, row, col)
			}
			if err := m.rooms.MarkPlayerInitialized(ctx, room.Code, idx, board); err != nil {
				return false, err
			}
			room.PvpBoards[idx].Board = board
			room.PvpBoards[idx].Initialized = true
			return true, nil
		}
	} else {
		err := m.guard.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
			return m.rooms.IsPlayerInitialized(ctx, room.Code, idx)
		})
		if err != nil {
			return false, err
		}
	}

	fresh, err := m.rooms.Get(ctx, room.Code)
	if err != nil {
		return false, err
	}
	room.PvpBoards[idx] = fresh.PvpBoards[idx]
	return false, nil
}
