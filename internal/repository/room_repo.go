package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"minesweeper_coop/internal/domain"
)

// имена полей хэша room:<code>
const (
	fieldMode        = "mode"
	fieldNumRows     = "numRows"
	fieldNumCols     = "numCols"
	fieldNumMines    = "numMines"
	fieldPlayers     = "players"
	fieldBoard       = "board"
	fieldInitialized = "initialized"
	fieldGameOver    = "gameOver"
	fieldGameWon     = "gameWon"
	fieldHostID      = "hostId"
	fieldWinnerID    = "winnerId"
	fieldStarted     = "started"
	fieldTotalSafe   = "totalSafeCells"
	fieldSeed        = "seed"
	fieldSymmetric   = "symmetric"
)

type RoomRepository struct {
	store Store
}

func NewRoomRepository(store Store) *RoomRepository {
	return &RoomRepository{store: store}
}

func roomKey(code string) string {
	return "room:" + code
}

// имя индексированного поля pvp доски: board0, initialized1, ...
func idxField(base string, idx int) string {
	return base + strconv.Itoa(idx)
}

func boolField(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (r *RoomRepository) Exists(ctx context.Context, code string) (bool, error) {
	return r.store.Exists(ctx, roomKey(code))
}

// сохраняет новую комнату целиком и ставит TTL
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	players, err := json.Marshal(room.Players)
	if err != nil {
		return err
	}

	fields := map[string]string{
		fieldMode:     string(room.Mode),
		fieldNumRows:  strconv.Itoa(room.NumRows),
		fieldNumCols:  strconv.Itoa(room.NumCols),
		fieldNumMines: strconv.Itoa(room.NumMines),
		fieldPlayers:  string(players),
	}

	switch room.Mode {
	case domain.ModeCoop:
		blob, err := domain.MarshalBoard(room.Board)
		if err != nil {
			return err
		}
		fields[fieldBoard] = blob
		fields[fieldInitialized] = boolField(false)
		fields[fieldGameOver] = boolField(false)
		fields[fieldGameWon] = boolField(false)
	case domain.ModePvp:
		fields[fieldHostID] = room.HostID
		fields[fieldWinnerID] = ""
		fields[fieldStarted] = boolField(false)
		fields[fieldTotalSafe] = "0"
		fields[fieldSeed] = "0"
		fields[fieldSymmetric] = boolField(room.Symmetric)
		for i := 0; i < 2; i++ {
			blob, err := domain.MarshalBoard(domain.NewEmptyBoard(room.NumRows, room.NumCols))
			if err != nil {
				return err
			}
			fields[idxField(fieldBoard, i)] = blob
			fields[idxField(fieldInitialized, i)] = boolField(false)
			fields[idxField(fieldGameOver, i)] = boolField(false)
			fields[idxField(fieldGameWon, i)] = boolField(false)
			fields[idxField("progress", i)] = "0"
		}
	default:
		return fmt.Errorf("unknown mode %q", room.Mode)
	}

	if err := r.store.HashSet(ctx, roomKey(room.Code), fields); err != nil {
		return err
	}
	return r.store.Expire(ctx, roomKey(room.Code), domain.RoomTTL)
}

// читает и декодирует комнату; ErrRoomNotFound если записи нет
func (r *RoomRepository) Get(ctx context.Context, code string) (*domain.Room, error) {
	fields, err := r.store.HashGetAll(ctx, roomKey(code))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrRoomNotFound
	}

	room := &domain.Room{
		Code: code,
		Mode: domain.Mode(fields[fieldMode]),
	}
	room.NumRows, _ = strconv.Atoi(fields[fieldNumRows])
	room.NumCols, _ = strconv.Atoi(fields[fieldNumCols])
	room.NumMines, _ = strconv.Atoi(fields[fieldNumMines])

	if raw := fields[fieldPlayers]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.Players); err != nil {
			return nil, fmt.Errorf("room %s: players list: %w", code, err)
		}
	}

	switch room.Mode {
	case domain.ModeCoop:
		room.Initialized = fields[fieldInitialized] == "true"
		room.GameOver = fields[fieldGameOver] == "true"
		room.GameWon = fields[fieldGameWon] == "true"
		if blob := fields[fieldBoard]; blob != "" {
			board, err := domain.UnmarshalBoard(blob)
			if err != nil {
				return nil, fmt.Errorf("room %s: %w", code, err)
			}
			room.Board = board
		}
	case domain.ModePvp:
		room.HostID = fields[fieldHostID]
		room.WinnerID = fields[fieldWinnerID]
		room.Started = fields[fieldStarted] == "true"
		room.TotalSafeCells, _ = strconv.Atoi(fields[fieldTotalSafe])
		room.Seed, _ = strconv.ParseInt(fields[fieldSeed], 10, 64)
		room.Symmetric = fields[fieldSymmetric] == "true"
		for i := 0; i < 2; i++ {
			pb := &room.PvpBoards[i]
			pb.Initialized = fields[idxField(fieldInitialized, i)] == "true"
			pb.GameOver = fields[idxField(fieldGameOver, i)] == "true"
			pb.GameWon = fields[idxField(fieldGameWon, i)] == "true"
			pb.Progress, _ = strconv.Atoi(fields[idxField("progress", i)])
			if blob := fields[idxField(fieldBoard, i)]; blob != "" {
				board, err := domain.UnmarshalBoard(blob)
				if err != nil {
					return nil, fmt.Errorf("room %s: board %d: %w", code, i, err)
				}
				pb.Board = board
			}
		}
	default:
		return nil, fmt.Errorf("room %s: unknown mode %q", code, fields[fieldMode])
	}

	return room, nil
}

func (r *RoomRepository) Delete(ctx context.Context, code string) error {
	return r.store.Delete(ctx, roomKey(code))
}

func (r *RoomRepository) SetMembers(ctx context.Context, code string, members []string) error {
	raw, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return r.store.HashSet(ctx, roomKey(code), map[string]string{fieldPlayers: string(raw)})
}

// --- coop ---

func (r *RoomRepository) SaveBoard(ctx context.Context, code string, board domain.Board) error {
	blob, err := domain.MarshalBoard(board)
	if err != nil {
		return err
	}
	return r.store.HashSet(ctx, roomKey(code), map[string]string{fieldBoard: blob})
}

// записывает сгенерированную доску и поднимает флаг initialized одним вызовом
func (r *RoomRepository) MarkInitialized(ctx context.Context, code string, board domain.Board) error {
	blob, err := domain.MarshalBoard(board)
	if err != nil {
		return err
	}
	return r.store.HashSet(ctx, roomKey(code), map[string]string{
		fieldBoard:       blob,
		fieldInitialized: boolField(true),
	})
}

func (r *RoomRepository) IsInitialized(ctx context.Context, code string) (bool, error) {
	v, err := r.store.HashGet(ctx, roomKey(code), fieldInitialized)
	return v == "true", err
}

func (r *RoomRepository) SetGameOver(ctx context.Context, code string) error {
	return r.store.HashSet(ctx, roomKey(code), map[string]string{fieldGameOver: boolField(true)})
}

func (r *RoomRepository) SetGameWon(ctx context.Context, code string) error {
	return r.store.HashSet(ctx, roomKey(code), map[string]string{fieldGameWon: boolField(true)})
}

// перечитывает персистентный флаг победы непосредственно перед установкой -
// защита от двойного won-броадкаста при почти одновременных открытиях
func (r *RoomRepository) IsGameWon(ctx context.Context, code string) (bool, error) {
	v, err := r.store.HashGet(ctx, roomKey(code), fieldGameWon)
	return v == "true", err
}

// возвращает доску в неинициализированное состояние, сбрасывая терминальные флаги
func (r *RoomRepository) ResetCoop(ctx context.Context, code string, board domain.Board) error {
	blob, err := domain.MarshalBoard(board)
	if err != nil {
		return err
	}
	return r.store.HashSet(ctx, roomKey(code), map[string]string{
		fieldBoard:       blob,
		fieldInitialized: boolField(false),
		fieldGameOver:    boolField(false),
		fieldGameWon:     boolField(false),
	})
}

// --- pvp ---

func (r *RoomRepository) SavePlayerBoard(ctx context.Context, code string, idx int, board domain.Board) error {
	blob, err := domain.MarshalBoard(board)
	if err != nil {
		return err
	}
	return r.store.HashSet(ctx, roomKey(code), map[string]string{idxField(fieldBoard, idx): blob})
}

func (r *RoomRepository) MarkPlayerInitialized(ctx context.Context, code string, idx int, board domain.Board) error {
	blob, err := domain.MarshalBoard(board)
	if err != nil {
		return err
	}
	return r.store.HashSet(ctx, roomKey(code), map[string]string{
		idxField(fieldBoard, idx):       blob,
		idxField(fieldInitialized, idx): boolField(true),
	})
}

func (r *RoomRepository) IsPlayerInitialized(ctx context.Context, code string, idx int) (bool, error) {
	v, err := r.store.HashGet(ctx, roomKey(code), idxField(fieldInitialized, idx))
	return v == "true", err
}

func (r *RoomRepository) SetPlayerGameOver(ctx context.Context, code string, idx int) error {
	return r.store.HashSet(ctx, roomKey(code), map[string]string{idxField(fieldGameOver, idx): boolField(true)})
}

func (r *RoomRepository) SetPlayerWon(ctx context.Context, code string, idx int) error {
	return r.store.HashSet(ctx, roomKey(code), map[string]string{idxField(fieldGameWon, idx): boolField(true)})
}

func (r *RoomRepository) SetProgress(ctx context.Context, code string, idx, progress int) error {
	return r.store.HashSet(ctx, roomKey(code), map[string]string{idxField("progress", idx): strconv.Itoa(progress)})
}

func (r *RoomRepository) Winner(ctx context.Context, code string) (string, error) {
	return r.store.HashGet(ctx, roomKey(code), fieldWinnerID)
}

func (r *RoomRepository) SetWinner(ctx context.Context, code, winnerID string) error {
	return r.store.HashSet(ctx, roomKey(code), map[string]string{fieldWinnerID: winnerID})
}

func (r *RoomRepository) SetHost(ctx context.Context, code, hostID string) error {
	return r.store.HashSet(ctx, roomKey(code), map[string]string{fieldHostID: hostID})
}

// переводит pvp комнату в запущенное состояние: пустые доски, нулевой
// прогресс, общий сид для симметричного варианта
func (r *RoomRepository) StartPvp(ctx context.Context, room *domain.Room, totalSafe int, seed int64) error {
	fields := map[string]string{
		fieldStarted:   boolField(true),
		fieldTotalSafe: strconv.Itoa(totalSafe),
		fieldSeed:      strconv.FormatInt(seed, 10),
		fieldWinnerID:  "",
	}
	for i := 0; i < 2; i++ {
		blob, err := domain.MarshalBoard(domain.NewEmptyBoard(room.NumRows, room.NumCols))
		if err != nil {
			return err
		}
		fields[idxField(fieldBoard, i)] = blob
		fields[idxField(fieldInitialized, i)] = boolField(false)
		fields[idxField(fieldGameOver, i)] = boolField(false)
		fields[idxField(fieldGameWon, i)] = boolField(false)
		fields[idxField("progress", i)] = "0"
	}
	return r.store.HashSet(ctx, roomKey(room.Code), fields)
}

// сбрасывает одну pvp доску, не трогая оппонента
func (r *RoomRepository) ResetPlayerBoard(ctx context.Context, code string, idx, rows, cols int) error {
	blob, err := domain.MarshalBoard(domain.NewEmptyBoard(rows, cols))
	if err != nil {
		return err
	}
	return r.store.HashSet(ctx, roomKey(code), map[string]string{
		idxField(fieldBoard, idx):       blob,
		idxField(fieldInitialized, idx): boolField(false),
		idxField(fieldGameOver, idx):    boolField(false),
		idxField(fieldGameWon, idx):     boolField(false),
		idxField("progress", idx):       "0",
	})
}
