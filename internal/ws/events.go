package ws

import "context"

// Имена входящих событий
const (
	InCreateRoom   = "createRoom"
	InJoinRoom     = "joinRoom"
	InOpenCell     = "openCell"
	InChordCell    = "chordCell"
	InToggleFlag   = "toggleFlag"
	InResetGame    = "resetGame"
	InStartPvpGame = "startPvpGame"
	InResetMyBoard = "resetMyBoard"
	InPvpRematch   = "pvpRematch"
	InCellHover    = "cellHover"
	InEmitConfetti = "emitConfetti"
	InPlayerLeave  = "playerLeave"
)

// Message - конверт каждого сообщения в обе стороны
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Типизированные схемы входящих payload'ов; проверяются на границе канала
// до вызова какого-либо обработчика

type CreateRoomRequest struct {
	Room      string `json:"room"`
	NumRows   int    `json:"numRows"`
	NumCols   int    `json:"numCols"`
	NumMines  int    `json:"numMines"`
	Name      string `json:"name"`
	Mode      string `json:"mode"`
	Symmetric bool   `json:"symmetric"`
}

type JoinRoomRequest struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

type CellRequest struct {
	Room string `json:"room"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

type RoomRequest struct {
	Room string `json:"room"`
}

// EventHandler - принимающая сторона канала событий; реализуется
// координатором игровых режимов
type EventHandler interface {
	OnCreateRoom(ctx context.Context, connID string, req CreateRoomRequest)
	OnJoinRoom(ctx context.Context, connID string, req JoinRoomRequest)
	OnOpenCell(ctx context.Context, connID string, req CellRequest)
	OnChordCell(ctx context.Context, connID string, req CellRequest)
	OnToggleFlag(ctx context.Context, connID string, req CellRequest)
	OnCellHover(ctx context.Context, connID string, req CellRequest)
	OnResetGame(ctx context.Context, connID string, req RoomRequest)
	OnStartPvpGame(ctx context.Context, connID string, req RoomRequest)
	OnResetMyBoard(ctx context.Context, connID string, req RoomRequest)
	OnPvpRematch(ctx context.Context, connID string, req RoomRequest)
	OnConfetti(ctx context.Context, connID string, req RoomRequest)
	OnLeave(ctx context.Context, connID string)
}
