package service

// EventChannel - исходящая сторона канала событий. Реализуется ws.Hub;
// сервисы получают ее через конструктор и не знают про транспорт
type EventChannel interface {
	// отправка одному подключению
	Emit(connID, event string, payload any)
	// отправка всем подписчикам комнаты
	Broadcast(room, event string, payload any)
	// всем кроме одного (hover, уведомления об оппоненте)
	BroadcastExcept(room, exceptID, event string, payload any)
	// управление подпиской подключения на комнату
	Subscribe(connID, room string)
	Unsubscribe(connID, room string)
}

// Имена исходящих событий
const (
	EvtCreateRoomError   = "createRoomError"
	EvtJoinRoomError     = "joinRoomError"
	EvtPvpRoomFull       = "pvpRoomFull"
	EvtJoinRoomSuccess   = "joinRoomSuccess"
	EvtPvpRoomReady      = "pvpRoomReady"
	EvtBoardUpdate       = "boardUpdate"
	EvtUpdateCells       = "updateCells"
	EvtGameOver          = "gameOver"
	EvtGameWon           = "gameWon"
	EvtResetEveryone     = "resetEveryone"
	EvtPlayerStatsUpdate = "playerStatsUpdate"
	EvtPlayerLeft        = "playerLeft"
	EvtPlayerHoverUpdate = "playerHoverUpdate"
	EvtReceiveConfetti   = "receiveConfetti"
	EvtRoomInvalid       = "roomInvalid"

	EvtPvpGameStarted      = "pvpGameStarted"
	EvtPvpBoardUpdate      = "pvpBoardUpdate"
	EvtPvpProgressUpdate   = "pvpProgressUpdate"
	EvtPvpOpponentGameOver = "pvpOpponentGameOver"
	EvtPvpGameWon          = "pvpGameWon"
	EvtPvpOpponentLeft     = "pvpOpponentLeft"
	EvtPvpHostChanged      = "pvpHostChanged"
	EvtPvpRematchStarted   = "pvpRematchStarted"
)
