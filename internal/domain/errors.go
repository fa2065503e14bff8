package domain

import "errors"

// Ошибки жизненного цикла комнат - о них сообщается клиенту явным событием.
// Внутриигровые операции с невалидным вводом молча отбрасываются и ошибок не возвращают.
var (
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("pvp room is full")
	ErrInvalidParams = errors.New("invalid room parameters")
	ErrLockTimeout   = errors.New("lock wait exhausted")
)
