package domain

type Player struct {
	ID    string // id подключения, живет пока живо соединение
	Name  string
	Score int
	Room  string

	// только pvp
	PvpPlayerIndex int // 0 или 1; -1 вне pvp игры
	OpponentName   string
}

// агрегированная строка таблицы очков комнаты
type PlayerStats struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
