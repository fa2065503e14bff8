package domain

import "time"

type Mode string

const (
	ModeCoop Mode = "coop"
	ModePvp  Mode = "pvp"
)

// Ограничения на параметры комнаты
const (
	MinRows = 8
	MaxRows = 32
	MinCols = 8
	MaxCols = 16
)

// TTL записей и блокировок в хранилище
const (
	RoomTTL   = 24 * time.Hour
	PlayerTTL = 24 * time.Hour
	LockTTL   = 10 * time.Second
)

// резерв клеток без мин: зона 3x3 вокруг первого клика
const SafeZoneReserve = 9

// Пресеты сложности (клиент присылает их же через createRoom)
var DifficultyPresets = []struct {
	Title string
	Rows  int
	Cols  int
	Mines int
}{
	{Title: "Easy", Rows: 9, Cols: 9, Mines: 10},
	{Title: "Medium", Rows: 16, Cols: 16, Mines: 40},
	{Title: "Hard", Rows: 20, Cols: 16, Mines: 60},
}

// состояние одной из двух досок pvp комнаты
type PvpBoardState struct {
	Board       Board
	Initialized bool
	GameOver    bool
	GameWon     bool
	Progress    int // лично открытые безопасные клетки
}

type Room struct {
	Code     string
	Mode     Mode
	NumRows  int
	NumCols  int
	NumMines int

	Players []string // id подключений в порядке входа

	// coop: одна общая доска
	Board       Board
	Initialized bool
	GameOver    bool
	GameWon     bool

	// pvp
	HostID         string
	WinnerID       string // пусто пока не заявлена победа; ставится ровно один раз за игру
	Started        bool
	TotalSafeCells int
	Seed           int64
	Symmetric      bool // одинаковые доски через сидированный генератор
	PvpBoards      [2]PvpBoardState
}

// проверяет параметры создаваемой комнаты
func ValidateDimensions(rows, cols, mines int) error {
	if rows < MinRows || rows > MaxRows {
		return ErrInvalidParams
	}
	if cols < MinCols || cols > MaxCols {
		return ErrInvalidParams
	}
	if mines < 1 || mines >= rows*cols/2 {
		return ErrInvalidParams
	}
	return nil
}

func (r *Room) HasPlayer(id string) bool {
	for _, p := range r.Players {
		if p == id {
			return true
		}
	}
	return false
}

// индекс pvp доски игрока: хост всегда 0, оппонент 1
func (r *Room) PlayerIndex(id string) (int, bool) {
	if id == r.HostID {
		return 0, true
	}
	for _, p := range r.Players {
		if p == id && p != r.HostID {
			return 1, true
		}
	}
	return 0, false
}

// id оппонента в pvp комнате, пусто если его нет
func (r *Room) Opponent(id string) string {
	for _, p := range r.Players {
		if p != id {
			return p
		}
	}
	return ""
}
