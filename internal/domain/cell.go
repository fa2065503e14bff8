package domain

import (
	"encoding/json"
	"fmt"
)

// версия схемы сериализованной доски; повышается при изменении формата
const BoardSchemaVersion = 1

type Cell struct {
	IsMine      bool `json:"isMine"`
	IsOpen      bool `json:"isOpen"`
	IsFlagged   bool `json:"isFlagged"`
	NearbyMines int  `json:"nearbyMines"` // имеет смысл только когда !IsMine
}

// Board - прямоугольная сетка ячеек rows x cols
type Board [][]Cell

// CellUpdate - инкрементальное обновление одной ячейки для клиентов
type CellUpdate struct {
	Row int `json:"row"`
	Col int `json:"col"`
	Cell
}

// создает пустую закрытую доску без мин
func NewEmptyBoard(rows, cols int) Board {
	b := make(Board, rows)
	for r := range b {
		b[r] = make([]Cell, cols)
	}
	return b
}

func (b Board) Rows() int {
	return len(b)
}

func (b Board) Cols() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}

func (b Board) InBounds(row, col int) bool {
	return row >= 0 && row < b.Rows() && col >= 0 && col < b.Cols()
}

// boardBlob - формат хранения доски одним значением поля хэша
type boardBlob struct {
	Version int      `json:"v"`
	Cells   [][]Cell `json:"cells"`
}

// сериализует доску в версионированный JSON блоб
func MarshalBoard(b Board) (string, error) {
	data, err := json.Marshal(boardBlob{Version: BoardSchemaVersion, Cells: b})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// десериализует доску и проверяет форму вместо слепого доверия хранилищу
func UnmarshalBoard(s string) (Board, error) {
	if s == "" {
		return nil, fmt.Errorf("board blob is empty")
	}
	var blob boardBlob
	if err := json.Unmarshal([]byte(s), &blob); err != nil {
		return nil, fmt.Errorf("board blob: %w", err)
	}
	if blob.Version != BoardSchemaVersion {
		return nil, fmt.Errorf("board blob: unsupported schema version %d", blob.Version)
	}
	b := Board(blob.Cells)
	if len(b) == 0 {
		return nil, fmt.Errorf("board blob: no rows")
	}
	cols := len(b[0])
	if cols == 0 {
		return nil, fmt.Errorf("board blob: no cols")
	}
	for r := range b {
		if len(b[r]) != cols {
			return nil, fmt.Errorf("board blob: ragged row %d", r)
		}
		for c := range b[r] {
			if n := b[r][c].NearbyMines; n < 0 || n > 8 {
				return nil, fmt.Errorf("board blob: cell (%d,%d) nearbyMines=%d out of range", r, c, n)
			}
		}
	}
	return b, nil
}
