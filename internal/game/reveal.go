package game

import "minesweeper_coop/internal/domain"

// RevealResult - минимальный набор изменений одной операции над доской
type RevealResult struct {
	Updated    []domain.CellUpdate // только что открытые клетки
	SafeOpened int                 // сколько из них без мин
	MineHit    bool
}

type coord struct {
	row, col int
}

// Reveal открывает клетку с каскадом нулевых зон. Итеративный обход с явным
// стеком - глубина рекурсии на больших досках непредсказуема.
// Открытые и помеченные флагом клетки пропускаются; попадание на мину
// добавляет ее в результат и прекращает заливку
func Reveal(b domain.Board, row, col int) RevealResult {
	var res RevealResult
	if !b.InBounds(row, col) {
		return res
	}

	stack := []coord{{row, col}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cell := &b[cur.row][cur.col]
		if cell.IsOpen || cell.IsFlagged {
			continue
		}
		cell.IsOpen = true
		res.Updated = append(res.Updated, domain.CellUpdate{Row: cur.row, Col: cur.col, Cell: *cell})

		if cell.IsMine {
			res.MineHit = true
			return res
		}
		res.SafeOpened++

		if cell.NearbyMines == 0 {
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nr, nc := cur.row+dr, cur.col+dc
					if b.InBounds(nr, nc) && !b[nr][nc].IsOpen {
						stack = append(stack, coord{nr, nc})
					}
				}
			}
		}
	}
	return res
}

// Chord открывает всех незафлаженных закрытых соседей открытой клетки,
// если число флагов вокруг совпадает с ее NearbyMines; иначе ничего не делает
func Chord(b domain.Board, row, col int) RevealResult {
	var res RevealResult
	if !b.InBounds(row, col) || !b[row][col].IsOpen {
		return res
	}

	flagged := 0
	var closed []coord
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := row+dr, col+dc
			if !b.InBounds(nr, nc) {
				continue
			}
			if b[nr][nc].IsFlagged {
				flagged++
			} else if !b[nr][nc].IsOpen {
				closed = append(closed, coord{nr, nc})
			}
		}
	}

	if flagged != b[row][col].NearbyMines {
		return res
	}

	for _, n := range closed {
		sub := Reveal(b, n.row, n.col)
		res.Updated = append(res.Updated, sub.Updated...)
		res.SafeOpened += sub.SafeOpened
		if sub.MineHit {
			res.MineHit = true
		}
	}
	return res
}

// ToggleFlag переключает флаг на закрытой клетке; открытые не трогаем
func ToggleFlag(b domain.Board, row, col int) (domain.CellUpdate, bool) {
	if !b.InBounds(row, col) || b[row][col].IsOpen {
		return domain.CellUpdate{}, false
	}
	b[row][col].IsFlagged = !b[row][col].IsFlagged
	return domain.CellUpdate{Row: row, Col: col, Cell: b[row][col]}, true
}
