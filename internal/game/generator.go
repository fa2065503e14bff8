package game

import (
	"math/rand"

	"minesweeper_coop/internal/domain"
)

// ограничивает число мин так, чтобы оставался резерв под зону первого клика
// и расстановка гарантированно завершалась
func CapMines(rows, cols, mines int) int {
	max := rows*cols - domain.SafeZoneReserve
	if mines > max {
		return max
	}
	return mines
}

// Generate создает доску rows x cols и расставляет мины равномерно случайно,
// исключая окрестность Чебышёва-1 вокруг (excludeRow, excludeCol) -
// клетка первого клика и ее соседи всегда безопасны
func Generate(rows, cols, mines, excludeRow, excludeCol int) domain.Board {
	b := domain.NewEmptyBoard(rows, cols)
	mines = CapMines(rows, cols, mines)

	placed := 0
	for placed < mines {
		r := rand.Intn(rows)
		c := rand.Intn(cols)
		if b[r][c].IsMine {
			continue
		}
		if chebyshev(r, excludeRow) <= 1 && chebyshev(c, excludeCol) <= 1 {
			continue
		}
		b[r][c].IsMine = true
		placed++
	}

	fillNearbyCounts(b)
	return b
}

// GenerateSeeded - детерминированный вариант: LCG ведет тасование Фишера-Йейтса
// всех координат, мины занимают первые позиции перестановки. Два вызова с
// одинаковыми аргументами дают побитово идентичные доски; зона первого клика
// не исключается - только резервируется бюджетом клеток
func GenerateSeeded(rows, cols, mines int, seed int64) domain.Board {
	b := domain.NewEmptyBoard(rows, cols)
	mines = CapMines(rows, cols, mines)

	total := rows * cols
	perm := make([]int, total)
	for i := range perm {
		perm[i] = i
	}

	lcg := newLCG(seed)
	for i := total - 1; i > 0; i-- {
		j := lcg.intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}

	for i := 0; i < mines; i++ {
		pos := perm[i]
		b[pos/cols][pos%cols].IsMine = true
	}

	fillNearbyCounts(b)
	return b
}

// считает NearbyMines для каждой не-minной клетки по 8 соседям
func fillNearbyCounts(b domain.Board) {
	rows, cols := b.Rows(), b.Cols()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if b[r][c].IsMine {
				continue
			}
			count := 0
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					if dr == 0 && dc == 0 {
						continue
					}
					nr, nc := r+dr, c+dc
					if nr >= 0 && nr < rows && nc >= 0 && nc < cols && b[nr][nc].IsMine {
						count++
					}
				}
			}
			b[r][c].NearbyMines = count
		}
	}
}

func chebyshev(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// линейный конгруэнтный генератор (константы Кнута MMIX) - воспроизводим
// независимо от версии math/rand
type lcg struct {
	state uint64
}

func newLCG(seed int64) *lcg {
	return &lcg{state: uint64(seed)}
}

func (g *lcg) next() uint64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return g.state
}

func (g *lcg) intn(n int) int {
	return int((g.next() >> 33) % uint64(n))
}
