package repository

import (
	"context"
	"strconv"
	"time"

	"minesweeper_coop/internal/domain"
)

// параметры ожидания чужой инициализации: ограниченное число опросов
// с фиксированным коротким интервалом
const (
	defaultPollRetries  = 20
	defaultPollInterval = 50 * time.Millisecond
)

// Guard - две именованные блокировки поверх атомарного set-if-absent
// хранилища: init lock гарантирует единственную генерацию доски,
// winner lock - единственное объявление победителя
type Guard struct {
	store        Store
	pollRetries  int
	pollInterval time.Duration
}

func NewGuard(store Store) *Guard {
	return &Guard{
		store:        store,
		pollRetries:  defaultPollRetries,
		pollInterval: defaultPollInterval,
	}
}

// NewGuardWithPolling позволяет ужать интервалы в тестах
func NewGuardWithPolling(store Store, retries int, interval time.Duration) *Guard {
	return &Guard{store: store, pollRetries: retries, pollInterval: interval}
}

// idx < 0 - блокировка общей coop доски, иначе pvp доски конкретного игрока
func initLockKey(room string, idx int) string {
	if idx < 0 {
		return "init_lock:" + room
	}
	return "init_lock:" + room + ":" + strconv.Itoa(idx)
}

func winnerLockKey(room string) string {
	return "winner_lock:" + room
}

// пытается захватить право сгенерировать доску; false - генерирует кто-то другой
func (g *Guard) AcquireInitLock(ctx context.Context, room string, idx int) (bool, error) {
	return g.store.SetIfAbsent(ctx, initLockKey(room, idx), "1", domain.LockTTL)
}

func (g *Guard) ReleaseInitLock(ctx context.Context, room string, idx int) error {
	return g.store.Delete(ctx, initLockKey(room, idx))
}

// WaitUntil опрашивает условие до его истинности. Исчерпание попыток
// возвращает ErrLockTimeout - вызывающий обязан отбросить операцию,
// а не продолжать без доски
func (g *Guard) WaitUntil(ctx context.Context, cond func(context.Context) (bool, error)) error {
	for i := 0; i < g.pollRetries; i++ {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.pollInterval):
		}
	}
	return domain.ErrLockTimeout
}

// захватывает право перевести комнату в состояние победы; держатель обязан
// перепроверить winnerId перед записью и отпустить блокировку сразу после
func (g *Guard) AcquireWinnerLock(ctx context.Context, room string) (bool, error) {
	return g.store.SetIfAbsent(ctx, winnerLockKey(room), "1", domain.LockTTL)
}

func (g *Guard) ReleaseWinnerLock(ctx context.Context, room string) error {
	return g.store.Delete(ctx, winnerLockKey(room))
}
