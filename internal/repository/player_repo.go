package repository

import (
	"context"
	"strconv"

	"minesweeper_coop/internal/domain"
)

const (
	fieldName         = "name"
	fieldScore        = "score"
	fieldRoom         = "room"
	fieldPvpIndex     = "pvpPlayerIndex"
	fieldOpponentName = "opponentName"
)

type PlayerRepository struct {
	store Store
}

func NewPlayerRepository(store Store) *PlayerRepository {
	return &PlayerRepository{store: store}
}

func playerKey(id string) string {
	return "player:" + id
}

// создает или обновляет запись игрока и продлевает TTL
func (r *PlayerRepository) Upsert(ctx context.Context, p *domain.Player) error {
	fields := map[string]string{
		fieldName:         p.Name,
		fieldScore:        strconv.Itoa(p.Score),
		fieldRoom:         p.Room,
		fieldPvpIndex:     strconv.Itoa(p.PvpPlayerIndex),
		fieldOpponentName: p.OpponentName,
	}
	if err := r.store.HashSet(ctx, playerKey(p.ID), fields); err != nil {
		return err
	}
	return r.store.Expire(ctx, playerKey(p.ID), domain.PlayerTTL)
}

// возвращает nil, nil если записи нет
func (r *PlayerRepository) Get(ctx context.Context, id string) (*domain.Player, error) {
	fields, err := r.store.HashGetAll(ctx, playerKey(id))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	p := &domain.Player{
		ID:           id,
		Name:         fields[fieldName],
		Room:         fields[fieldRoom],
		OpponentName: fields[fieldOpponentName],
	}
	p.Score, _ = strconv.Atoi(fields[fieldScore])
	if raw, ok := fields[fieldPvpIndex]; ok {
		p.PvpPlayerIndex, _ = strconv.Atoi(raw)
	} else {
		p.PvpPlayerIndex = -1
	}
	return p, nil
}

func (r *PlayerRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, playerKey(id))
}

// атомарно добавляет очки; одно поле хэша - одна операция хранилища
func (r *PlayerRepository) AddScore(ctx context.Context, id string, delta int) (int, error) {
	n, err := r.store.HashIncrBy(ctx, playerKey(id), fieldScore, int64(delta))
	return int(n), err
}

func (r *PlayerRepository) ResetScore(ctx context.Context, id string) error {
	return r.store.HashSet(ctx, playerKey(id), map[string]string{fieldScore: "0"})
}

// записывает pvp атрибуты, выдаваемые при старте игры
func (r *PlayerRepository) SetPvpInfo(ctx context.Context, id string, index int, opponentName string) error {
	return r.store.HashSet(ctx, playerKey(id), map[string]string{
		fieldPvpIndex:     strconv.Itoa(index),
		fieldOpponentName: opponentName,
	})
}
