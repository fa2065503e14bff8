package service

import (
	"context"
	"errors"
	"testing"

	"minesweeper_coop/internal/domain"
)

func coopParams(room, creator string) CreateParams {
	return CreateParams{
		Room: room, Rows: 8, Cols: 8, Mines: 10,
		Mode: domain.ModeCoop, CreatorID: creator, CreatorName: "alice",
	}
}

func pvpParams(room, creator string) CreateParams {
	return CreateParams{
		Room: room, Rows: 8, Cols: 8, Mines: 10,
		Mode: domain.ModePvp, CreatorID: creator, CreatorName: "alice",
	}
}

func TestCreate_CoopRoomWithCreator(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.registry.Create(ctx, coopParams("r1", "p1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(room.Players) != 1 || room.Players[0] != "p1" {
		t.Fatalf("создатель должен сразу числиться в комнате: %v", room.Players)
	}
	if !f.events.subscribed("p1", "r1") {
		t.Fatalf("создатель должен быть подписан на комнату")
	}
	if f.events.count(EvtPlayerStatsUpdate) == 0 {
		t.Fatalf("вход должен рассылать статистику")
	}
}

func TestCreate_DuplicateCode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.registry.Create(ctx, coopParams("r1", "p1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := f.registry.Create(ctx, coopParams("r1", "p2"))
	if !errors.Is(err, domain.ErrRoomExists) {
		t.Fatalf("повторный код должен давать ErrRoomExists, получено %v", err)
	}
}

func TestCreate_InvalidDimensionsNotPersisted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	p := coopParams("r1", "p1")
	p.Mines = 40 // >= rows*cols/2
	if _, err := f.registry.Create(ctx, p); !errors.Is(err, domain.ErrInvalidParams) {
		t.Fatalf("перебор мин должен давать ErrInvalidParams, получено %v", err)
	}

	exists, err := f.rooms.Exists(ctx, "r1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("отклоненная комната не должна сохраняться")
	}
}

func TestCreate_DimensionBounds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct{ rows, cols, mines int }{
		{7, 8, 5},   // rows ниже минимума
		{33, 8, 5},  // rows выше максимума
		{8, 7, 5},   // cols ниже минимума
		{8, 17, 5},  // cols выше максимума
		{8, 8, 0},   // без мин
		{8, 8, -1},  // отрицательные мины
		{8, 8, 32},  // ровно половина клеток
	}
	for i, c := range cases {
		p := coopParams("rX", "p1")
		p.Rows, p.Cols, p.Mines = c.rows, c.cols, c.mines
		if _, err := f.registry.Create(ctx, p); !errors.Is(err, domain.ErrInvalidParams) {
			t.Fatalf("случай %d (%d x %d, %d мин): ожидался ErrInvalidParams, получено %v", i, c.rows, c.cols, c.mines, err)
		}
	}
}

func TestJoin_UnknownRoom(t *testing.T) {
	f := newFixture()
	_, err := f.registry.Join(context.Background(), "nope", "p1", "bob")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("вход в несуществующую комнату должен давать ErrRoomNotFound, получено %v", err)
	}
}

func TestJoin_CoopManyPlayers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.registry.Create(ctx, coopParams("r1", "p1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, id := range []string{"p2", "p3", "p4"} {
		if _, err := f.registry.Join(ctx, "r1", id, "name-"+id); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	room, err := f.rooms.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(room.Players) != 4 {
		t.Fatalf("coop комната не ограничена двумя игроками, участников %d", len(room.Players))
	}
}

func TestJoin_PvpFullAndReconnect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.registry.Create(ctx, pvpParams("r1", "p1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.registry.Join(ctx, "r1", "p2", "bob"); err != nil {
		t.Fatalf("join second: %v", err)
	}

	// третий не проходит
	if _, err := f.registry.Join(ctx, "r1", "p3", "eve"); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("третий pvp игрок должен получать ErrRoomFull, получено %v", err)
	}

	// реконнект участника проходит всегда
	if _, err := f.registry.Join(ctx, "r1", "p2", "bob"); err != nil {
		t.Fatalf("реконнект участника не должен падать: %v", err)
	}

	room, _ := f.rooms.Get(ctx, "r1")
	if len(room.Players) != 2 {
		t.Fatalf("реконнект не должен дублировать членство: %v", room.Players)
	}
}

func TestJoin_PvpRoomReadyBothSides(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.registry.Create(ctx, pvpParams("r1", "p1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.registry.Join(ctx, "r1", "p2", "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if f.events.countFor("p1", EvtPvpRoomReady) != 1 || f.events.countFor("p2", EvtPvpRoomReady) != 1 {
		t.Fatalf("обе стороны должны получить pvpRoomReady ровно один раз")
	}

	e := f.events.last(EvtPvpRoomReady)
	payload, ok := e.payload.(map[string]any)
	if !ok {
		t.Fatalf("неожиданный payload: %T", e.payload)
	}
	if _, has := payload["opponentName"]; !has {
		t.Fatalf("pvpRoomReady должен нести имя оппонента")
	}
}

func TestJoin_ReconnectKeepsScore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.registry.Create(ctx, coopParams("r1", "p1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.sessions.AddScore(ctx, "p1", 7); err != nil {
		t.Fatalf("add score: %v", err)
	}

	if _, err := f.registry.Join(ctx, "r1", "p1", "alice"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	p, err := f.sessions.Get(ctx, "p1")
	if err != nil || p == nil {
		t.Fatalf("get player: %v", err)
	}
	if p.Score != 7 {
		t.Fatalf("реконнект не должен сбрасывать счет, счет %d", p.Score)
	}
}

func TestValidateMember_EvictsStranger(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.registry.Create(ctx, coopParams("r1", "p1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, _, ok := f.registry.ValidateMember(ctx, "r1", "stranger"); ok {
		t.Fatalf("чужак не должен проходить проверку членства")
	}
	if f.events.countFor("stranger", EvtRoomInvalid) != 1 {
		t.Fatalf("чужак должен получить roomInvalid")
	}
}

func TestValidateMember_MissingRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, _, ok := f.registry.ValidateMember(ctx, "ghost", "p1"); ok {
		t.Fatalf("несуществующая комната не должна проходить проверку")
	}
	if f.events.countFor("p1", EvtRoomInvalid) != 1 {
		t.Fatalf("игрок должен получить roomInvalid")
	}
}

func TestLeave_LastPlayerDeletesRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.registry.Create(ctx, coopParams("r1", "p1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.sessions.Leave(ctx, room, "p1"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	exists, err := f.rooms.Exists(ctx, "r1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("опустевшая комната должна удаляться сразу")
	}
}

func TestLeave_NotifiesRemaining(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.registry.Create(ctx, coopParams("r1", "p1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.registry.Join(ctx, "r1", "p2", "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	room, _ = f.rooms.Get(ctx, "r1")

	f.events.reset()
	if err := f.sessions.Leave(ctx, room, "p2"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	e := f.events.last(EvtPlayerLeft)
	if e == nil {
		t.Fatalf("оставшиеся должны получить playerLeft")
	}
	payload := e.payload.(map[string]any)
	if payload["playerId"] != "p2" || payload["name"] != "bob" {
		t.Fatalf("playerLeft должен нести id и имя ушедшего: %v", payload)
	}
	if f.events.count(EvtPlayerStatsUpdate) == 0 {
		t.Fatalf("после ухода должна рассылаться статистика")
	}
}
