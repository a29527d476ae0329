package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
	"github.com/iliyamo/dorm-occupancy/internal/model"
	"github.com/iliyamo/dorm-occupancy/internal/occupancy"
)

const roomColumns = `id_izba, cislo, kapacita, pocet_ubytovanych`

// lockRoom reads a room row with an exclusive lock held until the
// transaction ends.  Concurrent capacity checks on the same room therefore
// run one after another.
func lockRoom(ctx context.Context, tx *sql.Tx, id uint64) (model.Room, error) {
	var rm model.Room
	err := tx.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM izba WHERE id_izba = ? FOR UPDATE`, id,
	).Scan(&rm.ID, &rm.Number, &rm.Capacity, &rm.Occupants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Room{}, apperrors.NotFound(fmt.Sprintf("room %d not found", id))
		}
		return model.Room{}, fmt.Errorf("lock room %d: %w", id, err)
	}
	return rm, nil
}

// lockRooms locks every distinct id in ascending order, so two transfers in
// opposite directions cannot deadlock.
func lockRooms(ctx context.Context, tx *sql.Tx, ids ...uint64) (map[uint64]model.Room, error) {
	uniq := make([]uint64, 0, len(ids))
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	out := make(map[uint64]model.Room, len(uniq))
	for _, id := range uniq {
		rm, err := lockRoom(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = rm
	}
	return out, nil
}

// writeCounts stores next for every room in rooms whose count changed and
// returns the resulting room states ordered by id.
func writeCounts(ctx context.Context, tx *sql.Tx, rooms map[uint64]model.Room, next occupancy.Counts) ([]model.Room, error) {
	out := make([]model.Room, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	for i, rm := range out {
		n, ok := next[rm.ID]
		if !ok || n == rm.Occupants {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE izba SET pocet_ubytovanych = ? WHERE id_izba = ?`, n, rm.ID,
		); err != nil {
			return nil, fmt.Errorf("update occupancy of room %d: %w", rm.ID, err)
		}
		out[i].Occupants = n
	}
	return out, nil
}

func countsOf(rooms map[uint64]model.Room) occupancy.Counts {
	c := make(occupancy.Counts, len(rooms))
	for id, rm := range rooms {
		c[id] = rm.Occupants
	}
	return c
}
