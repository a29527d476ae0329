package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
	"github.com/iliyamo/dorm-occupancy/internal/model"
)

// RoomRepo provides access to the izba table.
type RoomRepo struct {
	db  *sql.DB
	log *zap.Logger
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.  A nil logger
// is replaced by a no-op logger.
func NewRoomRepo(db *sql.DB, log *zap.Logger) *RoomRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomRepo{db: db, log: log}
}

// List returns every room ordered by room number.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM izba ORDER BY cislo`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	out := []model.Room{}
	for rows.Next() {
		var rm model.Room
		if err := rows.Scan(&rm.ID, &rm.Number, &rm.Capacity, &rm.Occupants); err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts an empty room and returns its id.  A duplicate room number
// yields ErrConflict.
func (r *RoomRepo) Create(ctx context.Context, in model.RoomInput) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO izba (cislo, kapacita, pocet_ubytovanych) VALUES (?, ?, 0)`,
		in.Number, in.Capacity,
	)
	if err != nil {
		return 0, translate(err, fmt.Sprintf("room number %d already exists", in.Number))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.log.Debug("room created", zap.Int64("id_izba", id), zap.Int("cislo", in.Number))
	return uint64(id), nil
}

// Delete removes an empty room.  A room that still has residents yields
// ErrConflict and a missing room ErrNotFound.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rm, err := lockRoom(ctx, tx, id)
	if err != nil {
		return err
	}
	if rm.Occupants > 0 {
		return apperrors.Conflict(fmt.Sprintf("room %d still has %d residents", rm.Number, rm.Occupants))
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM izba WHERE id_izba = ?`, id); err != nil {
		return translate(err, fmt.Sprintf("room %d still has residents", rm.Number))
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	r.log.Debug("room deleted", zap.Uint64("id_izba", id))
	return nil
}
