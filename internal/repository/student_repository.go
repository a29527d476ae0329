package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
	"github.com/iliyamo/dorm-occupancy/internal/model"
	"github.com/iliyamo/dorm-occupancy/internal/occupancy"
)

// StudentRepo provides access to the ziak table.  Inserts, deletes and room
// changes also maintain izba.pocet_ubytovanych inside the same transaction:
// the student row is locked first, then the affected rooms in ascending id
// order, and the new counts come from the occupancy package.
type StudentRepo struct {
	db  *sql.DB
	log *zap.Logger
}

// NewStudentRepo constructs a StudentRepo.  A nil logger is replaced by a
// no-op logger.
func NewStudentRepo(db *sql.DB, log *zap.Logger) *StudentRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &StudentRepo{db: db, log: log}
}

// List returns every student together with the number of the room they
// live in, ordered by id.
func (r *StudentRepo) List(ctx context.Context) ([]model.Student, error) {
	const q = `SELECT z.id_ziak, z.meno, z.priezvisko, z.datum_narodenia, z.email,
	                  z.ulica, z.mesto, z.PSC, z.id_izba, i.cislo
	           FROM ziak z
	           LEFT JOIN izba i ON i.id_izba = z.id_izba
	           ORDER BY z.id_ziak`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	out := []model.Student{}
	for rows.Next() {
		var (
			s      model.Student
			born   time.Time
			number sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &born, &s.Email,
			&s.Street, &s.City, &s.PostalCode, &s.RoomID, &number); err != nil {
			return nil, err
		}
		s.BirthDate = model.NewDate(born)
		if number.Valid {
			n := int(number.Int64)
			s.RoomNumber = &n
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a student into in.RoomID.  The room must exist and have a
// free bed; otherwise ErrNotFound or ErrCapacity is returned and nothing is
// written.
func (r *StudentRepo) Create(ctx context.Context, in model.StudentInput) (res model.MutationResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rooms, err := lockRooms(ctx, tx, in.RoomID)
	if err != nil {
		return res, err
	}
	next, err := occupancy.ApplyInsert(countsOf(rooms), in.RoomID, rooms[in.RoomID].Capacity)
	if err != nil {
		return res, err
	}

	out, err := tx.ExecContext(ctx,
		`INSERT INTO ziak (meno, priezvisko, datum_narodenia, email, ulica, mesto, PSC, id_izba)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.FirstName, in.LastName, in.BirthDate.String(), in.Email,
		in.Street, in.City, in.PostalCode, in.RoomID,
	)
	if err != nil {
		return res, translate(err, fmt.Sprintf("room %d not found", in.RoomID))
	}
	id, err := out.LastInsertId()
	if err != nil {
		return res, err
	}
	if res.Rooms, err = writeCounts(ctx, tx, rooms, next); err != nil {
		return res, err
	}
	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	res.ID = uint64(id)
	r.log.Debug("student created", zap.Uint64("id_ziak", res.ID), zap.Uint64("id_izba", in.RoomID))
	return res, nil
}

// Delete removes a student together with the dependent karta and strava
// rows and frees the bed in their room.
func (r *StudentRepo) Delete(ctx context.Context, id uint64) (res model.MutationResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	roomID, err := lockStudent(ctx, tx, id)
	if err != nil {
		return res, err
	}
	rooms, err := lockRooms(ctx, tx, roomID)
	if err != nil {
		return res, err
	}
	if rooms[roomID].Occupants == 0 {
		r.log.Warn("room occupancy already zero while deleting resident",
			zap.Uint64("id_izba", roomID), zap.Uint64("id_ziak", id))
	}
	next := occupancy.ApplyDelete(countsOf(rooms), roomID)

	for _, q := range []string{
		`DELETE FROM karta WHERE id_ziak = ?`,
		`DELETE FROM strava WHERE id_ziak = ?`,
		`DELETE FROM ziak WHERE id_ziak = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return res, fmt.Errorf("delete student %d: %w", id, err)
		}
	}
	if res.Rooms, err = writeCounts(ctx, tx, rooms, next); err != nil {
		return res, err
	}
	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	r.log.Debug("student deleted", zap.Uint64("id_ziak", id), zap.Uint64("id_izba", roomID))
	return res, nil
}

// UpdateRoom moves a student to roomID.  Moving into the current room is a
// no-op that still returns the room.  A full destination yields ErrCapacity
// and leaves both rooms untouched.
func (r *StudentRepo) UpdateRoom(ctx context.Context, studentID, roomID uint64) (res model.MutationResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	from, err := lockStudent(ctx, tx, studentID)
	if err != nil {
		return res, err
	}
	rooms, next, err := transfer(ctx, tx, from, roomID)
	if err != nil {
		return res, err
	}
	if from != roomID {
		if _, err = tx.ExecContext(ctx,
			`UPDATE ziak SET id_izba = ? WHERE id_ziak = ?`, roomID, studentID,
		); err != nil {
			return res, translate(err, fmt.Sprintf("room %d not found", roomID))
		}
	}
	if res.Rooms, err = writeCounts(ctx, tx, rooms, next); err != nil {
		return res, err
	}
	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	r.log.Debug("student moved", zap.Uint64("id_ziak", studentID),
		zap.Uint64("from", from), zap.Uint64("to", roomID))
	return res, nil
}

// Update rewrites every field of a student in place.  When in.RoomID differs
// from the current room the occupancy of both rooms is adjusted exactly as
// UpdateRoom does.
func (r *StudentRepo) Update(ctx context.Context, id uint64, in model.StudentInput) (res model.MutationResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	from, err := lockStudent(ctx, tx, id)
	if err != nil {
		return res, err
	}
	rooms, next, err := transfer(ctx, tx, from, in.RoomID)
	if err != nil {
		return res, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE ziak
		 SET meno = ?, priezvisko = ?, datum_narodenia = ?, email = ?,
		     ulica = ?, mesto = ?, PSC = ?, id_izba = ?
		 WHERE id_ziak = ?`,
		in.FirstName, in.LastName, in.BirthDate.String(), in.Email,
		in.Street, in.City, in.PostalCode, in.RoomID, id,
	); err != nil {
		return res, translate(err, fmt.Sprintf("room %d not found", in.RoomID))
	}
	if res.Rooms, err = writeCounts(ctx, tx, rooms, next); err != nil {
		return res, err
	}
	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	r.log.Debug("student updated", zap.Uint64("id_ziak", id), zap.Uint64("id_izba", in.RoomID))
	return res, nil
}

// lockStudent locks a ziak row and returns the room it points at.
func lockStudent(ctx context.Context, tx *sql.Tx, id uint64) (uint64, error) {
	var roomID uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id_izba FROM ziak WHERE id_ziak = ? FOR UPDATE`, id,
	).Scan(&roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.NotFound(fmt.Sprintf("student %d not found", id))
		}
		return 0, fmt.Errorf("lock student %d: %w", id, err)
	}
	return roomID, nil
}

// transfer locks both rooms and computes their counts after one resident
// moves from -> to.
func transfer(ctx context.Context, tx *sql.Tx, from, to uint64) (map[uint64]model.Room, occupancy.Counts, error) {
	rooms, err := lockRooms(ctx, tx, from, to)
	if err != nil {
		return nil, nil, err
	}
	next, err := occupancy.ApplyTransfer(countsOf(rooms), from, to, rooms[to].Capacity)
	if err != nil {
		return nil, nil, err
	}
	return rooms, next, nil
}
