// Package state keeps a client-side copy of students and rooms.  Every
// mutation goes to the server first; the local copy is patched only after
// the server accepted it, and room counts are then replaced by the rooms
// the server returned.
package state

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/model"
	"github.com/iliyamo/dorm-occupancy/internal/occupancy"
	"github.com/iliyamo/dorm-occupancy/internal/validator"
)

// API is the subset of the HTTP client the store depends on.
type API interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	InsertStudent(ctx context.Context, in model.StudentInput) (model.MutationResult, error)
	DeleteStudent(ctx context.Context, id uint64) (model.MutationResult, error)
	UpdateStudentRoom(ctx context.Context, studentID, roomID uint64) (model.MutationResult, error)
	UpdateStudent(ctx context.Context, id uint64, in model.StudentInput) (model.MutationResult, error)
	InsertRoom(ctx context.Context, in model.RoomInput) (uint64, error)
	DeleteRoom(ctx context.Context, id uint64) error
}

// Store is the client-side cache of students and rooms.  It is safe for
// concurrent use.
type Store struct {
	api      API
	validate *validator.Validator
	log      *zap.Logger

	mu       sync.RWMutex
	students map[uint64]model.Student
	rooms    map[uint64]model.Room
}

// New returns an empty Store; call Load to fill it.
func New(api API, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		api:      api,
		validate: validator.New(),
		log:      log,
		students: map[uint64]model.Student{},
		rooms:    map[uint64]model.Room{},
	}
}

// Load replaces the whole cache with a fresh fetch.  Nothing changes when
// either request fails.
func (s *Store) Load(ctx context.Context) error {
	rooms, err := s.api.ListRooms(ctx)
	if err != nil {
		return err
	}
	students, err := s.api.ListStudents(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = make(map[uint64]model.Room, len(rooms))
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	s.students = make(map[uint64]model.Student, len(students))
	for _, st := range students {
		s.students[st.ID] = st
	}
	return nil
}

// AddStudent validates raw, creates the student on the server and records it
// locally.
func (s *Store) AddStudent(ctx context.Context, raw map[string]any) (model.Student, error) {
	in, err := s.validate.Student(raw)
	if err != nil {
		return model.Student{}, err
	}
	res, err := s.api.InsertStudent(ctx, in)
	if err != nil {
		return model.Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcile(func(c occupancy.Counts) (occupancy.Counts, error) {
		return occupancy.ApplyInsert(c, in.RoomID, s.rooms[in.RoomID].Capacity)
	}, res.Rooms)
	st := s.withRoomNumber(in.Student(res.ID))
	s.students[st.ID] = st
	return st, nil
}

// DeleteStudent removes a student on the server and from the cache.
func (s *Store) DeleteStudent(ctx context.Context, id uint64) error {
	res, err := s.api.DeleteStudent(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.students[id]; ok {
		s.reconcile(func(c occupancy.Counts) (occupancy.Counts, error) {
			return occupancy.ApplyDelete(c, st.RoomID), nil
		}, res.Rooms)
		delete(s.students, id)
	} else {
		s.reconcile(nil, res.Rooms)
	}
	return nil
}

// ChangeRoom moves a student to roomID.
func (s *Store) ChangeRoom(ctx context.Context, studentID, roomID uint64) error {
	res, err := s.api.UpdateStudentRoom(ctx, studentID, roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[studentID]
	if !ok {
		s.reconcile(nil, res.Rooms)
		return nil
	}
	from := st.RoomID
	s.reconcile(func(c occupancy.Counts) (occupancy.Counts, error) {
		return occupancy.ApplyTransfer(c, from, roomID, s.rooms[roomID].Capacity)
	}, res.Rooms)
	st.RoomID = roomID
	s.students[studentID] = s.withRoomNumber(st)
	return nil
}

// UpdateStudent validates raw (which carries id_ziak) and replaces the
// student's data, possibly moving them to another room.
func (s *Store) UpdateStudent(ctx context.Context, raw map[string]any) (model.Student, error) {
	id, in, err := s.validate.StudentUpdate(raw)
	if err != nil {
		return model.Student{}, err
	}
	res, err := s.api.UpdateStudent(ctx, id, in)
	if err != nil {
		return model.Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.students[id]; ok {
		s.reconcile(func(c occupancy.Counts) (occupancy.Counts, error) {
			return occupancy.ApplyTransfer(c, old.RoomID, in.RoomID, s.rooms[in.RoomID].Capacity)
		}, res.Rooms)
	} else {
		s.reconcile(nil, res.Rooms)
	}
	st := s.withRoomNumber(in.Student(id))
	s.students[id] = st
	return st, nil
}

// AddRoom validates raw and creates an empty room.
func (s *Store) AddRoom(ctx context.Context, raw map[string]any) (model.Room, error) {
	in, err := s.validate.Room(raw)
	if err != nil {
		return model.Room{}, err
	}
	id, err := s.api.InsertRoom(ctx, in)
	if err != nil {
		return model.Room{}, err
	}

	r := model.Room{ID: id, Number: in.Number, Capacity: in.Capacity}
	s.mu.Lock()
	s.rooms[id] = r
	s.mu.Unlock()
	return r, nil
}

// DeleteRoom removes an empty room on the server and from the cache.
func (s *Store) DeleteRoom(ctx context.Context, id uint64) error {
	if err := s.api.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()
	return nil
}

// Students returns the cached students ordered by id.
func (s *Store) Students() []model.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rooms returns the cached rooms ordered by room number.
func (s *Store) Rooms() []model.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// StudentsInRoom returns the cached residents of a room ordered by id.
func (s *Store) StudentsInRoom(roomID uint64) []model.Student {
	var out []model.Student
	for _, st := range s.Students() {
		if st.RoomID == roomID {
			out = append(out, st)
		}
	}
	return out
}

// AvailableRooms lists rooms that can take one more student, leaving out
// exclude (the student's current room).
func (s *Store) AvailableRooms(exclude uint64) []model.Room {
	var out []model.Room
	for _, r := range s.Rooms() {
		if r.ID != exclude && occupancy.Available(r.Occupants, r.Capacity) {
			out = append(out, r)
		}
	}
	return out
}

// reconcile applies step to the cached counts and then overwrites them with
// the rooms the server reported.  A step the local copy considers invalid is
// only logged: the server already accepted the change.  Callers hold mu.
func (s *Store) reconcile(step func(occupancy.Counts) (occupancy.Counts, error), server []model.Room) {
	if step != nil {
		counts := make(occupancy.Counts, len(s.rooms))
		for id, r := range s.rooms {
			counts[id] = r.Occupants
		}
		next, err := step(counts)
		if err != nil {
			s.log.Warn("local counts out of date", zap.Error(err))
		} else {
			for id, n := range next {
				if r, ok := s.rooms[id]; ok {
					r.Occupants = n
					s.rooms[id] = r
				}
			}
		}
	}
	for _, r := range server {
		s.rooms[r.ID] = r
	}
}

// withRoomNumber fills RoomNumber from the cached room.  Callers hold mu.
func (s *Store) withRoomNumber(st model.Student) model.Student {
	st.RoomNumber = nil
	if r, ok := s.rooms[st.RoomID]; ok {
		n := r.Number
		st.RoomNumber = &n
	}
	return st
}
