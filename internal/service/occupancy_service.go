// Package service validates raw request payloads, runs them against the
// repositories and announces every accepted change: the read cache is
// dropped and an occupancy event is published for the other instances.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/model"
	"github.com/iliyamo/dorm-occupancy/internal/queue"
	"github.com/iliyamo/dorm-occupancy/internal/validator"
)

// StudentStore is the persistence contract for students.
type StudentStore interface {
	List(ctx context.Context) ([]model.Student, error)
	Create(ctx context.Context, in model.StudentInput) (model.MutationResult, error)
	Delete(ctx context.Context, id uint64) (model.MutationResult, error)
	UpdateRoom(ctx context.Context, studentID, roomID uint64) (model.MutationResult, error)
	Update(ctx context.Context, id uint64, in model.StudentInput) (model.MutationResult, error)
}

// RoomStore is the persistence contract for rooms.
type RoomStore interface {
	List(ctx context.Context) ([]model.Room, error)
	Create(ctx context.Context, in model.RoomInput) (uint64, error)
	Delete(ctx context.Context, id uint64) error
}

// EventPublisher announces committed changes.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.OccupancyChangedEvent) error
}

// CacheInvalidator drops cached read responses.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service implements the student and room operations.
type Service struct {
	students  StudentStore
	rooms     RoomStore
	validate  *validator.Validator
	publisher EventPublisher
	cache     CacheInvalidator
	log       *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher publishes an event after each accepted mutation.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

// WithCache invalidates the read cache after each accepted mutation.
func WithCache(c CacheInvalidator) Option { return func(s *Service) { s.cache = c } }

// WithValidator replaces the default validator.
func WithValidator(v *validator.Validator) Option { return func(s *Service) { s.validate = v } }

// New builds a Service over the given stores.
func New(students StudentStore, rooms RoomStore, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{students: students, rooms: rooms, validate: validator.New(), log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) ListStudents(ctx context.Context) ([]model.Student, error) {
	return s.students.List(ctx)
}

func (s *Service) ListRooms(ctx context.Context) ([]model.Room, error) {
	return s.rooms.List(ctx)
}

// InsertStudent validates raw and creates the student.
func (s *Service) InsertStudent(ctx context.Context, raw map[string]any) (model.MutationResult, error) {
	in, err := s.validate.Student(raw)
	if err != nil {
		return model.MutationResult{}, err
	}
	res, err := s.students.Create(ctx, in)
	if err != nil {
		return model.MutationResult{}, err
	}
	ev := queue.NewEvent(queue.KindStudentInserted)
	ev.StudentID, ev.RoomID, ev.Rooms = res.ID, in.RoomID, res.Rooms
	s.changed(ctx, ev)
	return res, nil
}

// DeleteStudent removes the student named by "id" (or "id_ziak").
func (s *Service) DeleteStudent(ctx context.Context, raw map[string]any) (model.MutationResult, error) {
	id, err := s.validate.Identifier(raw, "id", "id_ziak")
	if err != nil {
		return model.MutationResult{}, err
	}
	res, err := s.students.Delete(ctx, id)
	if err != nil {
		return model.MutationResult{}, err
	}
	ev := queue.NewEvent(queue.KindStudentDeleted)
	ev.StudentID, ev.Rooms = id, res.Rooms
	s.changed(ctx, ev)
	return res, nil
}

// UpdateStudentRoom moves a student into another room.
func (s *Service) UpdateStudentRoom(ctx context.Context, raw map[string]any) (model.MutationResult, error) {
	studentID, roomID, err := s.validate.Transfer(raw)
	if err != nil {
		return model.MutationResult{}, err
	}
	res, err := s.students.UpdateRoom(ctx, studentID, roomID)
	if err != nil {
		return model.MutationResult{}, err
	}
	ev := queue.NewEvent(queue.KindStudentMoved)
	ev.StudentID, ev.RoomID, ev.Rooms = studentID, roomID, res.Rooms
	s.changed(ctx, ev)
	return res, nil
}

// UpdateStudent rewrites every field of a student.
func (s *Service) UpdateStudent(ctx context.Context, raw map[string]any) (model.MutationResult, error) {
	id, in, err := s.validate.StudentUpdate(raw)
	if err != nil {
		return model.MutationResult{}, err
	}
	res, err := s.students.Update(ctx, id, in)
	if err != nil {
		return model.MutationResult{}, err
	}
	ev := queue.NewEvent(queue.KindStudentUpdated)
	ev.StudentID, ev.RoomID, ev.Rooms = id, in.RoomID, res.Rooms
	s.changed(ctx, ev)
	return res, nil
}

// InsertRoom creates an empty room.
func (s *Service) InsertRoom(ctx context.Context, raw map[string]any) (model.MutationResult, error) {
	in, err := s.validate.Room(raw)
	if err != nil {
		return model.MutationResult{}, err
	}
	id, err := s.rooms.Create(ctx, in)
	if err != nil {
		return model.MutationResult{}, err
	}
	room := model.Room{ID: id, Number: in.Number, Capacity: in.Capacity}
	ev := queue.NewEvent(queue.KindRoomInserted)
	ev.RoomID, ev.Rooms = id, []model.Room{room}
	s.changed(ctx, ev)
	return model.MutationResult{ID: id, Rooms: []model.Room{room}}, nil
}

// DeleteRoom removes the room named by "id" (or "id_izba").
func (s *Service) DeleteRoom(ctx context.Context, raw map[string]any) error {
	id, err := s.validate.Identifier(raw, "id", "id_izba")
	if err != nil {
		return err
	}
	if err := s.rooms.Delete(ctx, id); err != nil {
		return err
	}
	ev := queue.NewEvent(queue.KindRoomDeleted)
	ev.RoomID = id
	s.changed(ctx, ev)
	return nil
}

// changed runs after a commit.  Failures are logged only; the mutation has
// already happened and the cache TTL bounds any staleness.
func (s *Service) changed(ctx context.Context, ev queue.OccupancyChangedEvent) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn("cache invalidation failed", zap.String("kind", ev.Kind), zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
			s.log.Warn("occupancy event not published", zap.String("event_id", ev.ID), zap.Error(err))
		}
	}
	s.log.Info("occupancy changed",
		zap.String("kind", ev.Kind),
		zap.Uint64("id_ziak", ev.StudentID),
		zap.Uint64("id_izba", ev.RoomID),
		zap.Int("rooms", len(ev.Rooms)))
}
