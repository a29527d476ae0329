// Package queue carries occupancy change notifications over RabbitMQ.  Every
// accepted mutation is announced on a fanout exchange; each server instance
// binds its own transient queue and drops its cached read responses when an
// event arrives.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/dorm-occupancy/internal/model"
)

// Exchange is the fanout exchange occupancy events are published to.
const Exchange = "dorm.occupancy"

// Event kinds.
const (
	KindStudentInserted = "student.inserted"
	KindStudentDeleted  = "student.deleted"
	KindStudentMoved    = "student.moved"
	KindStudentUpdated  = "student.updated"
	KindRoomInserted    = "room.inserted"
	KindRoomDeleted     = "room.deleted"
)

// OccupancyChangedEvent is published after a mutation commits.  Rooms holds
// the post-commit state of every room whose occupant count changed.
type OccupancyChangedEvent struct {
	ID         string       `json:"id"`
	Kind       string       `json:"kind"`
	StudentID  uint64       `json:"id_ziak,omitempty"`
	RoomID     uint64       `json:"id_izba,omitempty"`
	Rooms      []model.Room `json:"rooms,omitempty"`
	OccurredAt string       `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(kind string) OccupancyChangedEvent {
	return OccupancyChangedEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
