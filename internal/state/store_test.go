package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
	"github.com/iliyamo/dorm-occupancy/internal/model"
)

// fakeAPI answers like the server would for a tiny in-memory dorm.
type fakeAPI struct {
	students []model.Student
	rooms    []model.Room
	res      model.MutationResult
	roomID   uint64
	err      error
	calls    int
}

func (f *fakeAPI) ListStudents(context.Context) ([]model.Student, error) { return f.students, f.err }
func (f *fakeAPI) ListRooms(context.Context) ([]model.Room, error)       { return f.rooms, f.err }

func (f *fakeAPI) InsertStudent(context.Context, model.StudentInput) (model.MutationResult, error) {
	f.calls++
	return f.res, f.err
}

func (f *fakeAPI) DeleteStudent(context.Context, uint64) (model.MutationResult, error) {
	f.calls++
	return f.res, f.err
}

func (f *fakeAPI) UpdateStudentRoom(context.Context, uint64, uint64) (model.MutationResult, error) {
	f.calls++
	return f.res, f.err
}

func (f *fakeAPI) UpdateStudent(context.Context, uint64, model.StudentInput) (model.MutationResult, error) {
	f.calls++
	return f.res, f.err
}

func (f *fakeAPI) InsertRoom(context.Context, model.RoomInput) (uint64, error) {
	f.calls++
	return f.roomID, f.err
}

func (f *fakeAPI) DeleteRoom(context.Context, uint64) error {
	f.calls++
	return f.err
}

func loaded(t *testing.T) (*Store, *fakeAPI) {
	t.Helper()
	n101 := 101
	api := &fakeAPI{
		rooms: []model.Room{
			{ID: 1, Number: 101, Capacity: 2, Occupants: 1},
			{ID: 2, Number: 102, Capacity: 1, Occupants: 0},
			{ID: 3, Number: 100, Capacity: 1, Occupants: 0},
		},
		students: []model.Student{{ID: 7, FirstName: "Eva", RoomID: 1, RoomNumber: &n101}},
	}
	s := New(api, nil)
	require.NoError(t, s.Load(context.Background()))
	return s, api
}

func studentBody(room string) map[string]any {
	return map[string]any{
		"meno":            "Ján",
		"priezvisko":      "Novák",
		"datum_narodenia": "2003-02-14",
		"email":           "jan@skola.sk",
		"ulica":           "Hlavná 12",
		"mesto":           "Košice",
		"PSC":             "040 01",
		"id_izba":         room,
	}
}

func counts(s *Store) map[uint64]int {
	out := map[uint64]int{}
	for _, r := range s.Rooms() {
		out[r.ID] = r.Occupants
	}
	return out
}

func TestLoadOrdering(t *testing.T) {
	s, _ := loaded(t)

	rooms := s.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, []int{100, 101, 102}, []int{rooms[0].Number, rooms[1].Number, rooms[2].Number})
	assert.Len(t, s.Students(), 1)
}

func TestLoadFailureKeepsCache(t *testing.T) {
	s, api := loaded(t)
	api.err = apperrors.Transient("down")

	assert.ErrorIs(t, s.Load(context.Background()), apperrors.ErrTransient)
	assert.Len(t, s.Rooms(), 3)
}

func TestAddStudent(t *testing.T) {
	s, api := loaded(t)
	api.res = model.MutationResult{ID: 8, Rooms: []model.Room{{ID: 2, Number: 102, Capacity: 1, Occupants: 1}}}

	st, err := s.AddStudent(context.Background(), studentBody("2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), st.ID)
	require.NotNil(t, st.RoomNumber)
	assert.Equal(t, 102, *st.RoomNumber)
	assert.Equal(t, map[uint64]int{1: 1, 2: 1, 3: 0}, counts(s))
	assert.Len(t, s.StudentsInRoom(2), 1)
}

func TestAddStudent_InvalidNeverCallsAPI(t *testing.T) {
	s, api := loaded(t)
	body := studentBody("2")
	body["email"] = "nope"

	_, err := s.AddStudent(context.Background(), body)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Zero(t, api.calls)
}

func TestAddStudent_ServerRejectsLeavesCache(t *testing.T) {
	s, api := loaded(t)
	api.err = apperrors.Capacity("room 2 is full (1/1)")

	_, err := s.AddStudent(context.Background(), studentBody("2"))
	assert.ErrorIs(t, err, apperrors.ErrCapacity)
	assert.Equal(t, map[uint64]int{1: 1, 2: 0, 3: 0}, counts(s))
	assert.Len(t, s.Students(), 1)
}

func TestServerCountsWin(t *testing.T) {
	s, api := loaded(t)
	// Another client filled room 1 meanwhile.
	api.res = model.MutationResult{ID: 9, Rooms: []model.Room{{ID: 1, Number: 101, Capacity: 2, Occupants: 2}}}

	_, err := s.AddStudent(context.Background(), studentBody("1"))
	require.NoError(t, err)
	assert.Equal(t, 2, counts(s)[1])
}

func TestDeleteStudent(t *testing.T) {
	s, api := loaded(t)
	api.res = model.MutationResult{Rooms: []model.Room{{ID: 1, Number: 101, Capacity: 2, Occupants: 0}}}

	require.NoError(t, s.DeleteStudent(context.Background(), 7))
	assert.Empty(t, s.Students())
	assert.Equal(t, 0, counts(s)[1])
}

func TestChangeRoom(t *testing.T) {
	s, api := loaded(t)
	api.res = model.MutationResult{Rooms: []model.Room{
		{ID: 1, Number: 101, Capacity: 2, Occupants: 0},
		{ID: 3, Number: 100, Capacity: 1, Occupants: 1},
	}}

	require.NoError(t, s.ChangeRoom(context.Background(), 7, 3))
	assert.Equal(t, map[uint64]int{1: 0, 2: 0, 3: 1}, counts(s))
	st := s.Students()[0]
	assert.Equal(t, uint64(3), st.RoomID)
	assert.Equal(t, 100, *st.RoomNumber)
}

func TestChangeRoom_FailureTouchesNothing(t *testing.T) {
	s, api := loaded(t)
	api.err = apperrors.Capacity("room 3 is full (1/1)")

	assert.ErrorIs(t, s.ChangeRoom(context.Background(), 7, 3), apperrors.ErrCapacity)
	assert.Equal(t, map[uint64]int{1: 1, 2: 0, 3: 0}, counts(s))
	assert.Equal(t, uint64(1), s.Students()[0].RoomID)
}

func TestUpdateStudent(t *testing.T) {
	s, api := loaded(t)
	api.res = model.MutationResult{Rooms: []model.Room{
		{ID: 1, Number: 101, Capacity: 2, Occupants: 0},
		{ID: 2, Number: 102, Capacity: 1, Occupants: 1},
	}}
	body := studentBody("2")
	body["id_ziak"] = float64(7)

	st, err := s.UpdateStudent(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "Ján", st.FirstName)
	assert.Equal(t, map[uint64]int{1: 0, 2: 1, 3: 0}, counts(s))
}

func TestRooms(t *testing.T) {
	s, api := loaded(t)
	api.roomID = 4

	r, err := s.AddRoom(context.Background(), map[string]any{"number": float64(204), "capacity": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, model.Room{ID: 4, Number: 204, Capacity: 3}, r)
	assert.Len(t, s.Rooms(), 4)

	require.NoError(t, s.DeleteRoom(context.Background(), 4))
	assert.Len(t, s.Rooms(), 3)

	api.err = apperrors.Conflict("room 101 still has 1 residents")
	assert.ErrorIs(t, s.DeleteRoom(context.Background(), 1), apperrors.ErrConflict)
	assert.Len(t, s.Rooms(), 3)
}

func TestAvailableRooms(t *testing.T) {
	s, _ := loaded(t)

	got := s.AvailableRooms(1)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].ID)
	assert.Equal(t, uint64(2), got[1].ID)
}
