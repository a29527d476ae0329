package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
	"github.com/iliyamo/dorm-occupancy/internal/model"
)

type captured struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func server(t *testing.T, status int, reply string, got *captured) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.method, got.path, got.auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				_ = json.Unmarshal(raw, &got.body)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, nil)
}

func sampleInput() model.StudentInput {
	born, _ := model.ParseDate("2003-02-14")
	return model.StudentInput{
		FirstName: "Ján", LastName: "Novák", BirthDate: born, Email: "jan@skola.sk",
		Street: "Hlavná 12", City: "Košice", PostalCode: "040 01", RoomID: 2,
	}
}

func TestListRooms(t *testing.T) {
	c := server(t, http.StatusOK, `[{"id_izba":2,"cislo":101,"kapacita":2,"pocet_ubytovanych":1}]`, nil)

	rooms, err := c.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Room{{ID: 2, Number: 101, Capacity: 2, Occupants: 1}}, rooms)
}

func TestListStudents(t *testing.T) {
	c := server(t, http.StatusOK, `[{"id_ziak":1,"meno":"Ján","datum_narodenia":"2003-02-14T00:00:00Z","id_izba":2,"cislo_izby":101}]`, nil)

	students, err := c.ListStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "2003-02-14", students[0].BirthDate.String())
	assert.Equal(t, 101, *students[0].RoomNumber)
}

func TestInsertStudent(t *testing.T) {
	var got captured
	c := server(t, http.StatusCreated, `{"id":9,"id_ziak":9,"rooms":[{"id_izba":2,"cislo":101,"kapacita":2,"pocet_ubytovanych":2}]}`, &got)

	res, err := c.InsertStudent(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), res.ID)
	assert.Equal(t, 2, res.Rooms[0].Occupants)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/ziak/insert", got.path)
	assert.Equal(t, "2003-02-14", got.body["datum_narodenia"])
	assert.EqualValues(t, 2, got.body["id_izba"])
}

func TestUpdateAndDeleteBodies(t *testing.T) {
	var got captured
	c := server(t, http.StatusOK, `{"rooms":[]}`, &got)
	ctx := context.Background()

	_, err := c.UpdateStudentRoom(ctx, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, "/ziak/update-room", got.path)
	assert.EqualValues(t, 4, got.body["studentId"])
	assert.EqualValues(t, 5, got.body["roomId"])

	_, err = c.UpdateStudent(ctx, 4, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, got.method)
	assert.EqualValues(t, 4, got.body["id_ziak"])

	_, err = c.DeleteStudent(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, got.method)
	assert.EqualValues(t, 4, got.body["id"])

	require.NoError(t, c.DeleteRoom(ctx, 3))
	assert.Equal(t, "/izba/delete", got.path)
}

func TestInsertRoom(t *testing.T) {
	var got captured
	c := server(t, http.StatusCreated, `{"id":12,"id_izba":12}`, &got)

	id, err := c.InsertRoom(context.Background(), model.RoomInput{Number: 204, Capacity: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)
	assert.EqualValues(t, 204, got.body["number"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"validation", 400, `{"error":"validation_failed","message":"invalid data","errors":{"PSC":"is invalid"}}`, apperrors.ErrValidation},
		{"not found", 404, `{"error":"not_found","message":"room 9 not found"}`, apperrors.ErrNotFound},
		{"capacity", 409, `{"error":"capacity_exceeded","message":"room 2 is full (2/2)"}`, apperrors.ErrCapacity},
		{"conflict", 409, `{"error":"conflict","message":"room number 204 already exists"}`, apperrors.ErrConflict},
		{"server", 500, `{"error":"internal","message":"server error"}`, apperrors.ErrTransient},
		{"unavailable", 503, `{}`, apperrors.ErrTransient},
		{"unauthorized", 401, `{"error":"unauthorized","message":"missing bearer token"}`, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := server(t, tt.status, tt.body, nil)
			_, err := c.InsertStudent(context.Background(), sampleInput())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidationFieldsSurvive(t *testing.T) {
	c := server(t, 400, `{"error":"validation_failed","errors":{"PSC":"is invalid","meno":"is required"}}`, nil)

	_, err := c.InsertStudent(context.Background(), sampleInput())
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]string{"PSC": "is invalid", "meno": "is required"}, verr.Fields)
}

func TestUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, nil, WithTimeout(time.Second))
	_, err := c.ListRooms(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrTransient)
}

func TestLoginSetsToken(t *testing.T) {
	var got captured
	c := server(t, http.StatusOK, `{"token":"abc","expires":"2030-01-01T00:00:00Z"}`, &got)

	require.NoError(t, c.Login(context.Background(), "admin", "heslo"))
	assert.Equal(t, "admin", got.body["username"])

	_, _ = c.ListRooms(context.Background())
	assert.Equal(t, "Bearer abc", got.auth)
}

func TestRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write([]byte("PK\x03\x04"))
	}))
	defer srv.Close()

	data, err := New(srv.URL, nil).Roster(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), data)
}
