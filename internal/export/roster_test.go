package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/dorm-occupancy/internal/model"
)

func TestRoster(t *testing.T) {
	born := model.NewDate(time.Date(2004, 1, 2, 0, 0, 0, 0, time.UTC))
	rooms := []model.Room{
		{ID: 2, Number: 202, Capacity: 2, Occupants: 1},
		{ID: 1, Number: 101, Capacity: 3, Occupants: 2},
	}
	students := []model.Student{
		{ID: 7, FirstName: "Eva", LastName: "Malá", BirthDate: born, Email: "eva@skola.sk", City: "Prešov", RoomID: 2},
		{ID: 3, FirstName: "Ján", LastName: "Novák", BirthDate: born, Email: "jan@skola.sk", City: "Košice", RoomID: 1},
		{ID: 4, FirstName: "Peter", LastName: "Hraško", BirthDate: born, Email: "peter@skola.sk", City: "Žilina", RoomID: 1},
	}

	data, err := Roster(rooms, students)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{RoomsSheet, StudentsSheet}, f.GetSheetList())

	roomRows, err := f.GetRows(RoomsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		roomHeader,
		{"101", "3", "2", "1"},
		{"202", "2", "1", "1"},
	}, roomRows)

	studentRows, err := f.GetRows(StudentsSheet)
	require.NoError(t, err)
	require.Len(t, studentRows, 4)
	assert.Equal(t, []string{"101", "4", "Hraško", "Peter", "2004-01-02", "peter@skola.sk", "Žilina"}, studentRows[1])
	assert.Equal(t, "Novák", studentRows[2][2])
	assert.Equal(t, "202", studentRows[3][0])
}

func TestRoster_Empty(t *testing.T) {
	data, err := Roster(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(StudentsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{studentHeader}, rows)
}
