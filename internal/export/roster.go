// Package export renders the occupancy roster as an XLSX workbook.
package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/dorm-occupancy/internal/model"
)

// Sheet names of the roster workbook.
const (
	RoomsSheet    = "Izby"
	StudentsSheet = "Ziaci"
)

var (
	roomHeader    = []string{"Izba", "Kapacita", "Ubytovaní", "Voľné"}
	studentHeader = []string{"Izba", "ID", "Priezvisko", "Meno", "Dátum narodenia", "Email", "Mesto"}
)

// Roster returns a workbook with one row per room (ordered by room number)
// and one row per student (ordered by room number, then last name).
func Roster(rooms []model.Room, students []model.Student) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RoomsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(StudentsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	rooms = append([]model.Room(nil), rooms...)
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Number < rooms[j].Number })
	numbers := make(map[uint64]int, len(rooms))
	roomRows := make([][]any, 0, len(rooms))
	for _, r := range rooms {
		numbers[r.ID] = r.Number
		roomRows = append(roomRows, []any{r.Number, r.Capacity, r.Occupants, r.Free()})
	}
	if err := writeSheet(f, RoomsSheet, roomHeader, roomRows, headerStyle); err != nil {
		return nil, err
	}

	students = append([]model.Student(nil), students...)
	sort.SliceStable(students, func(i, j int) bool {
		a, b := numbers[students[i].RoomID], numbers[students[j].RoomID]
		if a != b {
			return a < b
		}
		return students[i].LastName < students[j].LastName
	})
	studentRows := make([][]any, 0, len(students))
	for _, s := range students {
		studentRows = append(studentRows, []any{
			numbers[s.RoomID], s.ID, s.LastName, s.FirstName, s.BirthDate.String(), s.Email, s.City,
		})
	}
	if err := writeSheet(f, StudentsSheet, studentHeader, studentRows, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("set header %s!%s: %w", sheet, cell, err)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
