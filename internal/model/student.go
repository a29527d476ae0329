package model

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts plain dates and full RFC 3339 timestamps.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if len(s) > len(DateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		*d = NewDate(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Student represents a resident (table `ziak`).  RoomNumber is filled from
// a join with `izba` when listing and is never written back.
type Student struct {
	ID         uint64 `json:"id_ziak"`              // ziak.id_ziak
	FirstName  string `json:"meno"`                 // ziak.meno
	LastName   string `json:"priezvisko"`           // ziak.priezvisko
	BirthDate  Date   `json:"datum_narodenia"`      // ziak.datum_narodenia
	Email      string `json:"email"`                // ziak.email
	Street     string `json:"ulica"`                // ziak.ulica
	City       string `json:"mesto"`                // ziak.mesto
	PostalCode string `json:"PSC"`                  // ziak.PSC
	RoomID     uint64 `json:"id_izba"`              // ziak.id_izba
	RoomNumber *int   `json:"cislo_izby,omitempty"` // izba.cislo
}

// StudentInput is a validated student payload used for insert and full update.
type StudentInput struct {
	FirstName  string
	LastName   string
	BirthDate  Date
	Email      string
	Street     string
	City       string
	PostalCode string
	RoomID     uint64
}

// Student builds a Student record with the given id from the input.
func (in StudentInput) Student(id uint64) Student {
	return Student{
		ID:         id,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		BirthDate:  in.BirthDate,
		Email:      in.Email,
		Street:     in.Street,
		City:       in.City,
		PostalCode: in.PostalCode,
		RoomID:     in.RoomID,
	}
}

// Fields returns the wire representation used by insert and update bodies.
func (in StudentInput) Fields() map[string]any {
	return map[string]any{
		"meno":            in.FirstName,
		"priezvisko":      in.LastName,
		"datum_narodenia": in.BirthDate.String(),
		"email":           in.Email,
		"ulica":           in.Street,
		"mesto":           in.City,
		"PSC":             in.PostalCode,
		"id_izba":         in.RoomID,
	}
}

// MutationResult is the authoritative outcome of an accepted mutation: the
// generated id (inserts only) and the post-commit state of every room whose
// occupant count was touched.
type MutationResult struct {
	ID    uint64 `json:"id,omitempty"`
	Rooms []Room `json:"rooms,omitempty"`
}
