package model

// Room represents a dormitory room (table `izba`).  Occupants mirrors the
// pocet_ubytovanych column and is maintained only by the persistence layer;
// clients never set it directly.
//
// Fields:
//
//	ID        – primary key identifier.
//	Number    – room number shown on the door, unique across rooms.
//	Capacity  – maximum number of residents, at least 1.
//	Occupants – number of students currently assigned to the room.
type Room struct {
	ID        uint64 `json:"id_izba"`           // izba.id_izba
	Number    int    `json:"cislo"`             // izba.cislo
	Capacity  int    `json:"kapacita"`          // izba.kapacita
	Occupants int    `json:"pocet_ubytovanych"` // izba.pocet_ubytovanych
}

// Free returns the number of unoccupied beds, never negative.
func (r Room) Free() int {
	if r.Occupants >= r.Capacity {
		return 0
	}
	return r.Capacity - r.Occupants
}

// RoomInput is the validated payload for creating a room.
type RoomInput struct {
	Number   int
	Capacity int
}
