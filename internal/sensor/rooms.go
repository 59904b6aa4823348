package sensor

import (
	"math/rand"
	"sync"
)

// Rooms watched by the simulated motion sensors, in priority order
var Rooms = []string{"Bedroom", "Living Room", "Bathroom"}

// MotionProbability is the chance each room reports motion per step
const MotionProbability = 0.3

// RoomMotion is one room's motion flag
type RoomMotion struct {
	Room   string `json:"room"`
	Motion bool   `json:"motion"`
}

// RoomSnapshot is the state after one simulation step
type RoomSnapshot struct {
	Rooms        []RoomMotion `json:"rooms"`
	AnyMotion    bool         `json:"any_motion"`
	LastLocation string       `json:"last_location"`
}

// RoomSimulator produces random motion per room and tracks where the
// child was last seen: the first room with motion, else unchanged.
type RoomSimulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	motion   []bool
	location string
}

// NewRoomSimulator starts with no motion and the child in the Bedroom
func NewRoomSimulator(seed int64) *RoomSimulator {
	return &RoomSimulator{
		rng:      rand.New(rand.NewSource(seed)),
		motion:   make([]bool, len(Rooms)),
		location: Rooms[0],
	}
}

// Step draws new motion flags and updates the last location
func (r *RoomSimulator) Step() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	moved := ""
	for i := range r.motion {
		r.motion[i] = r.rng.Float64() < MotionProbability
		if r.motion[i] && moved == "" {
			moved = Rooms[i]
		}
	}
	if moved != "" {
		r.location = moved
	}
	return r.snapshotLocked()
}

// Snapshot returns the current state without advancing
func (r *RoomSimulator) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *RoomSimulator) snapshotLocked() RoomSnapshot {
	snap := RoomSnapshot{Rooms: make([]RoomMotion, len(Rooms)), LastLocation: r.location}
	for i, room := range Rooms {
		snap.Rooms[i] = RoomMotion{Room: room, Motion: r.motion[i]}
		snap.AnyMotion = snap.AnyMotion || r.motion[i]
	}
	return snap
}
