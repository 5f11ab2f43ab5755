package messages

// Entity kinds announced in SpawnEvent.
const (
	KindCharacter = "character"
	KindProp      = "prop"
	KindPlatform  = "platform"
)

// SpawnEvent is broadcast when a networked object spawns, and replayed to
// observers that join later.
type SpawnEvent struct {
	ObjectID  uint64
	Owner     uint64 // observer id of the authority; 0 is the server
	Kind      string
	Position  [3]float64
	Euler     [3]float64 // degrees
	Rigidbody bool
	Label     string
	Extents   [3]float64 // platform half extents
}

// DespawnEvent is broadcast when a networked object is removed.
type DespawnEvent struct {
	ObjectID uint64
}
