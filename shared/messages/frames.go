package messages

// SyncFrame carries one encoded replication frame. Name routes it to the
// handler registered by the monitor of the target object.
type SyncFrame struct {
	Name     string
	Delivery int
	Payload  []byte
}
