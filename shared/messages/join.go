package messages

// JoinRequest is sent by a client after connecting to request joining the session.
type JoinRequest struct {
	Version    string
	PlayerName string
}

// JoinAccepted is sent by the server when a client's join request is accepted.
type JoinAccepted struct {
	ObserverID     uint64
	ServerName     string
	SyncRateClient float64
	SyncRateServer float64
	Scene          string
}

// JoinRejected is sent by the server when a client's join request is rejected.
type JoinRejected struct {
	Reason string
}
