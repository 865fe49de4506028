package models

// Delta lists everything another client changed since the requesting client's
// last sync. Deletions are uuid -> age-in-milliseconds maps; updates carry the
// full records with children. Ages are elapsed durations so the client can
// compute its own watermark without sharing a clock with the server.
type Delta struct {
	DeletedCats    map[string]int64 `json:"deletedCats"`
	UpdatedCats    []*Category      `json:"updatedCats"`
	DeletedEntries map[string]int64 `json:"deletedEntries"`
	UpdatedEntries []*Entry         `json:"updatedEntries"`
}

// PushResult reports the outcome of a single category or entry push.
// Accepted=false means the write lost conflict resolution; it is not an error.
type PushResult struct {
	Accepted bool  `json:"accepted"`
	ID       int64 `json:"id"`
}

// Registration is the response to a client device registration.
type Registration struct {
	ClientID int64 `json:"clientId"`
}
