package models

// Photo references externally stored photo content by hash and storage key.
// The server never touches photo bytes.
type Photo struct {
	Hash       string `json:"hash"`
	StorageKey string `json:"storageKey"`
	Pos        int64  `json:"pos"`
}

// Entry is a journal entry belonging to one category. Cat is the server-local
// category id; CatUUID is the stable cross-device reference resolved at push
// time. Age carries the same conflict-resolution semantics as Category.Age.
type Entry struct {
	ID       int64     `json:"id"`
	UUID     string    `json:"uuid"`
	Cat      int64     `json:"cat"`
	CatUUID  string    `json:"catUuid"`
	Title    string    `json:"title"`
	Maker    string    `json:"maker,omitempty"`
	Origin   string    `json:"origin,omitempty"`
	Price    string    `json:"price,omitempty"`
	Location string    `json:"location,omitempty"`
	Date     int64     `json:"date,omitempty"`
	Rating   float64   `json:"rating"`
	Notes    string    `json:"notes,omitempty"`
	Age      int64     `json:"age"`
	Shared   bool      `json:"shared,omitempty"`
	Deleted  bool      `json:"deleted,omitempty"`
	Extras   []*Extra  `json:"extras,omitempty"`
	Flavors  []*Flavor `json:"flavors,omitempty"`
	Photos   []*Photo  `json:"photos,omitempty"`
}
