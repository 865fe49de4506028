package models

// Flavor is one flavor definition (categories) or value (entries).
type Flavor struct {
	Name  string `json:"name"`
	Value int64  `json:"value,omitempty"`
	Pos   int64  `json:"pos"`
}

// Extra is a custom field definition (categories) or value (entries). The
// UUID is assigned by the category that defines the field.
type Extra struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name,omitempty"`
	Value   string `json:"value,omitempty"`
	Pos     int64  `json:"pos,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Category is a journal category. Age is the elapsed time in milliseconds
// since the record was last written on the server; on a push it carries the
// age the client last observed and drives conflict resolution.
type Category struct {
	ID      int64     `json:"id"`
	UUID    string    `json:"uuid"`
	Name    string    `json:"name"`
	Age     int64     `json:"age"`
	Deleted bool      `json:"deleted,omitempty"`
	Extras  []*Extra  `json:"extras,omitempty"`
	Flavors []*Flavor `json:"flavors,omitempty"`
}
