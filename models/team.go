package models

// Team is a club team; only its admins may change its rosters.
type Team struct {
	ID     int    `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Admins []User `json:"admins,omitempty" db:"-"`
}

// Season is a competition year on a surface.
type Season struct {
	ID      int    `json:"id" db:"id"`
	Year    int    `json:"year" db:"year"`
	Surface string `json:"surface" db:"surface"`
}

// Context names the governing body whose ruleset applies to a roster.
type Context struct {
	ID      int    `json:"id" db:"id"`
	Acronym string `json:"acronym" db:"acronym"`
	Name    string `json:"name" db:"name"`
}
