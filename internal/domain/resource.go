package domain

import "time"

// ResourceKind names the three independently assignable resources.
type ResourceKind string

const (
	ResourceDriver  ResourceKind = "driver"
	ResourceTruck   ResourceKind = "truck"
	ResourceTrailer ResourceKind = "trailer"
)

// Driver - водитель; ADR marks hazardous-goods certification.
type Driver struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	ADR       bool      `json:"adr" db:"adr"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Truck - тягач; Genset marks an onboard refrigeration power unit.
type Truck struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Plate     string    `json:"plate" db:"plate"`
	Genset    bool      `json:"genset" db:"genset"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Trailer - прицеп / шасси.
type Trailer struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Plate     string    `json:"plate" db:"plate"`
	Genset    bool      `json:"genset" db:"genset"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
