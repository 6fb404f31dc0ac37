package model

import (
	"time"

	"gorm.io/datatypes"
)

// Studio is a physical location holding NumStudios bookable units.
// Unit labels are not stored; they are derived from Code and NumStudios.
type Studio struct {
	ID         int64   `gorm:"primaryKey" json:"id"` // Upstream catalog ID
	Name       string  `gorm:"size:256;not null" json:"name"`
	Code       string  `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Address    string  `gorm:"size:512" json:"address"`
	City       string  `gorm:"size:128;index" json:"city"`
	Area       string  `gorm:"size:128" json:"area"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	NumStudios int     `gorm:"not null;default:1" json:"numStudios"`

	Facilities datatypes.JSONSlice[string] `json:"facilities"`
	Photos     datatypes.JSONSlice[string] `json:"photos"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}
