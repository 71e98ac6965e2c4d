package domain

import "time"

// Level is a historical price extreme that attracts or repels price.
// Strength decays with age and is always non-negative.
type Level struct {
	Time         time.Time `json:"time"`
	Price        float64   `json:"price"`
	Strength     float64   `json:"strength"`
	IsResistance bool      `json:"is_resistance"`
}
