package domain

import "time"

// Layout canvas dimensions, in editor pixels. Item coordinates must fall
// inside this box.
const (
	LayoutCanvasWidth  = 1000
	LayoutCanvasHeight = 700
)

const (
	LayoutTypePublic  = "public"
	LayoutTypePrivate = "private"
)

// FurnitureKinds is the fixed set of placeable furniture.
var FurnitureKinds = []string{
	"chair",
	"circle-table",
	"rect-table",
	"cocktail-table",
	"display-board",
	"trash-can",
}

// LayoutItem is a single furniture placement on the canvas. IDs are unique
// within one layout.
type LayoutItem struct {
	ID            string `json:"id"`
	FurnitureKind string `json:"furn"`
	X             int    `json:"x"`
	Y             int    `json:"y"`
}

// LayoutRecord holds a furniture arrangement. Private layouts belong to an
// event and derive their id from the package identifier; public layouts are
// standalone templates with a human-chosen id.
type LayoutRecord struct {
	ID        string       `gorm:"primaryKey;size:128" json:"id"`
	Type      string       `gorm:"size:16;index:idx_layout_type" json:"type"`
	PackageID *int         `json:"packageId,omitempty"`
	UserEmail string       `gorm:"size:256;index:idx_layout_user_email" json:"userEmail,omitempty"`
	Items     []LayoutItem `gorm:"serializer:json" json:"items"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ValidFurnitureKind reports whether kind is one of the placeable kinds.
func ValidFurnitureKind(kind string) bool {
	for _, k := range FurnitureKinds {
		if k == kind {
			return true
		}
	}
	return false
}
