package domain

import "time"

// Approval states are persisted as strings because the record store's
// secondary index on the approved column cannot hold native booleans.
const (
	ApprovalPending  = "false"
	ApprovalComplete = "true"
	ApprovalVoid     = "void"
)

// FundingCode is the accounting string an event bills setup labor against.
// Required only when setup is requested.
type FundingCode struct {
	Fund    string `json:"fund"`
	Org     string `json:"org"`
	Dept    string `json:"dept"`
	Subdept string `json:"subdept,omitempty"`
	Grant   string `json:"grant,omitempty"`
	Oact    string `json:"oact,omitempty"`
}

// EventRecord is the canonical event entity, keyed by the package identifier
// assigned by the approval router.
type EventRecord struct {
	PackageID         int          `gorm:"primaryKey" json:"packageId"`
	Approved          string       `gorm:"size:8;index:idx_approved" json:"approved"`
	UserEmail         string       `gorm:"size:256;index:idx_user_email" json:"userEmail"`
	ContactEmail      string       `gorm:"size:256" json:"contactEmail,omitempty"`
	CophEmail         string       `gorm:"size:256" json:"cophEmail,omitempty"`
	EventName         string       `gorm:"size:512;not null" json:"eventName"`
	Date              string       `gorm:"size:10;index:idx_date" json:"date"`
	StartTime         string       `gorm:"size:16" json:"startTime"`
	EndTime           string       `gorm:"size:16" json:"endTime"`
	RoomNumber        string       `gorm:"size:32;index:idx_room_number" json:"roomNumber"`
	NumPeople         int          `json:"numPeople"`
	CourseTitle       string       `gorm:"size:256" json:"courseTitle,omitempty"`
	CourseNumber      string       `gorm:"size:64" json:"courseNumber,omitempty"`
	ReferencesCourse  bool         `json:"referencesCourse"`
	SetupRequired     bool         `json:"setupRequired"`
	SetupFunding      *FundingCode `gorm:"serializer:json" json:"setupMfkProvided,omitempty"`
	FoodDrinkRequired bool         `json:"foodDrinkRequired"`
	FoodProvider      string       `gorm:"size:256" json:"foodProvider,omitempty"`
	AlcoholProvider   string       `gorm:"size:256" json:"alcoholProvider,omitempty"`
	Comments          string       `gorm:"size:2048" json:"comments,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// EventSubmission is the raw form a user submits. It carries everything an
// EventRecord does minus the router-assigned key, plus the optional furniture
// layout items.
type EventSubmission struct {
	UserEmail         string       `json:"userEmail"`
	ContactEmail      string       `json:"contactEmail,omitempty"`
	CophEmail         string       `json:"cophEmail,omitempty"`
	EventName         string       `json:"eventName"`
	Date              string       `json:"date"`
	StartTime         string       `json:"startTime"`
	EndTime           string       `json:"endTime"`
	RoomNumber        string       `json:"roomNumber"`
	NumPeople         int          `json:"numPeople"`
	CourseTitle       string       `json:"courseTitle,omitempty"`
	CourseNumber      string       `json:"courseNumber,omitempty"`
	ReferencesCourse  bool         `json:"referencesCourse"`
	SetupRequired     bool         `json:"setupRequired"`
	SetupFunding      *FundingCode `json:"setupMfkProvided,omitempty"`
	FoodDrinkRequired bool         `json:"foodDrinkRequired"`
	FoodProvider      string       `json:"foodProvider,omitempty"`
	AlcoholProvider   string       `json:"alcoholProvider,omitempty"`
	Comments          string       `json:"comments,omitempty"`
	Items             []LayoutItem `json:"items,omitempty"`
}

// Record builds the EventRecord for a submission once the approval router has
// assigned a package identifier. New records always start unapproved.
func (s EventSubmission) Record(packageID int) *EventRecord {
	return &EventRecord{
		PackageID:         packageID,
		Approved:          ApprovalPending,
		UserEmail:         s.UserEmail,
		ContactEmail:      s.ContactEmail,
		CophEmail:         s.CophEmail,
		EventName:         s.EventName,
		Date:              s.Date,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		RoomNumber:        s.RoomNumber,
		NumPeople:         s.NumPeople,
		CourseTitle:       s.CourseTitle,
		CourseNumber:      s.CourseNumber,
		ReferencesCourse:  s.ReferencesCourse,
		SetupRequired:     s.SetupRequired,
		SetupFunding:      s.SetupFunding,
		FoodDrinkRequired: s.FoodDrinkRequired,
		FoodProvider:      s.FoodProvider,
		AlcoholProvider:   s.AlcoholProvider,
		Comments:          s.Comments,
	}
}
