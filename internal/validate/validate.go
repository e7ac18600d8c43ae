// Package validate runs field-level checks on submitted forms before any
// external system is touched. Rules are declarative predicates over the whole
// candidate record, so a field can be required only when a sibling says so.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/uiowa-coph/roomres/internal/domain"
)

// FieldError names one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type rule struct {
	field string
	check func(domain.EventSubmission) string
}

var submissionRules = []rule{
	{"userEmail", func(s domain.EventSubmission) string {
		return checkEmail(s.UserEmail, true)
	}},
	{"contactEmail", func(s domain.EventSubmission) string {
		return checkEmail(s.ContactEmail, false)
	}},
	{"cophEmail", func(s domain.EventSubmission) string {
		return checkEmail(s.CophEmail, false)
	}},
	{"eventName", func(s domain.EventSubmission) string {
		if strings.TrimSpace(s.EventName) == "" {
			return "event name is required"
		}
		return ""
	}},
	{"date", func(s domain.EventSubmission) string {
		if _, err := time.Parse("2006-01-02", s.Date); err != nil {
			return "date must be a calendar date in YYYY-MM-DD form"
		}
		return ""
	}},
	{"startTime", func(s domain.EventSubmission) string {
		if !validTimeOfDay(s.StartTime) {
			return "start time is not a recognizable time of day"
		}
		return ""
	}},
	{"endTime", func(s domain.EventSubmission) string {
		if !validTimeOfDay(s.EndTime) {
			return "end time is not a recognizable time of day"
		}
		return ""
	}},
	{"roomNumber", func(s domain.EventSubmission) string {
		if strings.TrimSpace(s.RoomNumber) == "" {
			return "room number is required"
		}
		return ""
	}},
	{"numPeople", func(s domain.EventSubmission) string {
		if s.NumPeople < 1 {
			return "attendee count must be at least 1"
		}
		return ""
	}},
	{"setupMfkProvided", func(s domain.EventSubmission) string {
		if !s.SetupRequired {
			return ""
		}
		if s.SetupFunding == nil {
			return "a funding code is required when setup is requested"
		}
		if s.SetupFunding.Fund == "" || s.SetupFunding.Org == "" || s.SetupFunding.Dept == "" {
			return "funding code needs fund, org and dept"
		}
		return ""
	}},
	{"foodProvider", func(s domain.EventSubmission) string {
		if s.FoodDrinkRequired && strings.TrimSpace(s.FoodProvider) == "" {
			return "a food provider is required when food or drink is served"
		}
		return ""
	}},
	{"alcoholProvider", func(s domain.EventSubmission) string {
		if s.AlcoholProvider != "" && !s.FoodDrinkRequired {
			return "alcohol service requires food and drink service"
		}
		return ""
	}},
}

// Submission checks an event form and returns every field failure at once.
func Submission(sub domain.EventSubmission) []FieldError {
	var errs []FieldError
	for _, r := range submissionRules {
		if msg := r.check(sub); msg != "" {
			errs = append(errs, FieldError{Field: r.field, Message: msg})
		}
	}
	return errs
}

// LayoutItems checks furniture placements against the canvas and the fixed
// furniture set.
func LayoutItems(items []domain.LayoutItem) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ID == "" {
			errs = append(errs, FieldError{Field: field, Message: "item id is required"})
		} else if seen[item.ID] {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("duplicate item id %q", item.ID)})
		} else {
			seen[item.ID] = true
		}
		if !domain.ValidFurnitureKind(item.FurnitureKind) {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("unknown furniture kind %q", item.FurnitureKind)})
		}
		if item.X < 0 || item.X > domain.LayoutCanvasWidth || item.Y < 0 || item.Y > domain.LayoutCanvasHeight {
			errs = append(errs, FieldError{Field: field, Message: "placement is outside the canvas"})
		}
	}
	return errs
}

func checkEmail(v string, required bool) string {
	v = strings.TrimSpace(v)
	if v == "" {
		if required {
			return "email is required"
		}
		return ""
	}
	at := strings.Index(v, "@")
	if at < 1 || at == len(v)-1 || !strings.Contains(v[at+1:], ".") {
		return "not a valid email address"
	}
	return ""
}

var timeLayouts = []string{"3:04 PM", "3:04PM", "15:04"}

func validTimeOfDay(v string) bool {
	v = strings.ToUpper(strings.TrimSpace(v))
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
