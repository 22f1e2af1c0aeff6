package domain

import (
	"strings"
	"time"
)

// JobContext is the vacancy the user is currently discussing. A new
// selection replaces it as a whole.
type JobContext struct {
	ID               string `json:"id"`
	Title            string `json:"title,omitempty"`
	Company          string `json:"company,omitempty"`
	Location         string `json:"location,omitempty"`
	Description      string `json:"description,omitempty"`
	Functions        string `json:"functions,omitempty"`
	Responsibilities string `json:"responsibilities,omitempty"`
	SalaryMin        string `json:"salary_min,omitempty"`
	SalaryMax        string `json:"salary_max,omitempty"`
	ExperienceLevel  string `json:"experience_level,omitempty"`
	EmploymentType   string `json:"employment_type,omitempty"`
	Available        bool   `json:"available"`
	AvailableDays    string `json:"available_days,omitempty"`
	AvailableTimes   string `json:"available_times,omitempty"`
	// Loaded is set once the details were fetched from the lookup service.
	Loaded bool `json:"loaded"`
}

// Selected reports whether a job has been chosen.
func (c JobContext) Selected() bool {
	return c.ID != ""
}

// ProfileField names one of the fields required before applying.
type ProfileField string

const (
	FieldFirstName ProfileField = "first_name"
	FieldLastName  ProfileField = "last_name"
	FieldPhone     ProfileField = "phone"
)

// RequiredProfileFields is the order in which missing fields are requested.
var RequiredProfileFields = []ProfileField{FieldFirstName, FieldLastName, FieldPhone}

// Profile holds the contact fields collected from the user.
type Profile struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Get returns the value stored for field.
func (p Profile) Get(field ProfileField) string {
	switch field {
	case FieldFirstName:
		return p.FirstName
	case FieldLastName:
		return p.LastName
	case FieldPhone:
		return p.Phone
	default:
		return ""
	}
}

// With returns a copy of p with field set to value.
func (p Profile) With(field ProfileField, value string) Profile {
	switch field {
	case FieldFirstName:
		p.FirstName = value
	case FieldLastName:
		p.LastName = value
	case FieldPhone:
		p.Phone = value
	}
	return p
}

// Merge returns p with every non-empty field of other applied on top.
func (p Profile) Merge(other Profile) Profile {
	for _, f := range RequiredProfileFields {
		if v := strings.TrimSpace(other.Get(f)); v != "" {
			p = p.With(f, v)
		}
	}
	return p
}

// IsZero reports whether no field is set.
func (p Profile) IsZero() bool {
	return p == Profile{}
}

// Referral is the campaign attribution captured at first contact.
type Referral struct {
	AdID    string `json:"ad_id,omitempty"`
	RefCode string `json:"ref_code,omitempty"`
	Source  string `json:"source,omitempty"`
	// Reset asks ingestion to replace an already stored referral. It is
	// only meaningful on inbound events and is never persisted as true.
	Reset bool `json:"reset,omitempty"`
}

// Empty reports whether r carries no attribution.
func (r *Referral) Empty() bool {
	return r == nil || (r.AdID == "" && r.RefCode == "")
}

// SlotSelection is the interview slot chosen for a job.
type SlotSelection struct {
	JobID      string    `json:"job_id"`
	Day        string    `json:"selected_day"`
	Time       string    `json:"selected_time"`
	SelectedAt time.Time `json:"selected_at"`
}

// Application records a confirmed application to a vacancy.
type Application struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"title,omitempty"`
	Company   string    `json:"company,omitempty"`
	Day       string    `json:"day"`
	Time      string    `json:"time"`
	AppliedAt time.Time `json:"applied_at"`
}
