package domain

import "strings"

// Shape names the payload layout a record was decoded from.
type Shape string

const (
	ShapeUsers    Shape = "users"
	ShapeEnvelope Shape = "envelope"
)

// Record is a decoded list entry. ID is always set; every other field
// defaults to the empty string when the source omits it.
type Record struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Contact  string   `json:"contact,omitempty"`
	Location Location `json:"location"`
	Shape    Shape    `json:"shape"`
}

// Location is the postal part of a user profile.
type Location struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
}

// String joins the non-empty parts with a comma.
func (l Location) String() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{l.Street, l.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// DisplayFields is what a list cell shows for a record.
type DisplayFields struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Display maps a record to its cell fields. Envelope entries use their
// numeric value as secondary text, user profiles use the contact address.
func Display(r Record) DisplayFields {
	out := DisplayFields{
		ID:     r.ID,
		Title:  r.Label,
		Detail: r.Location.String(),
	}
	switch {
	case r.Shape == ShapeEnvelope:
		out.Subtitle = r.ID
	case r.Contact != "":
		out.Subtitle = r.Contact
	}
	return out
}

// DisplayAll renders every record in order.
func DisplayAll(records []Record) []DisplayFields {
	out := make([]DisplayFields, 0, len(records))
	for _, r := range records {
		out = append(out, Display(r))
	}
	return out
}
