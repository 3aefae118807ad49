// Package buyer holds the buyer row model, the required-field validation
// policy, and the find-or-create reconciler against the buyers board.
package buyer

import "strings"

// Row is one buyer line of the intake form. Rows are ordered; row 0 is
// mandatory.
type Row struct {
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
}

// Field names one Row attribute for policy definitions and error messages.
type Field string

const (
	FieldFullName   Field = "full_name"
	FieldNationalID Field = "national_id"
	FieldPhone      Field = "phone"
	FieldEmail      Field = "email"
)

// Policy is the required-field set in effect. Which fields are mandatory is
// a product decision that has changed across releases, so it is data here,
// never a hard-coded branch.
type Policy struct {
	Name     string
	Required []Field
}

var (
	// PolicyNameID requires only the identity pair.
	PolicyNameID = Policy{Name: "name_id", Required: []Field{FieldFullName, FieldNationalID}}
	// PolicyFullContact additionally requires both contact channels.
	PolicyFullContact = Policy{Name: "full_contact", Required: []Field{FieldFullName, FieldNationalID, FieldPhone, FieldEmail}}
)

// PolicyFromName resolves a configured policy name, defaulting to name_id.
func PolicyFromName(name string) Policy {
	if name == PolicyFullContact.Name {
		return PolicyFullContact
	}
	return PolicyNameID
}

func (r Row) value(f Field) string {
	switch f {
	case FieldFullName:
		return r.FullName
	case FieldNationalID:
		return r.NationalID
	case FieldPhone:
		return r.Phone
	case FieldEmail:
		return r.Email
	}
	return ""
}

// IsEmpty reports whether every attribute of the row is blank.
func (r Row) IsEmpty() bool {
	return strings.TrimSpace(r.FullName) == "" &&
		strings.TrimSpace(r.NationalID) == "" &&
		strings.TrimSpace(r.Phone) == "" &&
		strings.TrimSpace(r.Email) == ""
}

// Missing returns the required fields the row leaves blank under the policy.
// An empty result on a non-empty row means the row is complete.
func (r Row) Missing(policy Policy) []Field {
	var missing []Field
	for _, f := range policy.Required {
		if strings.TrimSpace(r.value(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
