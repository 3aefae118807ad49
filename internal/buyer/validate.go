package buyer

import "regexp"

// ValidNationalID checks the 9-digit weighted mod-10 checksum of a national
// identity number. Shorter inputs are zero-padded on the left; anything
// non-numeric or longer than 9 digits fails.
func ValidNationalID(id string) bool {
	if id == "" || len(id) > 9 {
		return false
	}
	sum := 0
	// Walk the padded 9 digits; odd positions (0-based) double, and
	// two-digit products reduce by their digit sum.
	pad := 9 - len(id)
	for i := 0; i < 9; i++ {
		var d int
		if i >= pad {
			c := id[i-pad]
			if c < '0' || c > '9' {
				return false
			}
			d = int(c - '0')
		}
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\-\s]{6,14}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidPhone checks the phone format. Blank phones are the caller's concern;
// this predicate only judges non-blank input.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidEmail checks the email format.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
