package shared

import "regexp"

// PhonePattern is the accepted phone number shape: 10 to 15 digits.
var PhonePattern = regexp.MustCompile(`^[0-9]{10,15}$`)
