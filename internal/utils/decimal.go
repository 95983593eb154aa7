package utils

import (
	"strconv"
	"strings"
)

var spaceStripper = strings.NewReplacer("\u00A0", "", "\u202F", "", " ", "", "\t", "")

// ParseDecimal parses lab numbers such as "0,5", "1 234,50" or "1.5".
// A plain Go float literal is accepted first; otherwise sep is read as the
// decimal separator. Unlike a lenient scrubber, stray characters ("5 mg",
// "n.d.") make it fail so that text cells stay text, and so do the
// inf/nan words and hex floats strconv would otherwise accept.
func ParseDecimal(s, sep string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !plainNumber(s, sep) {
		return 0, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	s = spaceStripper.Replace(s)
	if sep != "" && sep != "." {
		if strings.Contains(s, ".") && strings.Contains(s, sep) {
			// thousands dots with a decimal comma: 1.234,5
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, sep, ".")
	}
	if s == "" || s == "-" || s == "." {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// plainNumber reports whether s holds only digits, signs, exponent marks,
// separators and spaces, with at least one digit.
func plainNumber(s, sep string) bool {
	digit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("+-.eE \u00A0\u202F\t", r):
		case sep != "" && strings.ContainsRune(sep, r):
		default:
			return false
		}
	}
	return digit
}

// FormatFloat renders like a Python float: integral values keep ".0",
// everything else uses the shortest round-trip form.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.Contains(s, "e") {
		_, exp, _ := strings.Cut(s, "e")
		// exponent notation only from 1e16 up and below 1e-4
		if e, err := strconv.Atoi(exp); err == nil && e >= -4 && e < 16 {
			return trimPoint(strconv.FormatFloat(f, 'f', -1, 64))
		}
		return s
	}
	return trimPoint(s)
}

func trimPoint(s string) string {
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	return s + ".0"
}
