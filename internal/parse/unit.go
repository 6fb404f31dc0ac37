package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	unitRe   = regexp.MustCompile(`^([A-Za-z0-9]+)\s*-\s*(\d+)$`)
	spacesRe = regexp.MustCompile(`\s+`)
)

const codeChars = 3

// UnitLabel is a unit label split into its studio code and sequence number.
// "NOI-001" is Code "NOI", Seq 1.
type UnitLabel struct {
	Code string
	Seq  int
}

// String renders the canonical label: upper-case code, dash, three-digit sequence.
func (u UnitLabel) String() string {
	return fmt.Sprintf("%s-%03d", u.Code, u.Seq)
}

// ParseUnit extracts the studio code and sequence from a raw unit label.
// Surrounding space and letter case are ignored.
func ParseUnit(raw string) (UnitLabel, error) {
	s := strings.TrimSpace(raw)
	m := unitRe.FindStringSubmatch(s)
	if m == nil {
		return UnitLabel{}, fmt.Errorf("unable to parse unit label: %q", raw)
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil || seq <= 0 {
		return UnitLabel{}, fmt.Errorf("invalid unit sequence in %q", raw)
	}
	return UnitLabel{Code: strings.ToUpper(m[1]), Seq: seq}, nil
}

// UnitLabels lists the labels of a studio holding n units, in order.
func UnitLabels(code string, n int) []string {
	code = strings.ToUpper(strings.TrimSpace(code))
	labels := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		labels = append(labels, UnitLabel{Code: code, Seq: i}.String())
	}
	return labels
}

// NormalizeUnit returns the canonical label for raw if it names one of the n
// units of the studio with the given code.
func NormalizeUnit(raw, code string, n int) (string, error) {
	u, err := ParseUnit(raw)
	if err != nil {
		return "", err
	}
	if u.Code != strings.ToUpper(strings.TrimSpace(code)) {
		return "", fmt.Errorf("unit %q does not belong to studio %q", raw, code)
	}
	if u.Seq > n {
		return "", fmt.Errorf("unit %q out of range, studio %q has %d units", raw, code, n)
	}
	return u.String(), nil
}

// StudioCode derives a short code from a studio name when the catalog has none:
// the first three letters or digits, upper-cased. "Noise Lab" is "NOI".
func StudioCode(name string) string {
	s := spacesRe.ReplaceAllString(strings.TrimSpace(name), "")
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= codeChars {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
