package mops

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reSpaces  = regexp.MustCompile(`[,\s]`)
	reRocYear = regexp.MustCompile(`(\d+)年`)
)

func toInt64Ptr(s string) *int64 {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return nil
	}
	s = reSpaces.ReplaceAllString(s, "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	return &v
}

func toFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return nil
	}
	s = strings.ReplaceAll(s, "%", "")
	s = reSpaces.ReplaceAllString(s, "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func isAbsent(s string) bool {
	switch s {
	case "", "-", "—", "N/A", "不適用":
		return true
	}
	return false
}

// rocYearFrom extracts the ROC year out of text like "113年年度" or
// "113年第2季". Returns 0 when no year is present.
func rocYearFrom(text string) int {
	match := reRocYear.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	year, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return year
}

// quarterFromPeriod infers the quarter from a dividend period string,
// which names the period boundaries like "113年01/01~113年03/31".
func quarterFromPeriod(text string) int {
	switch {
	case strings.Contains(text, "01/01") || strings.Contains(text, "03/31"):
		return 1
	case strings.Contains(text, "04/01") || strings.Contains(text, "06/30"):
		return 2
	case strings.Contains(text, "07/01") || strings.Contains(text, "09/30"):
		return 3
	case strings.Contains(text, "10/01") || strings.Contains(text, "12/31"):
		return 4
	}
	return 0
}

// leadingDigit reports whether the string starts with an ASCII digit.
// Stock code cells do, header and total rows don't.
func leadingDigit(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}
