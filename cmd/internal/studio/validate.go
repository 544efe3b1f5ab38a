package studio

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MinNumber      = 1
	MaxNumber      = 999
	YearWindow     = 5
	MaxRepoNameLen = 255
)

var repoNameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateNumber parses a studio number in [MinNumber, MaxNumber].
func ValidateNumber(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil || strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-") {
		return 0, ValidationError{Field: "number", Msg: "Studio number must be a positive number"}
	}
	if n < MinNumber {
		return 0, ValidationError{Field: "number", Msg: "Studio number must be greater than 0"}
	}
	if n > MaxNumber {
		return 0, ValidationError{Field: "number", Msg: "Studio number must be less than 1000"}
	}
	return n, nil
}

// YearRange returns the selectable years relative to now, newest first.
func YearRange(now time.Time) []int {
	cur := now.UTC().Year()
	out := make([]int, 0, YearWindow+1)
	for y := cur; y >= cur-YearWindow; y-- {
		out = append(out, y)
	}
	return out
}

// ValidateYear parses a year within [current-YearWindow, current].
func ValidateYear(raw string, now time.Time) (int, error) {
	raw = strings.TrimSpace(raw)
	y, err := strconv.Atoi(raw)
	if err != nil || strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-") {
		return 0, ValidationError{Field: "year", Msg: "Year must be a number"}
	}
	cur := now.UTC().Year()
	if y < cur-YearWindow || y > cur {
		return 0, ValidationError{Field: "year", Msg: fmt.Sprintf("Year must be between %d and %d", cur-YearWindow, cur)}
	}
	return y, nil
}

// NormalizeRepoName accepts "repo", "owner/repo" or a GitHub URL and returns the bare repository name.
func NormalizeRepoName(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ValidationError{Field: "repo", Msg: "Repository name is required"}
	}
	if len(s) > MaxRepoNameLen {
		return "", ValidationError{Field: "repo", Msg: fmt.Sprintf("Repository name must be at most %d characters", MaxRepoNameLen)}
	}

	for _, p := range []string{"https://", "http://", "www."} {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.Trim(s, "/")
	if parts := strings.Split(s, "/"); len(parts) >= 2 {
		s = parts[1]
	}
	s = strings.TrimSuffix(s, ".git")

	if s == "" || !repoNameRE.MatchString(s) {
		return "", ValidationError{Field: "repo", Msg: "Repository name may only contain letters, digits, '.', '-' and '_'"}
	}
	return s, nil
}
