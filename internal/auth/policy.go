package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 8

var passwordRules = []struct {
	pattern *regexp.Regexp
	missing string
}{
	{regexp.MustCompile(`[a-z]`), "a lowercase letter"},
	{regexp.MustCompile(`[A-Z]`), "an uppercase letter"},
	{regexp.MustCompile(`[0-9]`), "a digit"},
	{regexp.MustCompile(`[^A-Za-z0-9]`), "a symbol"},
}

// ValidatePassword checks the password policy: at least MinPasswordLength
// characters with a lowercase letter, an uppercase letter, a digit and a
// symbol. The returned error wraps ErrPasswordPolicy.
func ValidatePassword(password string) error {
	var problems []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("at least %d characters", MinPasswordLength))
	}
	for _, rule := range passwordRules {
		if !rule.pattern.MatchString(password) {
			problems = append(problems, rule.missing)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: needs %s", ErrPasswordPolicy, strings.Join(problems, ", "))
}

// NormalizeEmail trims and lowercases an email so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeAnswer folds a security answer before hashing. Passwords are
// never normalized.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
