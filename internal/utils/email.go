package utils

import (
	"strings"
)

// UniqueEmails drops blank and repeated addresses, comparing case
// insensitively and keeping the first spelling.
func UniqueEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	unique := make([]string, 0, len(emails))

	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		key := strings.ToLower(email)
		if _, exists := seen[key]; !exists {
			seen[key] = struct{}{}
			unique = append(unique, email)
		}
	}

	return unique
}
