package telemetry

import (
	"regexp"
)

// Error messages routinely embed catalog file paths, broker URLs, and
// notification service URLs. Paths leak usernames and service URLs leak
// tokens, so everything is scrubbed before an event leaves the process.
var (
	urlQueryPattern = regexp.MustCompile(`(\w+://[^?\s]+)\?\S*`)
	userinfoPattern = regexp.MustCompile(`(\w+://)[^/@\s]+@`)
	homePathPattern = regexp.MustCompile(`(?:/home/|/Users/|C:\\Users\\)[^/\\\s]+`)

	credentialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`(?i)auth[=:]\S+`),
		regexp.MustCompile(`(?i)password[=:]\S+`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// ScrubMessage removes credentials, URL parameters, and user paths from
// a message before it is attached to a telemetry event.
func ScrubMessage(message string) string {
	scrubbed := userinfoPattern.ReplaceAllString(message, "${1}[REDACTED]@")
	scrubbed = urlQueryPattern.ReplaceAllString(scrubbed, "$1?[REDACTED]")
	scrubbed = homePathPattern.ReplaceAllString(scrubbed, "[HOME]")

	for _, pattern := range credentialPatterns {
		scrubbed = pattern.ReplaceAllString(scrubbed, "[CREDENTIAL_REDACTED]")
	}

	return scrubbed
}
