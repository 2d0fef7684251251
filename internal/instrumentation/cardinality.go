package instrumentation

import "strings"

// Cardinality helpers reduce label values that would otherwise grow with the
// number of users or calendars.

// ExtractUserDomain extracts the domain part from an email address.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// operationKind maps a source operation to the record kind it returns.
func operationKind(operation string) string {
	switch operation {
	case OperationListCalendars:
		return "calendar"
	case OperationFetchEvents:
		return "event"
	case OperationFetchReminders:
		return "reminder"
	}
	return "unknown"
}
