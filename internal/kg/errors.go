package kg

import "strings"

// FormatError maps raw driver errors to actionable messages.
func FormatError(err error) string {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "authentication") || strings.Contains(s, "unauthorized"):
		return "Neo4j authentication failed. Check NEO4J_USER and NEO4J_PASSWORD."
	case strings.Contains(s, "connection") || strings.Contains(s, "refused") || strings.Contains(s, "timeout"):
		return "Cannot connect to Neo4j. Check NEO4J_URI and ensure Neo4j is running."
	case strings.Contains(s, "database"):
		return "Neo4j database error. Check if the database exists and is accessible."
	default:
		return "Neo4j error: " + err.Error()
	}
}
