package sanitize

// Summary truncates s to at most max bytes, cutting back to the previous
// word boundary when possible. Used for notes previews in list endpoints.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && i < len(s) && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return s[:i] + "…"
}
