package streamchat

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so the app
// automatically matches any color scheme. A negative index means no color.
type Theme struct {
	UserMsg   int // User message prompt marker
	Assistant int // Assistant message label
	Error     int // Error messages
	Muted     int // Status bar, placeholders, code gutters
	CodeBg    int // Code block background
	Accent    int // Headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:   4,
		Assistant: 2,
		Error:     1,
		Muted:     8,
		CodeBg:    0,
		Accent:    5,
	}
}
