package tui

// Color constants for the geowatch TUI theme
const (
	// Base Colors
	ColorAppBackground  = ""        // Use terminal default background
	ColorCardBackground = "#101B2D" // Dark navy
	ColorBorder         = "#3A4A55" // Grey-blue

	// Text Colors
	ColorPrimaryText   = "#E6EAF2" // Primary text (labels, values, titles)
	ColorSecondaryText = "#B1B8C7" // Secondary text
	ColorDisabledText  = "#6D7383" // Disabled/muted text
	ColorHelpText      = "240"     // Dark grey for help text

	// Accent Colors (Teal theme)
	ColorAccentMain   = "#0EA5A4" // Logo, accent elements, active borders
	ColorAccentBright = "#5EEAD4" // Highlights, the countdown clock

	// State Colors
	ColorError   = "#EF4444" // Failures
	ColorSuccess = "#22C55E" // Checked in, synced
	ColorWarning = "#F59E0B" // Grace timers, pending sync
)
