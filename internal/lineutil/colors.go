package lineutil

// Card spacing.
const (
	SpacingM          = "12px"
	LineSpacingNormal = "6px"
)

// Text colors from the LINE design system.
const (
	ColorText     = "#111111"
	ColorLabel    = "#666666"
	ColorSubtext  = "#777777"
	ColorHeroText = "#FFFFFF"
)

// Announcement level colors.
const (
	ColorInfo        = "#2196F3"
	ColorWarning     = "#FF9800"
	ColorMaintenance = "#F44336"
)
