package core

// Level specifies the severity of an event.
type Level int

const (
	// VerboseLevel is the most detailed severity.
	VerboseLevel Level = iota

	// DebugLevel is for debugging information.
	DebugLevel

	// InformationLevel is for informational messages.
	InformationLevel

	// WarningLevel is for warnings.
	WarningLevel

	// ErrorLevel is for errors.
	ErrorLevel

	// FatalLevel is for fatal errors.
	FatalLevel
)

// String returns the canonical label for the level.
func (l Level) String() string {
	switch l {
	case VerboseLevel:
		return "Verbose"
	case DebugLevel:
		return "Debug"
	case InformationLevel:
		return "Information"
	case WarningLevel:
		return "Warning"
	case ErrorLevel:
		return "Error"
	case FatalLevel:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Short returns the three-letter label used in rendered output.
func (l Level) Short() string {
	switch l {
	case VerboseLevel:
		return "VRB"
	case DebugLevel:
		return "DBG"
	case InformationLevel:
		return "INF"
	case WarningLevel:
		return "WRN"
	case ErrorLevel:
		return "ERR"
	case FatalLevel:
		return "FTL"
	default:
		return "UNK"
	}
}
