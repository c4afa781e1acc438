package duplicates

// Config holds the tunables of the duplicate check.
type Config struct {
	// trailing window in days, used when the caller does not pass one
	DefaultWindowDays int
	MinWindowDays     int
	MaxWindowDays     int

	// CandidateCap bounds how many requisitions are scored per check.
	CandidateCap int
	// MaxResults is how many ranked duplicates are returned.
	MaxResults int
	// MaxMatchingSignatures is how many overlapping signatures each result lists.
	MaxMatchingSignatures int

	MinMatchRatio float64
}

func DefaultConfig() Config {
	return Config{
		DefaultWindowDays:     30,
		MinWindowDays:         1,
		MaxWindowDays:         365,
		CandidateCap:          200,
		MaxResults:            10,
		MaxMatchingSignatures: 12,
		MinMatchRatio:         0.5,
	}
}

// ClampWindow returns days limited to [MinWindowDays, MaxWindowDays].
// Zero means "not given" and resolves to DefaultWindowDays.
func (c Config) ClampWindow(days int) int {
	if days == 0 {
		days = c.DefaultWindowDays
	}
	if days < c.MinWindowDays {
		return c.MinWindowDays
	}
	if days > c.MaxWindowDays {
		return c.MaxWindowDays
	}
	return days
}

// withDefaults fills zero fields so a partially populated Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultWindowDays <= 0 {
		c.DefaultWindowDays = d.DefaultWindowDays
	}
	if c.MinWindowDays <= 0 {
		c.MinWindowDays = d.MinWindowDays
	}
	if c.MaxWindowDays < c.MinWindowDays {
		c.MaxWindowDays = d.MaxWindowDays
	}
	if c.CandidateCap <= 0 {
		c.CandidateCap = d.CandidateCap
	}
	if c.MaxResults <= 0 {
		c.MaxResults = d.MaxResults
	}
	if c.MaxMatchingSignatures <= 0 {
		c.MaxMatchingSignatures = d.MaxMatchingSignatures
	}
	if c.MinMatchRatio <= 0 || c.MinMatchRatio > 1 {
		c.MinMatchRatio = d.MinMatchRatio
	}
	return c
}
