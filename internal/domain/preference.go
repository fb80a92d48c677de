package domain

// Category groups notification types for the per-category preference
// toggles.
type Category string

const (
	CategoryNDA         Category = "nda"
	CategoryInvestment  Category = "investment"
	CategoryMessage     Category = "message"
	CategoryPitchUpdate Category = "pitch_update"
	CategorySystem      Category = "system"
	CategoryMarketing   Category = "marketing"
)

// DigestFrequency controls batched rollup delivery. The rollup itself is
// generated outside this pipeline; the preference is stored here.
type DigestFrequency string

const (
	DigestInstant DigestFrequency = "instant"
	DigestHourly  DigestFrequency = "hourly"
	DigestDaily   DigestFrequency = "daily"
	DigestWeekly  DigestFrequency = "weekly"
)

// Preferences is one user's notification configuration. A row is lazily
// created with these defaults on first access: all channels enabled except
// SMS, quiet hours disabled, instant digest.
type Preferences struct {
	UserID int64

	Email bool
	Push  bool
	SMS   bool
	InApp bool

	NDA         bool
	Investment  bool
	Message     bool
	PitchUpdate bool
	System      bool
	Marketing   bool

	QuietHoursEnabled bool
	QuietHoursStart   string // "HH:MM" local time
	QuietHoursEnd     string // "HH:MM" local time
	Timezone          string // IANA name, e.g. "Europe/London"

	Digest DigestFrequency
}

// DefaultPreferences returns the safe defaults used on lazy creation.
func DefaultPreferences(userID int64) Preferences {
	return Preferences{
		UserID:      userID,
		Email:       true,
		Push:        true,
		SMS:         false,
		InApp:       true,
		NDA:         true,
		Investment:  true,
		Message:     true,
		PitchUpdate: true,
		System:      true,
		Marketing:   true,
		Timezone:    "UTC",
		Digest:      DigestInstant,
	}
}

// CategoryAllowed reports whether the per-category toggle permits the given
// category.
func (p Preferences) CategoryAllowed(c Category) bool {
	switch c {
	case CategoryNDA:
		return p.NDA
	case CategoryInvestment:
		return p.Investment
	case CategoryMessage:
		return p.Message
	case CategoryPitchUpdate:
		return p.PitchUpdate
	case CategoryMarketing:
		return p.Marketing
	default:
		return p.System
	}
}

// PreferencesPatch is a structured partial update. Nil fields are left
// untouched; the DAO applies the patch through one fixed parameterized
// update over an enumerated column list.
type PreferencesPatch struct {
	Email *bool
	Push  *bool
	SMS   *bool
	InApp *bool

	NDA         *bool
	Investment  *bool
	Message     *bool
	PitchUpdate *bool
	System      *bool
	Marketing   *bool

	QuietHoursEnabled *bool
	QuietHoursStart   *string
	QuietHoursEnd     *string
	Timezone          *string

	Digest *DigestFrequency
}

// IsZero reports whether the patch carries no changes.
func (p PreferencesPatch) IsZero() bool {
	return p == PreferencesPatch{}
}
