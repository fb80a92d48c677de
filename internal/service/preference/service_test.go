package preference

import (
	"context"
	"testing"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsQuietHours(t *testing.T) {
	t.Parallel()

	quietPrefs := func(start, end, tz string) domain.Preferences {
		p := domain.DefaultPreferences(1)
		p.QuietHoursEnabled = true
		p.QuietHoursStart = start
		p.QuietHoursEnd = end
		p.Timezone = tz
		return p
	}
	at := func(value string) time.Time {
		parsed, err := time.Parse(time.RFC3339, value)
		require.NoError(t, err)
		return parsed
	}

	testCases := []struct {
		name  string
		prefs domain.Preferences
		now   time.Time
		want  bool
	}{
		{
			name:  "overnight window holds before midnight",
			prefs: quietPrefs("22:00", "06:00", "UTC"),
			now:   at("2026-03-10T23:30:00Z"),
			want:  true,
		},
		{
			name:  "overnight window holds after midnight",
			prefs: quietPrefs("22:00", "06:00", "UTC"),
			now:   at("2026-03-10T05:00:00Z"),
			want:  true,
		},
		{
			name:  "overnight window does not hold midday",
			prefs: quietPrefs("22:00", "06:00", "UTC"),
			now:   at("2026-03-10T12:00:00Z"),
			want:  false,
		},
		{
			name:  "same-day window inclusive at start",
			prefs: quietPrefs("13:00", "14:00", "UTC"),
			now:   at("2026-03-10T13:00:00Z"),
			want:  true,
		},
		{
			name:  "same-day window inclusive at end",
			prefs: quietPrefs("13:00", "14:00", "UTC"),
			now:   at("2026-03-10T14:00:00Z"),
			want:  true,
		},
		{
			name:  "same-day window outside",
			prefs: quietPrefs("13:00", "14:00", "UTC"),
			now:   at("2026-03-10T14:01:00Z"),
			want:  false,
		},
		{
			name: "evaluated in the user's timezone",
			// 23:00 UTC is 18:00 in New York; the window has not started.
			prefs: quietPrefs("22:00", "06:00", "America/New_York"),
			now:   at("2026-01-10T23:00:00Z"),
			want:  false,
		},
		{
			name: "disabled never quiet",
			prefs: func() domain.Preferences {
				p := quietPrefs("22:00", "06:00", "UTC")
				p.QuietHoursEnabled = false
				return p
			}(),
			now:  at("2026-03-10T23:30:00Z"),
			want: false,
		},
		{
			name:  "missing bounds never quiet",
			prefs: quietPrefs("", "", "UTC"),
			now:   at("2026-03-10T23:30:00Z"),
			want:  false,
		},
		{
			name:  "unknown timezone never quiet",
			prefs: quietPrefs("22:00", "06:00", "Mars/Olympus"),
			now:   at("2026-03-10T23:30:00Z"),
			want:  false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsQuietHours(tc.prefs, tc.now))
		})
	}
}

type fakePreferenceRepo struct {
	prefs   domain.Preferences
	updated *domain.PreferencesPatch
}

func (f *fakePreferenceRepo) GetOrCreate(_ context.Context, userID int64) (domain.Preferences, error) {
	if f.prefs.UserID == 0 {
		f.prefs = domain.DefaultPreferences(userID)
	}
	return f.prefs, nil
}

func (f *fakePreferenceRepo) Update(_ context.Context, _ int64, patch domain.PreferencesPatch) error {
	f.updated = &patch
	return nil
}

func TestUpdateValidation(t *testing.T) {
	t.Parallel()

	boolPtr := func(v bool) *bool { return &v }
	strPtr := func(v string) *string { return &v }

	testCases := []struct {
		name    string
		userID  int64
		patch   domain.PreferencesPatch
		wantErr error
	}{
		{
			name:   "valid channel toggle",
			userID: 1,
			patch:  domain.PreferencesPatch{Email: boolPtr(false)},
		},
		{
			name:   "valid quiet hours",
			userID: 1,
			patch: domain.PreferencesPatch{
				QuietHoursEnabled: boolPtr(true),
				QuietHoursStart:   strPtr("22:00"),
				QuietHoursEnd:     strPtr("06:00"),
				Timezone:          strPtr("Europe/London"),
			},
		},
		{
			name:    "invalid user",
			userID:  0,
			patch:   domain.PreferencesPatch{Email: boolPtr(false)},
			wantErr: errs.ErrInvalidParameter,
		},
		{
			name:    "empty patch",
			userID:  1,
			patch:   domain.PreferencesPatch{},
			wantErr: errs.ErrInvalidParameter,
		},
		{
			name:    "malformed start time",
			userID:  1,
			patch:   domain.PreferencesPatch{QuietHoursStart: strPtr("25:00")},
			wantErr: errs.ErrInvalidParameter,
		},
		{
			name:    "malformed end time",
			userID:  1,
			patch:   domain.PreferencesPatch{QuietHoursEnd: strPtr("nope")},
			wantErr: errs.ErrInvalidParameter,
		},
		{
			name:    "unknown timezone",
			userID:  1,
			patch:   domain.PreferencesPatch{Timezone: strPtr("Mars/Olympus")},
			wantErr: errs.ErrInvalidParameter,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &fakePreferenceRepo{}
			svc := NewService(repo)
			err := svc.Update(context.Background(), tc.userID, tc.patch)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, repo.updated, "invalid patches never reach the repository")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, repo.updated)
		})
	}
}

func TestResolveRejectsInvalidUser(t *testing.T) {
	t.Parallel()
	svc := NewService(&fakePreferenceRepo{})
	_, err := svc.Resolve(context.Background(), -5)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}
