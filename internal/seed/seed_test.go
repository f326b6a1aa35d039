package seed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket(t *testing.T) {
	// Wednesday
	ts := time.Date(2026, 3, 18, 14, 37, 12, 0, time.UTC)
	tests := []struct {
		w    Window
		want time.Time
	}{
		{Hourly, time.Date(2026, 3, 18, 14, 0, 0, 0, time.UTC)},
		{Daily, time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)},
		{Weekly, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)},
		{Monthly, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.w), func(t *testing.T) {
			assert.Equal(t, tt.want, Bucket(ts, tt.w))
		})
	}
}

func TestBucket_WeekStartsMonday(t *testing.T) {
	sunday := time.Date(2026, 3, 22, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), Bucket(sunday, Weekly))

	monday := time.Date(2026, 3, 23, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC), Bucket(monday, Weekly))
}

func TestBucket_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2026, 3, 18, 2, 0, 0, 0, loc) // 2026-03-17 21:00 UTC
	assert.Equal(t, time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC), Bucket(local, Daily))
}

func TestForTimeWindow_SameBucketSameSeed(t *testing.T) {
	a := ForTimeWindow("ts-1", Hourly, time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC))
	b := ForTimeWindow("ts-1", Hourly, time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC))
	c := ForTimeWindow("ts-1", Hourly, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC))
	d := ForTimeWindow("ts-2", Hourly, time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestForSession(t *testing.T) {
	assert.Equal(t, ForSession("l1", "s1", ""), ForSession("l1", "s1", ""))
	assert.NotEqual(t, ForSession("l1", "s1", ""), ForSession("l1", "s2", ""))
	assert.NotEqual(t, ForSession("l1", "s1", ""), ForSession("l1", "s1", "x"))
}

func TestDerive_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t, Derive("ab", "c"), Derive("a", "bc"))
}

func TestStream_Reproducible(t *testing.T) {
	r1 := Stream(42, "order")
	r2 := Stream(42, "order")
	r3 := Stream(42, "blend")
	var a, b, c []uint64
	for i := 0; i < 8; i++ {
		a = append(a, r1.Uint64())
		b = append(b, r2.Uint64())
		c = append(c, r3.Uint64())
	}
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestProvider_SeedFor(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	p := NewProvider(func() time.Time { return now })

	timed := p.SeedFor(Request{TestSetID: "ts", LearnerID: "a", SessionID: "1", TimeBased: true, Window: Daily})
	other := p.SeedFor(Request{TestSetID: "ts", LearnerID: "b", SessionID: "2", TimeBased: true, Window: Daily})
	require.Equal(t, SourceTimeWindow, timed.Source)
	assert.Equal(t, timed.Value, other.Value)
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), timed.Bucket)

	s1 := p.SeedFor(Request{TestSetID: "ts", LearnerID: "a", SessionID: "1"})
	s2 := p.SeedFor(Request{TestSetID: "ts", LearnerID: "b", SessionID: "2"})
	require.Equal(t, SourceSession, s1.Source)
	assert.NotEqual(t, s1.Value, s2.Value)
	assert.True(t, s1.Bucket.IsZero())
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, Weekly, w)

	_, err = ParseWindow("yearly")
	assert.Error(t, err)
}
