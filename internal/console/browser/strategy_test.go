package browser

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JV40_Pos", "'JV40_Pos'"},
		{"it's", `"it's"`},
		{`a'b"c`, `concat('a', "'", 'b"c')`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, xpathLiteral(tt.in), tt.in)
	}
}

func TestLocatorQuery(t *testing.T) {
	row := Locator{Pattern: "//tr[contains(normalize-space(.), %s)]", XPath: true}
	assert.Equal(t, "//tr[contains(normalize-space(.), '360.005-JV40_Pos')]", row.Query("360.005-JV40_Pos"))

	fixed := Locator{Pattern: "input[type='checkbox']"}
	assert.Equal(t, "input[type='checkbox']", fixed.Query("ignored"))
}

func TestStrategiesScoping(t *testing.T) {
	s := Strategies{Dialog: []string{"[role='dialog']", "div.modal"}}

	assert.Equal(t, "[role='dialog'], div.modal", s.dialogSelector())
	assert.Equal(t, "[role='dialog'] input[type='number'], div.modal input[type='number']",
		s.inDialog("input[type='number']"))
	assert.Contains(t, s.dialogButton("OK"), "//button[normalize-space(.)='OK']")
}

func TestDefaultStrategiesRanking(t *testing.T) {
	s := DefaultStrategies()

	require.Len(t, s.Input, 2)
	assert.Equal(t, "input[type='number']", s.Input[0])
	require.Len(t, s.Point, 4)
	assert.Equal(t, "row-exact", s.Point[0].Name)
	assert.Equal(t, "text-exact", s.Point[1].Name)
	assert.Equal(t, "row", s.Point[2].Name)
	assert.Equal(t, []string{"OK"}, s.Confirm)
	assert.Equal(t, []string{"Cancel"}, s.Cancel)
}

func TestPointLocatorsRankExactBeforeSubstring(t *testing.T) {
	s := DefaultStrategies()
	const name = "360.005-JV40_Pos"

	for _, loc := range s.Point[:2] {
		q := loc.Query(name)
		assert.Contains(t, q, "='"+name+"'", loc.Name)
		assert.NotContains(t, q, "contains(", loc.Name)
	}
	for _, loc := range s.Point[2:] {
		assert.Contains(t, loc.Query(name), "contains(", loc.Name)
	}
}

func TestDialogPointIsExact(t *testing.T) {
	s := DefaultStrategies()

	q := s.dialogPoint("360.005-JV40_Pos")
	assert.True(t, strings.HasPrefix(q, dialogRoot), q)
	assert.True(t, strings.HasSuffix(q, "[normalize-space(text())='360.005-JV40_Pos']"), q)
	assert.NotContains(t, q, "contains(normalize-space(text())")

	// A neighbour sharing the prefix produces a different literal.
	assert.NotEqual(t, q, s.dialogPoint("360.005-JV40_Pos_SP"))

	var custom Strategies
	assert.Equal(t, q, custom.dialogPoint("360.005-JV40_Pos"), "empty pattern falls back to the default")
}

func TestInputSelector(t *testing.T) {
	s := Strategies{Dialog: []string{"[role='dialog']", "div.modal"}, Input: []string{"input[type='number']", "input[type='text']"}}

	assert.Equal(t,
		"[role='dialog'] input[type='number'], div.modal input[type='number'], [role='dialog'] input[type='text'], div.modal input[type='text']",
		s.inputSelector())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BaseURL: "https://console.local"}
	cfg.applyDefaults()

	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, Viewport{Width: 1400, Height: 900}, cfg.Viewport)
	assert.Equal(t, DefaultArtifactsDir, cfg.ArtifactsDir)
	require.NotNil(t, cfg.Strategies)
	assert.NotNil(t, cfg.Logger)
}

func TestStateFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	saved := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	st := storageState{
		SavedAt: saved,
		Cookies: []storedCookie{
			fromNetwork(&network.Cookie{Name: "sid", Value: "abc", Domain: "console.local", Path: "/", Expires: 1900000000, HTTPOnly: true}),
			fromNetwork(&network.Cookie{Name: "tmp", Value: "x", Domain: "console.local", Path: "/", Expires: -1, Session: true}),
		},
	}

	require.NoError(t, writeState(path, st))
	got, err := readState(path)
	require.NoError(t, err)

	assert.True(t, saved.Equal(got.SavedAt))
	require.Len(t, got.Cookies, 2)

	p := got.Cookies[0].param()
	require.NotNil(t, p.Expires)
	assert.Equal(t, int64(1900000000), p.Expires.Time().Unix())
	assert.True(t, p.HTTPOnly)

	assert.Nil(t, got.Cookies[1].param().Expires, "session cookie keeps no expiry")
}
