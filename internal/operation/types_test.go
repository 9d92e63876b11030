package operation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_ForceRequiresValue(t *testing.T) {
	_, err := NewRequest("360.005-JV40_Pos", KindForce, nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "value", cfgErr.Field)
}

func TestNewRequest_ValueOnlyForForce(t *testing.T) {
	for _, kind := range []Kind{KindUnforce, KindRead} {
		_, err := NewRequest("360.005-JV40_Pos", kind, Float(1), false)
		assert.ErrorIs(t, err, ErrConfig, "kind %s", kind)
	}
}

func TestNewRequest_Valid(t *testing.T) {
	v := 42.5
	req, err := NewRequest("  360.005-JV40_Pos ", KindForce, &v, true)
	require.NoError(t, err)
	assert.Equal(t, Point("360.005-JV40_Pos"), req.Point)
	require.NotNil(t, req.Value)
	assert.Equal(t, 42.5, *req.Value)

	v = 10
	assert.Equal(t, 42.5, *req.Value, "request must not alias the caller's value")
}

func TestNewRequest_EmptyPoint(t *testing.T) {
	_, err := NewRequest(" ", KindRead, nil, false)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "force", want: KindForce},
		{in: "UNFORCE", want: KindUnforce},
		{in: " read ", want: KindRead},
		{in: "toggle", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPoint_Candidates(t *testing.T) {
	assert.Equal(t, []string{"360.005-JV40_Pos", "JV40_Pos"}, Point("360.005-JV40_Pos").Candidates())
	assert.Equal(t, []string{"JV40_Pos"}, Point("JV40_Pos").Candidates())
	assert.Equal(t, "trailing-", Point("trailing-").ShortName())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "21.5", want: 21.5},
		{in: "21,5", want: 21.5},
		{in: " 60 % ", want: 60},
		{in: "-3,25 °C", want: -3.25},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestOutcome_FailureKindAndCopies(t *testing.T) {
	req, err := NewRequest("360.005-RT40", KindRead, nil, false)
	require.NoError(t, err)

	failed := Failed(req, FailureDialogTimeout, "modal not visible", time.Unix(0, 0))
	assert.Equal(t, FailureDialogTimeout, failed.FailureKind())
	assert.Equal(t, "[DialogTimeout] modal not visible", failed.Message)

	annotated := failed.WithAttempt(3).WithScreenshot("artifacts/x.png")
	assert.Equal(t, 1, failed.Attempt)
	assert.Empty(t, failed.ScreenshotRef)
	assert.Equal(t, 3, annotated.Attempt)
	assert.Equal(t, "artifacts/x.png", annotated.ScreenshotRef)

	ok := Succeeded(req, "read", Float(21), time.Unix(0, 0))
	assert.Empty(t, ok.FailureKind())
	cp := ok.WithAttempt(2)
	*cp.ObservedValue = 99
	assert.Equal(t, 21.0, *ok.ObservedValue)
}
