package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeBuildJob(t *testing.T) {
	body, err := EncodeBuildJob(42)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"php-censor.build","build_id":42}`, string(body))

	_, err = EncodeBuildJob(0)
	require.Error(t, err)
}

func TestDecodeBuildJob(t *testing.T) {
	job, err := DecodeBuildJob([]byte(`{"type":"php-censor.build","build_id":9999}`))
	require.NoError(t, err)
	require.Equal(t, int64(9999), job.BuildID)
	require.Equal(t, BuildJobType, job.Type)
}

func TestDecodeBuildJob_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"other job type", `{"type":"other.job"}`},
		{"not json", `build 12`},
		{"json array", `[1,2]`},
		{"json null", `null`},
		{"json string", `"php-censor.build"`},
		{"missing type", `{"build_id":1}`},
		{"missing build id", `{"type":"php-censor.build"}`},
		{"zero build id", `{"type":"php-censor.build","build_id":0}`},
		{"string build id", `{"type":"php-censor.build","build_id":"7"}`},
		{"fractional build id", `{"type":"php-censor.build","build_id":1.5}`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBuildJob([]byte(tt.body))
			require.True(t, errors.Is(err, ErrMalformedJob), "got %v", err)
		})
	}
}

func TestCheckTube(t *testing.T) {
	require.ErrorIs(t, CheckTube(DefaultTube), ErrDefaultTube)
	require.ErrorIs(t, CheckTube(""), ErrDefaultTube)
	require.NoError(t, CheckTube("buildcore"))
}

func TestDefaultPutOptions(t *testing.T) {
	opts := DefaultPutOptions(0)
	require.Equal(t, DefaultPriority, opts.Priority)
	require.Equal(t, DefaultDelay, opts.Delay)
	require.Equal(t, DefaultTimeToRun, opts.TimeToRun)

	require.Equal(t, 30*time.Second, DefaultPutOptions(30*time.Second).TimeToRun)
}
