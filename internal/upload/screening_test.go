package upload

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreen(t *testing.T) {
	limits := Limits{
		MaxFileSizeMB:         512,
		MaxDurationSeconds:    600,
		MonthlyTranscodeLimit: 10,
	}

	tests := []struct {
		name       string
		sizeBytes  int64
		used       int
		wantOK     bool
		wantReason string
	}{
		{
			name:      "small file passes",
			sizeBytes: 5 * bytesPerMB,
			wantOK:    true,
		},
		{
			name:       "oversized file rejected",
			sizeBytes:  600 * bytesPerMB,
			wantOK:     false,
			wantReason: "file size",
		},
		{
			name:       "estimated duration over limit",
			sizeBytes:  100 * bytesPerMB, // ~1000s estimated
			wantOK:     false,
			wantReason: "estimated duration",
		},
		{
			name:       "quota exhausted",
			sizeBytes:  5 * bytesPerMB,
			used:       10,
			wantOK:     false,
			wantReason: "quota",
		},
		{
			name:      "quota almost exhausted still passes",
			sizeBytes: 5 * bytesPerMB,
			used:      9,
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Screen(tt.sizeBytes, tt.used, limits)
			assert.Equal(t, tt.wantOK, result.Allowed)
			if tt.wantReason != "" {
				assert.Contains(t, result.Reason, tt.wantReason)
			}
		})
	}
}

func TestScreen_Estimates(t *testing.T) {
	result := Screen(6*bytesPerMB, 0, Limits{})
	assert.InDelta(t, 60.0, result.EstimatedSeconds, 0.01)
	assert.InDelta(t, 1.5, result.EstimatedCents, 0.01)
	assert.True(t, result.Allowed, "zero limits disable screening")
}

func TestIsUnsupportedFormat(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unsupported format message",
			err:  &APIError{StatusCode: 400, Message: "Unsupported format: vp9 in webm"},
			want: true,
		},
		{
			name: "InvalidContent code",
			err:  &APIError{StatusCode: 400, Code: "InvalidContent"},
			want: true,
		},
		{
			name: "media type unrecognized",
			err:  &APIError{StatusCode: 400, Message: "media type unrecognized"},
			want: true,
		},
		{
			name: "rate limit is not a format failure",
			err:  &APIError{StatusCode: 429, Message: "rate limit exceeded"},
			want: false,
		},
		{
			name: "wrapped api error still matches",
			err:  fmt.Errorf("direct upload: %w", &APIError{StatusCode: 400, Message: "codec not supported"}),
			want: true,
		},
		{
			name: "plain error never matches",
			err:  errors.New("unsupported format"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnsupportedFormat(tt.err))
		})
	}
}
