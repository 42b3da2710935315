package upload

import "fmt"

// Screening happens before any upload attempt and works from file size
// alone; no codec inspection has run at this point, so duration is a
// heuristic: roughly ten seconds of video per megabyte. The estimate gates
// transcoding cost, it is not an accurate measurement.
const (
	estimatedSecondsPerMB = 10.0
	bytesPerMB            = 1024 * 1024
	costCentsPerMinute    = 1.5
)

// Limits configures the pre-upload screening thresholds.
type Limits struct {
	MaxFileSizeMB         int
	MaxDurationSeconds    int
	MonthlyTranscodeLimit int
}

// ScreenResult is the outcome of pre-upload screening. A rejection is a
// job failure, never a transcoding trigger.
type ScreenResult struct {
	Allowed          bool
	Reason           string
	EstimatedSeconds float64
	EstimatedCents   float64
}

// Screen checks the media against the configured limits and the user's
// monthly transcoding quota.
func Screen(sizeBytes int64, monthlyTranscodesUsed int, limits Limits) ScreenResult {
	sizeMB := float64(sizeBytes) / bytesPerMB
	estimatedSeconds := sizeMB * estimatedSecondsPerMB
	estimatedCents := estimatedSeconds / 60 * costCentsPerMinute

	result := ScreenResult{
		EstimatedSeconds: estimatedSeconds,
		EstimatedCents:   estimatedCents,
	}

	if limits.MaxFileSizeMB > 0 && sizeMB > float64(limits.MaxFileSizeMB) {
		result.Reason = fmt.Sprintf("file size %.1f MB exceeds limit of %d MB", sizeMB, limits.MaxFileSizeMB)
		return result
	}

	if limits.MaxDurationSeconds > 0 && estimatedSeconds > float64(limits.MaxDurationSeconds) {
		result.Reason = fmt.Sprintf("estimated duration %.0fs exceeds limit of %ds", estimatedSeconds, limits.MaxDurationSeconds)
		return result
	}

	if limits.MonthlyTranscodeLimit > 0 && monthlyTranscodesUsed >= limits.MonthlyTranscodeLimit {
		result.Reason = fmt.Sprintf("monthly transcoding quota of %d reached", limits.MonthlyTranscodeLimit)
		return result
	}

	result.Allowed = true
	return result
}
