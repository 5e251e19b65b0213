package wbpilot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportRenderCompleted(t *testing.T) {
	r := RunReport{
		Mode:          ModeUnattended,
		OrdersTotal:   3,
		OrdersDone:    3,
		ArtifactsSent: 8,
		TokenDaysLeft: 150,
	}
	text := r.Render()
	assert.Contains(t, text, "Run completed")
	assert.Contains(t, text, "3 of 3 processed")
	assert.NotContains(t, text, "token")
}

func TestReportRenderNamesShortfall(t *testing.T) {
	r := RunReport{
		Mode:          ModeSupervised,
		OrdersTotal:   2,
		OrdersDone:    2,
		ArtifactsSent: 3,
		FailedFiles:   []string{"1_2", "2_1"},
		TokenDaysLeft: 150,
	}
	text := r.Render()
	assert.Contains(t, text, "Not delivered")
	assert.Contains(t, text, "1_2, 2_1")
}

func TestReportRenderFailure(t *testing.T) {
	r := RunReport{Mode: ModeUnattended, Err: errors.New("workspace unavailable"), TokenDaysLeft: 150}
	text := r.Render()
	assert.Contains(t, text, "Run failed")
	assert.Contains(t, text, "workspace unavailable")
}

func TestReportRenderTokenWarnings(t *testing.T) {
	near := RunReport{Mode: ModeUnattended, TokenDaysLeft: 4}
	assert.Contains(t, near.Render(), "expires in 4 days")

	expired := RunReport{Mode: ModeUnattended, TokenDaysLeft: -3}
	assert.Contains(t, expired.Render(), "token has expired")

	healthy := RunReport{Mode: ModeUnattended, TokenDaysLeft: 120}
	assert.NotContains(t, healthy.Render(), "token")
}
