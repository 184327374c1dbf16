package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/worksonmyai/relay/internal/domain"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		count int
		limit int
		halt  bool
	}{
		{"under limit", 1, 3, false},
		{"one below limit", 2, 3, false},
		{"at limit", 3, 3, true},
		{"over limit", 4, 3, true},
		{"zero limit halts immediately", 0, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &domain.Record{IterationCount: tc.count, IterationLimit: tc.limit}
			got := Check(rec)
			assert.Equal(t, tc.halt, got.ShouldHalt)
			if tc.halt {
				assert.Equal(t, ExitReasonMaxIterations, got.Reason)
			}
		})
	}
}
