package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
)

func TestPrompter_Confirm(t *testing.T) {
	est := domain.Estimate{Images: 2, Resolution: domain.Resolution4K, Total: domain.MustDollars("0.60")}

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader(tt.input), &out)
		got, err := p.Confirm(est, domain.MustDollars("4.85"))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "2 image(s) at 4K for $0.60")
		assert.Contains(t, out.String(), "Remaining budget today: $4.85")
		assert.NotContains(t, out.String(), "Warning")
	}
}

func TestPrompter_WarnsWhenOverBudget(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("n\n"), &out)
	_, err := p.Confirm(domain.Estimate{Images: 4, Resolution: domain.Resolution4K, Total: domain.MustDollars("1.20")}, domain.MustDollars("0.50"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Warning")
}
