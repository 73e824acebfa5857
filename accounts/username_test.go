package accounts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "alice", want: "alice"},
		{name: "trimmed", in: "  alice\t", want: "alice"},
		{name: "fullwidth folds to ascii", in: "ａｌｉｃｅ", want: "alice"},
		{name: "case preserved", in: "Alice", want: "Alice"},
		{name: "empty", in: "", wantErr: true},
		{name: "only spaces", in: "   ", wantErr: true},
		{name: "inner space", in: "al ice", wantErr: true},
		{name: "control char", in: "al\x00ice", wantErr: true},
		{name: "too long", in: strings.Repeat("a", MaxUsernameLen+1), wantErr: true},
		{name: "max length", in: strings.Repeat("a", MaxUsernameLen), want: strings.Repeat("a", MaxUsernameLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUsername(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidUsername)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
