package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPlaintext_Policy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{name: "valid", password: "stringString2", ok: true},
		{name: "too short", password: "abc1", ok: false},
		{name: "no digit", password: "abcdefgh", ok: false},
		{name: "no letter", password: "12345678", ok: false},
		{name: "empty", password: "", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hashed, err := FromPlaintext(tt.password)
			if !tt.ok {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrWeakPassword)
				assert.Empty(t, hashed)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hashed.String())
		})
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	hashed, err := FromPlaintext("password123")
	require.NoError(t, err)

	assert.True(t, hashed.Verify("password123"))
	assert.False(t, hashed.Verify("password124"))
	assert.False(t, hashed.Verify(""))
}
