package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeExtractRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		roleID int
		unique bool
	}{
		{"small id, not unique", 1, false},
		{"small id, unique", 1, true},
		{"large id", MaxRoleID, false},
		{"large id, unique", MaxRoleID, true},
		{"mid id", 42, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Encode(tc.roleID, tc.unique)
			assert.Equal(t, tc.roleID, Extract(p))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(1))
	assert.NoError(t, Validate(MaxRoleID))
	assert.Error(t, Validate(0))
	assert.Error(t, Validate(-1))
	assert.Error(t, Validate(MaxRoleID+1))
}
