package logic

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedValidator(at time.Time) *Validator {
	return &Validator{Now: func() time.Time { return at }}
}

func TestValidateTitle(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"Valid title", "Test Event", false},
		{"Valid long-ish title", "My Awesome Event", false},
		{"Empty title", "", true},
		{"Whitespace only", "   ", true},
		{"Exactly 80 characters", strings.Repeat("a", 80), false},
		{"81 characters", strings.Repeat("a", 81), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateTitle(tt.title)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCapacity(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		capacity string
		wantErr  bool
	}{
		{"Minimum valid", "1", false},
		{"Mid range", "50", false},
		{"Maximum valid", "500", false},
		{"Whitespace trimmed", "  50  ", false},
		{"Empty", "", true},
		{"Whitespace only", "   ", true},
		{"Zero", "0", true},
		{"Negative", "-1", true},
		{"Above maximum", "501", true},
		{"Way above maximum", "1000", true},
		{"Not a number", "abc", true},
		{"Decimal", "12.5", true},
		{"Trailing garbage", "50a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCapacity(tt.capacity)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateWhen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := fixedValidator(now)

	assert.NoError(t, v.ValidateWhen(now.Add(24*time.Hour).UnixMilli()))
	assert.Error(t, v.ValidateWhen(now.Add(-24*time.Hour).UnixMilli()))

	// The boundary instant is not strictly after now.
	assert.Error(t, v.ValidateWhen(now.UnixMilli()))
	assert.NoError(t, v.ValidateWhen(now.UnixMilli()+1))
}

func TestValidateWhen_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := fixedValidator(now)

	target := now.Add(time.Hour).UnixMilli()
	first := v.ValidateWhen(target)
	second := v.ValidateWhen(target)
	assert.Equal(t, first, second)
}

func TestValidateFee(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		fee     string
		wantErr bool
	}{
		{"Blank means free", "", false},
		{"Zero", "0", false},
		{"Positive", "25.50", false},
		{"Trimmed", " 10 ", false},
		{"Negative", "-1", true},
		{"Not a number", "ten", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateFee(tt.fee)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	v := NewValidator()

	err := v.ValidateCapacity("0")
	assert.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "capacity", verr.Field)
}
