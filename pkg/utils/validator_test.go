package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deliveryInput struct {
	Name  string `json:"deliverer_name" validate:"required,max=32"`
	Phone string `json:"deliverer_phone" validate:"required,phone"`
	Qty   int    `json:"qty" validate:"gt=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		err := ValidateStruct(deliveryInput{Name: "Li", Phone: "13800138000", Qty: 1})
		assert.NoError(t, err)
	})

	t.Run("reports json field names as ValidationError", func(t *testing.T) {
		err := ValidateStruct(deliveryInput{Phone: "12345", Qty: 0})
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeValidation))
		msg := GetErrorMessage(err)
		assert.Contains(t, msg, "deliverer_name is required")
		assert.Contains(t, msg, "deliverer_phone must be a valid phone number")
		assert.Contains(t, msg, "qty must be greater than 0")
	})

	t.Run("landline accepted", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(deliveryInput{Name: "Wang", Phone: "010-88886666", Qty: 2}))
	})
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input     string
		expected  uint64
		wantError bool
	}{
		{"123", 123, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"12.5", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseID(tt.input)
		if tt.wantError {
			assert.Error(t, err, tt.input)
			assert.True(t, IsCode(err, CodeInvalidParam))
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}
}

func TestCamelToSnake(t *testing.T) {
	assert.Equal(t, "order_id", camelToSnake("OrderID"))
	assert.Equal(t, "tracking_no", camelToSnake("TrackingNo"))
	assert.Equal(t, "name", camelToSnake("Name"))
}
