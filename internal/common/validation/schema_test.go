package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput_UpdateStatus(t *testing.T) {
	tests := []struct {
		name      string
		input     map[string]interface{}
		wantValid bool
		wantField string
		wantCode  string
	}{
		{
			name:      "valid",
			input:     map[string]interface{}{"applicationId": "app-1", "status": "Interviewing"},
			wantValid: true,
		},
		{
			name:      "status outside enum",
			input:     map[string]interface{}{"applicationId": "app-1", "status": "Ghosted"},
			wantField: "status",
			wantCode:  "enum",
		},
		{
			name:      "missing application id",
			input:     map[string]interface{}{"status": "Applied"},
			wantField: "(root)",
			wantCode:  "required",
		},
		{
			name:      "empty application id",
			input:     map[string]interface{}{"applicationId": "", "status": "Applied"},
			wantField: "applicationId",
			wantCode:  "string_gte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateInput(tt.input, UpdateStatusInputSchema())
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.Empty(t, res.Errors)
				assert.Empty(t, res.Error())
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.wantField, res.Errors[0].Field)
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
			assert.NotEmpty(t, res.Error())
		})
	}
}

func TestValidateInput_ListApplications(t *testing.T) {
	assert.True(t, ValidateInput(map[string]interface{}{"userId": "user_2abc"}, ListApplicationsInputSchema()).Valid)
	assert.False(t, ValidateInput(map[string]interface{}{}, ListApplicationsInputSchema()).Valid)
	assert.False(t, ValidateInput(map[string]interface{}{"userId": 42}, ListApplicationsInputSchema()).Valid)
}
