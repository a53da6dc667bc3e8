package handlers

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type chargePayload struct {
	ChargeType string  `json:"charge_type" binding:"required"`
	Amount     float64 `json:"amount"`
}

func TestBindNestedOrFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		key     string
		body    string
		want    chargePayload
		wantErr bool
	}{
		{
			name: "wrapped in root key",
			key:  "charge",
			body: `{"charge": {"charge_type": "rent", "amount": 900}}`,
			want: chargePayload{ChargeType: "rent", Amount: 900},
		},
		{
			name: "bare object",
			key:  "charge",
			body: `{"charge_type": "water", "amount": 120.5}`,
			want: chargePayload{ChargeType: "water", Amount: 120.5},
		},
		{
			name: "root key absent falls back to bare",
			key:  "charge",
			body: `{"other": 1, "charge_type": "parking", "amount": 50}`,
			want: chargePayload{ChargeType: "parking", Amount: 50},
		},
		{
			name:    "wrapped with wrong field type",
			key:     "charge",
			body:    `{"charge": {"charge_type": "rent", "amount": "x"}}`,
			wantErr: true,
		},
		{
			name:    "root key holds a scalar",
			key:     "charge",
			body:    `{"charge": "rent"}`,
			wantErr: true,
		},
		{
			name:    "required field enforced in wrapped form",
			key:     "charge",
			body:    `{"charge": {"amount": 900}}`,
			wantErr: true,
		},
		{
			name:    "required field enforced in bare form",
			key:     "charge",
			body:    `{"amount": 900}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var got chargePayload
			err := BindNestedOrFlat(c, tt.key, &got)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBindNestedOrFlat_RestoresBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := `{"charge": {"charge_type": "rent", "amount": 900}}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var got chargePayload
	assert.NoError(t, BindNestedOrFlat(c, "charge", &got))

	// A later middleware or bind call can still read the full body
	rest, err := io.ReadAll(c.Request.Body)
	assert.NoError(t, err)
	assert.Equal(t, body, string(rest))
}
