package handlers

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// BindNestedOrFlat binds the JSON body to obj. Older clients wrap the payload
// in a root key ({"lease": {...}}) while newer ones send the bare object.
// Both forms are accepted, and obj's binding tags are validated either way.
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
	}
	// Restore the body for any later reads
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	payload := body
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if inner, ok := wrapper[key]; ok {
			payload = inner
		}
	}

	if err := json.Unmarshal(payload, obj); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(obj)
}
