package client

import (
	"encoding/json"
	"strings"

	"github.com/smallbiznis/posbridge/internal/pos/domain"
)

// EncodeEnvelope renders v as the POS request body: the JSON document itself
// embedded as a JSON string literal. Backslashes are escaped before quotes.
func EncodeEnvelope(v any) ([]byte, error) {
	raw, err := domain.MarshalJSON(v)
	if err != nil {
		return nil, err
	}
	escaped := strings.ReplaceAll(string(raw), `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return []byte(`"` + escaped + `"`), nil
}

// decodeReply unwraps a reply that the POS sent back as a string literal.
func decodeReply(body []byte, out any) error {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return err
		}
		trimmed = inner
	}
	return json.Unmarshal([]byte(trimmed), out)
}
