package pin

import "encoding/json"

// parseJSONLiteral attempts to decode expr as a JSON scalar or structure.
func parseJSONLiteral(expr string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(expr), &v); err != nil {
		return nil, false
	}
	return v, true
}
