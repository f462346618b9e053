package postgres

import "encoding/json"

// marshalRows/unmarshalRows store RunResult.Rows ([][]any) as a single
// jsonb column rather than a relational shape — row values are
// heterogeneously typed per spec.md's connector output, which maps
// naturally onto JSON but not onto a fixed SQL column set.
func marshalRows(rows [][]any) ([]byte, error) {
	return json.Marshal(rows)
}

func unmarshalRows(data []byte, out *[][]any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
