package domain

import "encoding/json"

// LooseString decodes from a JSON string or number. Catalog ids and genre
// ids arrive in either form depending on the client.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = LooseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = LooseString(n.String())
	return nil
}
