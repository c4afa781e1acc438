package utils

import "encoding/json"

// MarshalToJSON renders input for audit columns; failures give "".
func MarshalToJSON[T any](input T) string {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(jsonData)
}

func UnmarshalFromJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}
