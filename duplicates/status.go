package duplicates

import (
	"encoding/json"
	"errors"
	"strings"
)

// Status is the requisition workflow status.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusCompleted  Status = "completed"
	StatusSent       Status = "sent"
	StatusReceived   Status = "received"
	StatusCancelled  Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid requisition status")

var statuses = map[string]Status{
	"registered": StatusRegistered,
	"pending":    StatusPending,
	"approved":   StatusApproved,
	"completed":  StatusCompleted,
	"sent":       StatusSent,
	"received":   StatusReceived,
	"cancelled":  StatusCancelled,
}

func ParseStatus(s string) (Status, error) {
	status, ok := statuses[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func (s Status) Valid() bool {
	_, ok := statuses[string(s)]
	return ok
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("status must be string")
	}
	if str == "" {
		*s = ""
		return nil
	}
	status, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
