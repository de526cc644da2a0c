package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// DataTypeConfig binds a validation stamp to one data type. Config holds the
// type's serialized configuration.
type DataTypeConfig struct {
	TypeID   string
	Config   json.RawMessage
	Required bool
}

func (c *DataTypeConfig) Clone() *DataTypeConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.Config != nil {
		out.Config = append(json.RawMessage(nil), c.Config...)
	}
	return &out
}

type ValidationStamp struct {
	ID          string
	BranchID    string
	Name        string
	Description string
	DataType    *DataTypeConfig
	Signature   Signature
}

func (s ValidationStamp) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("validation stamp id is required")
	}
	if strings.TrimSpace(s.BranchID) == "" {
		return errors.New("branch id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("validation stamp name is required")
	}
	if s.DataType != nil && strings.TrimSpace(s.DataType.TypeID) == "" {
		return errors.New("data type id is required when a data type is configured")
	}
	return nil
}
