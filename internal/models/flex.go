package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidFlag  = errors.New("invalid flag value")
)

// FlexInt decodes spreadsheet cells that carry numbers as numbers, strings or blanks.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*i = FlexInt(math.Trunc(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flex int: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*i = 0
		return nil
	}
	*i = FlexInt(n)
	return nil
}

// FlexBool decodes checkbox cells: true/false, "TRUE", "x", "ja", 1, blanks.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*b = false
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*b = f != 0
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flex bool: %w", err)
	}
	parsed, err := ParseFlag(s)
	if err != nil {
		*b = false
		return nil
	}
	*b = FlexBool(parsed)
	return nil
}

// ParseFlag converts a checkbox wire value to a bool.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "x", "ja", "yes", "on":
		return true, nil
	case "false", "0", "", "nein", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidFlag, s)
}
