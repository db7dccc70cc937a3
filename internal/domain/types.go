package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationAddition       OperationType = "addition"
	OperationSubtraction    OperationType = "subtraction"
	OperationMultiplication OperationType = "multiplication"
	OperationDivision       OperationType = "division"
	OperationSquareRoot     OperationType = "square_root"
	OperationRandomString   OperationType = "random_string"
)

// PageSizes are the page sizes offered by the records view.
var PageSizes = []int{5, 10, 20, 50}

const DefaultPageSize = 10

func ValidPageSize(size int) bool {
	for _, s := range PageSizes {
		if s == size {
			return true
		}
	}
	return false
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type BalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// CalculateRequest is the wire payload of POST /api/v1/operations.
// Input1 is always sent; Input2 is omitted for single-operand operations.
type CalculateRequest struct {
	Operation OperationType `json:"operation"`
	Input1    Operand       `json:"input1"`
	Input2    *Operand      `json:"input2,omitempty"`
}

// Operand is a numeric input that encodes as JSON null when the user's text
// was not a finite number.
type Operand struct {
	Value float64
	Valid bool
}

func NewOperand(v float64) Operand {
	return Operand{Value: v, Valid: true}
}

func (o Operand) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Operand) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*o = Operand{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = NewOperand(v)
	return nil
}

type CalculateResponse struct {
	Result     Result          `json:"result"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// Result is an operation result as returned by the service: a JSON number for
// arithmetic and a JSON string for random_string.
type Result struct {
	raw json.RawMessage
}

func NumberResult(v float64) Result {
	raw, _ := json.Marshal(v)
	return Result{raw: raw}
}

func StringResult(s string) Result {
	raw, _ := json.Marshal(s)
	return Result{raw: raw}
}

func (r Result) IsZero() bool {
	return len(r.raw) == 0 || bytes.Equal(r.raw, []byte("null"))
}

func (r Result) String() string {
	if r.IsZero() {
		return ""
	}
	var s string
	if r.raw[0] == '"' && json.Unmarshal(r.raw, &s) == nil {
		return s
	}
	return string(r.raw)
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return r.raw, nil
}

func (r *Result) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return errors.New("invalid result value")
	}
	r.raw = append(r.raw[:0], data...)
	return nil
}

type OperationRecord struct {
	ID                RecordID        `json:"id"`
	Date              Timestamp       `json:"date"`
	OperationType     string          `json:"operationType"`
	OperationResponse string          `json:"operationResponse"`
	Amount            decimal.Decimal `json:"amount"`
	UserBalance       decimal.Decimal `json:"userBalance"`
}

// RecordID is an opaque record identifier. The service may send it as a JSON
// string or a JSON number; either way the text is kept verbatim.
type RecordID string

func (id RecordID) String() string { return string(id) }

func (id RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("record id must be a string or a number")
	}
	*id = RecordID(n.String())
	return nil
}

type RecordsQuery struct {
	Page   int
	Size   int
	Search string
}

type RecordsPage struct {
	Content       []OperationRecord `json:"content"`
	TotalPages    int               `json:"totalPages"`
	TotalElements int64             `json:"totalElements"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp accepts RFC3339 as well as zone-less ISO-8601 timestamps, which
// are read as UTC.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return errors.New("unrecognized timestamp " + raw)
}

// Display renders the timestamp in its own zone the way an en-US locale would.
func (t Timestamp) Display() string {
	if t.IsZero() {
		return ""
	}
	return t.Format("1/2/2006, 3:04:05 PM")
}
