package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCurrency(t *testing.T) {
	cases := map[string]string{
		"0":           "$0.00",
		"2":           "$2.00",
		"1234.5":      "$1,234.50",
		"1234567.891": "$1,234,567.89",
		"-3":          "-$3.00",
		"999.999":     "$1,000.00",
		"-0.001":      "$0.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCurrency(decimal.RequireFromString(in)), "input %s", in)
	}
}

func TestCalculateRequest_OmitsSecondOperand(t *testing.T) {
	raw, err := json.Marshal(CalculateRequest{Operation: OperationSquareRoot, Input1: NewOperand(9)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"operation":"square_root","input1":9}`, string(raw))

	raw, err = json.Marshal(CalculateRequest{Operation: OperationAddition, Input2: &Operand{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"operation":"addition","input1":null,"input2":null}`, string(raw))

	var decoded CalculateRequest
	require.NoError(t, json.Unmarshal([]byte(`{"operation":"division","input1":6,"input2":null}`), &decoded))
	assert.Equal(t, NewOperand(6), decoded.Input1)
	assert.Nil(t, decoded.Input2, "null leaves an optional operand unset")

	decoded = CalculateRequest{Input1: NewOperand(1)}
	require.NoError(t, json.Unmarshal([]byte(`{"operation":"addition","input1":null,"input2":4}`), &decoded))
	assert.False(t, decoded.Input1.Valid)
	require.NotNil(t, decoded.Input2)
	assert.Equal(t, NewOperand(4), *decoded.Input2)
}

func TestRecordID_AcceptsStringsAndNumbers(t *testing.T) {
	cases := map[string]RecordID{
		`{"id":"b7c1-9"}`:         "b7c1-9",
		`{"id":42}`:               "42",
		`{"id":9007199254740993}`: "9007199254740993",
		`{"id":null}`:             "",
	}
	for raw, want := range cases {
		var rec OperationRecord
		require.NoError(t, json.Unmarshal([]byte(raw), &rec), raw)
		assert.Equal(t, want, rec.ID, raw)
	}

	var rec OperationRecord
	assert.Error(t, json.Unmarshal([]byte(`{"id":{"x":1}}`), &rec))

	raw, err := json.Marshal(OperationRecord{ID: "42"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"42"`)
}

func TestCalculateResponse_DecodesNumberAndStringResults(t *testing.T) {
	var numeric CalculateResponse
	require.NoError(t, json.Unmarshal([]byte(`{"result":4.5,"newBalance":95.25}`), &numeric))
	assert.Equal(t, "4.5", numeric.Result.String())
	assert.True(t, numeric.NewBalance.Equal(decimal.RequireFromString("95.25")))

	var text CalculateResponse
	require.NoError(t, json.Unmarshal([]byte(`{"result":"aB3xZ","newBalance":90}`), &text))
	assert.Equal(t, "aB3xZ", text.Result.String())

	var missing CalculateResponse
	require.NoError(t, json.Unmarshal([]byte(`{"newBalance":90}`), &missing))
	assert.True(t, missing.Result.IsZero())
}

func TestTimestamp_AcceptsZonelessAndRFC3339(t *testing.T) {
	var rec OperationRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":"r1","date":"2024-03-05T14:07:09","amount":3,"userBalance":97}`), &rec))
	assert.Equal(t, time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC), rec.Date.Time)
	assert.Equal(t, "3/5/2024, 2:07:09 PM", rec.Date.Display())

	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-03-05T14:07:09.123456Z"}`), &rec))
	assert.Equal(t, 123456000, rec.Date.Nanosecond())

	assert.Error(t, json.Unmarshal([]byte(`{"date":"yesterday"}`), &rec))
}

func TestCatalog(t *testing.T) {
	catalog, err := NewCatalog([]OperationSpec{
		{Type: OperationAddition, Label: "Addition (+)", Cost: decimal.NewFromInt(2), Operands: 2},
		{Type: OperationSquareRoot, Cost: decimal.NewFromInt(4), Operands: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, OperationAddition, catalog.Default())

	spec, ok := catalog.Lookup(OperationSquareRoot)
	require.True(t, ok)
	assert.Equal(t, "square_root", spec.Label)

	_, ok = catalog.Lookup(OperationDivision)
	assert.False(t, ok)

	_, err = NewCatalog([]OperationSpec{{Type: "cube", Operands: 3}})
	assert.Error(t, err)
	_, err = NewCatalog(nil)
	assert.Error(t, err)
}

func TestValidPageSize(t *testing.T) {
	for _, size := range []int{5, 10, 20, 50} {
		assert.True(t, ValidPageSize(size))
	}
	assert.False(t, ValidPageSize(15))
	assert.False(t, ValidPageSize(0))
}
