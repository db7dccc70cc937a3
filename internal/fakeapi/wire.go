package fakeapi

import (
	"github.com/shopspring/decimal"

	"calcweb/internal/domain"
)

// amount encodes money as a bare JSON number, the way the calculator
// service sends it.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

type balanceBody struct {
	Balance amount `json:"balance"`
}

type operationBody struct {
	Result     domain.Result `json:"result"`
	NewBalance amount        `json:"newBalance"`
}

type recordBody struct {
	ID                domain.RecordID  `json:"id"`
	Date              domain.Timestamp `json:"date"`
	OperationType     string           `json:"operationType"`
	OperationResponse string           `json:"operationResponse"`
	Amount            amount           `json:"amount"`
	UserBalance       amount           `json:"userBalance"`
}

type pageBody struct {
	Content       []recordBody `json:"content"`
	TotalPages    int          `json:"totalPages"`
	TotalElements int64        `json:"totalElements"`
}

func newPageBody(page domain.RecordsPage) pageBody {
	out := pageBody{
		Content:       make([]recordBody, 0, len(page.Content)),
		TotalPages:    page.TotalPages,
		TotalElements: page.TotalElements,
	}
	for _, rec := range page.Content {
		out.Content = append(out.Content, recordBody{
			ID:                rec.ID,
			Date:              rec.Date,
			OperationType:     rec.OperationType,
			OperationResponse: rec.OperationResponse,
			Amount:            amount(rec.Amount),
			UserBalance:       amount(rec.UserBalance),
		})
	}
	return out
}
