package calculator

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"calcweb/internal/domain"
	"calcweb/internal/integrations/calcapi"
)

const (
	msgBalanceFailed   = "Failed to fetch balance"
	msgCalculateFailed = "Calculation failed"
	msgUnknownOp       = "Unknown operation"
)

var ErrUnknownOperation = errors.New("unknown operation")

// API is the part of the calculator service the flow calls.
type API interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	Calculate(ctx context.Context, req domain.CalculateRequest) (domain.CalculateResponse, error)
}

// State is what the calculator view renders.
type State struct {
	Operand1  string
	Operand2  string
	Operation domain.OperationType
	Result    *string
	Error     string
	Balance   decimal.Decimal
}

type Flow struct {
	api     API
	catalog domain.Catalog
	log     logrus.FieldLogger
	state   State
}

func NewFlow(api API, catalog domain.Catalog, log logrus.FieldLogger) *Flow {
	return &Flow{
		api:     api,
		catalog: catalog,
		log:     log,
		state:   State{Operation: catalog.Default(), Balance: decimal.Zero},
	}
}

func (f *Flow) State() State {
	return f.state
}

func (f *Flow) Catalog() domain.Catalog {
	return f.catalog
}

// SetInputs copies the form fields into the flow before Calculate.
func (f *Flow) SetInputs(op domain.OperationType, operand1, operand2 string) {
	f.state.Operation = op
	f.state.Operand1 = operand1
	f.state.Operand2 = operand2
}

// Mount loads the balance shown next to the form. On failure the balance
// stays at its previous value.
func (f *Flow) Mount(ctx context.Context) {
	f.state.Error = ""
	f.RefreshBalance(ctx)
}

// RefreshBalance reloads the balance after a failed submission. An error
// already on display is kept.
func (f *Flow) RefreshBalance(ctx context.Context) {
	balance, err := f.api.Balance(ctx)
	if err != nil {
		f.log.WithError(err).Warn("balance fetch failed")
		if f.state.Error == "" {
			f.state.Error = msgBalanceFailed
		}
		return
	}
	f.state.Balance = balance
}

// Calculate submits the current inputs. The displayed balance is replaced by
// the service's post-operation balance; no arithmetic happens here.
func (f *Flow) Calculate(ctx context.Context) {
	f.state.Error = ""
	f.state.Result = nil

	req, err := BuildRequest(f.catalog, f.state.Operation, f.state.Operand1, f.state.Operand2)
	if err != nil {
		f.state.Error = msgUnknownOp
		return
	}
	resp, err := f.api.Calculate(ctx, req)
	if err != nil {
		f.log.WithError(err).WithField("operation", req.Operation).Info("operation rejected")
		f.state.Error = calcapi.UserMessage(err, msgCalculateFailed)
		return
	}
	result := resp.Result.String()
	f.state.Result = &result
	f.state.Balance = resp.NewBalance
}

// BuildRequest maps form text to the wire payload. input2 is omitted for
// single-operand operations. Blank text becomes 0 and text that is not a
// finite number becomes null, leaving rejection to the service.
func BuildRequest(catalog domain.Catalog, op domain.OperationType, operand1, operand2 string) (domain.CalculateRequest, error) {
	spec, ok := catalog.Lookup(op)
	if !ok {
		return domain.CalculateRequest{}, ErrUnknownOperation
	}
	req := domain.CalculateRequest{
		Operation: spec.Type,
		Input1:    coerce(operand1),
	}
	if spec.NeedsSecondOperand() {
		in2 := coerce(operand2)
		req.Input2 = &in2
	}
	return req, nil
}

// coerce follows numeric form-field semantics: blank is 0, anything that is
// not a finite number is invalid.
func coerce(text string) domain.Operand {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.NewOperand(0)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return domain.Operand{}
	}
	return domain.NewOperand(v)
}
