// Package fakeapi is a local stand-in for the calculator service. It serves
// the same five endpoints with in-memory accounts so the web client can be
// developed and tested without the real backend.
package fakeapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"calcweb/internal/domain"
)

const tokenTTL = 12 * time.Hour

var (
	errInvalidCredentials  = errors.New("Invalid credentials")
	errInsufficientBalance = errors.New("Insufficient balance")
	errDivisionByZero      = errors.New("Division by zero")
	errInvalidInput        = errors.New("Invalid input")
	errUnknownOperation    = errors.New("Unknown operation")
	errRecordNotFound      = errors.New("Record not found")
)

type Options struct {
	Users          map[string]string
	InitialBalance decimal.Decimal
	JWTSecret      string
	Catalog        domain.Catalog
	Logger         logrus.FieldLogger
	// Now is used for record timestamps and token expiry.
	Now func() time.Time
}

type account struct {
	passwordHash []byte
	balance      decimal.Decimal
	records      []domain.OperationRecord
}

type Service struct {
	secret  []byte
	catalog domain.Catalog
	log     logrus.FieldLogger
	now     func() time.Time

	mu       sync.Mutex
	accounts map[string]*account
}

type contextKey string

const contextKeyUser contextKey = "user"

func New(opts Options) (*Service, error) {
	if strings.TrimSpace(opts.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if len(opts.Users) == 0 {
		return nil, errors.New("at least one user is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		secret:   []byte(opts.JWTSecret),
		catalog:  opts.Catalog,
		log:      opts.Logger.WithField("component", "fakeapi"),
		now:      opts.Now,
		accounts: make(map[string]*account, len(opts.Users)),
	}
	for name, password := range opts.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", name, err)
		}
		s.accounts[name] = &account{passwordHash: hash, balance: opts.InitialBalance}
	}
	return s, nil
}

func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)

	r.Post("/api/v1/auth/login", s.handleLogin)

	r.Group(func(protected chi.Router) {
		protected.Use(s.requireUser)
		protected.Get("/api/v1/balance", s.handleBalance)
		protected.Post("/api/v1/operations", s.handleOperation)
		protected.Get("/api/v1/records", s.handleRecords)
		protected.Delete("/api/v1/records/{id}", s.handleDeleteRecord)
	})
	return r
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.authenticate(creds); err != nil {
		s.log.WithField("username", creds.Username).Info("rejected login")
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	token, err := s.signToken(creds.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, domain.LoginResponse{Token: token})
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	s.mu.Lock()
	balance := s.accounts[user].balance
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, balanceBody{Balance: amount(balance)})
}

func (s *Service) handleOperation(w http.ResponseWriter, r *http.Request) {
	var req domain.CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidInput.Error())
		return
	}
	resp, err := s.Calculate(userFromRequest(r), req)
	switch {
	case errors.Is(err, errInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, operationBody{Result: resp.Result, NewBalance: amount(resp.NewBalance)})
	}
}

func (s *Service) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, newPageBody(s.Records(userFromRequest(r), domain.RecordsQuery{
		Page:   parseInt(q.Get("page"), 0),
		Size:   parseInt(q.Get("size"), domain.DefaultPageSize),
		Search: q.Get("search"),
	})))
}

func (s *Service) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteRecord(userFromRequest(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Calculate charges the operation cost, computes the result and appends a
// record. Nothing is charged when the operation fails.
func (s *Service) Calculate(user string, req domain.CalculateRequest) (domain.CalculateResponse, error) {
	spec, ok := s.catalog.Lookup(req.Operation)
	if !ok {
		return domain.CalculateResponse{}, errUnknownOperation
	}
	result, err := evaluate(spec, req)
	if err != nil {
		return domain.CalculateResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accounts[user]
	if acct.balance.LessThan(spec.Cost) {
		return domain.CalculateResponse{}, errInsufficientBalance
	}
	acct.balance = acct.balance.Sub(spec.Cost)
	acct.records = append(acct.records, domain.OperationRecord{
		ID:                domain.RecordID(uuid.NewString()),
		Date:              domain.Timestamp{Time: s.now().UTC()},
		OperationType:     string(spec.Type),
		OperationResponse: result.String(),
		Amount:            spec.Cost,
		UserBalance:       acct.balance,
	})
	return domain.CalculateResponse{Result: result, NewBalance: acct.balance}, nil
}

// Records returns one page of the user's history, newest first, filtered by
// a case-insensitive substring of the operation type or response.
func (s *Service) Records(user string, q domain.RecordsQuery) domain.RecordsPage {
	if q.Size <= 0 {
		q.Size = domain.DefaultPageSize
	}
	s.mu.Lock()
	all := append([]domain.OperationRecord(nil), s.accounts[user].records...)
	s.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]domain.OperationRecord, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		rec := all[i]
		if needle == "" ||
			strings.Contains(strings.ToLower(rec.OperationType), needle) ||
			strings.Contains(strings.ToLower(rec.OperationResponse), needle) {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date.Time)
	})

	total := len(matched)
	pages := (total + q.Size - 1) / q.Size
	from := q.Page * q.Size
	if from > total || from < 0 {
		from = total
	}
	to := from + q.Size
	if to > total {
		to = total
	}
	return domain.RecordsPage{
		Content:       matched[from:to],
		TotalPages:    pages,
		TotalElements: int64(total),
	}
}

func (s *Service) DeleteRecord(user, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accounts[user]
	for i, rec := range acct.records {
		if string(rec.ID) == id {
			acct.records = append(acct.records[:i], acct.records[i+1:]...)
			return nil
		}
	}
	return errRecordNotFound
}

func (s *Service) authenticate(creds domain.Credentials) error {
	s.mu.Lock()
	acct, ok := s.accounts[creds.Username]
	s.mu.Unlock()
	if !ok {
		return errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(creds.Password)) != nil {
		return errInvalidCredentials
	}
	return nil
}

func (s *Service) signToken(subject string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": now.Add(tokenTTL).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		if err != nil || !parsed.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		sub, err := parsed.Claims.GetSubject()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		s.mu.Lock()
		_, known := s.accounts[sub]
		s.mu.Unlock()
		if !known {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), sub)))
	})
}

func evaluate(spec domain.OperationSpec, req domain.CalculateRequest) (domain.Result, error) {
	if !req.Input1.Valid {
		return domain.Result{}, errInvalidInput
	}
	a := req.Input1.Value
	var b float64
	if spec.NeedsSecondOperand() {
		if req.Input2 == nil || !req.Input2.Valid {
			return domain.Result{}, errInvalidInput
		}
		b = req.Input2.Value
	}

	switch spec.Type {
	case domain.OperationAddition:
		return domain.NumberResult(a + b), nil
	case domain.OperationSubtraction:
		return domain.NumberResult(a - b), nil
	case domain.OperationMultiplication:
		return domain.NumberResult(a * b), nil
	case domain.OperationDivision:
		if b == 0 {
			return domain.Result{}, errDivisionByZero
		}
		return domain.NumberResult(a / b), nil
	case domain.OperationSquareRoot:
		if a < 0 {
			return domain.Result{}, errInvalidInput
		}
		return domain.NumberResult(math.Sqrt(a)), nil
	case domain.OperationRandomString:
		n := int(a)
		if float64(n) != a || n <= 0 || n > 32 {
			return domain.Result{}, errInvalidInput
		}
		str, err := randomString(n)
		if err != nil {
			return domain.Result{}, err
		}
		return domain.StringResult(str), nil
	default:
		return domain.Result{}, errUnknownOperation
	}
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
