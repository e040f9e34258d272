package models

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Error kinds surfaced by the analysis pipeline. Match them with errors.Is.
var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrDataUnavailable  = errors.New("market data unavailable")
	ErrSymbolNotFound   = fmt.Errorf("%w: symbol not found", ErrDataUnavailable)
	ErrRateLimited      = errors.New("rate limited by provider")
	ErrGenerationFailed = errors.New("generation failed")
	ErrTimeout          = errors.New("stage timed out")
	ErrCacheUnavailable = errors.New("result cache unavailable")
)

// ErrIncompleteEntry is returned by cache backends asked to store a partial entry
var ErrIncompleteEntry = errors.New("incomplete cache entry")

// Pipeline stages, used to label errors and log lines
const (
	StageValidate  = "validate"
	StageFetch     = "fetch"
	StageSummarize = "summarize"
	StageCompose   = "compose"
	StageStore     = "store"
)

// PipelineError records which stage failed for which symbol.
// It unwraps to both its kind and the underlying cause.
type PipelineError struct {
	Kind   error
	Stage  string
	Symbol string
	Err    error
}

// NewPipelineError creates a PipelineError
func NewPipelineError(kind error, stage, symbol string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Symbol: symbol, Err: err}
}

func (e *PipelineError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Stage != "" {
		sb.WriteString(" during ")
		sb.WriteString(e.Stage)
	}
	if e.Symbol != "" {
		sb.WriteString(" for ")
		sb.WriteString(e.Symbol)
	}
	if e.Err != nil && e.Err != e.Kind {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// HTTPStatus maps an error to the status code the gateway returns.
// Client errors (bad or unknown symbol) are 4xx, provider failures 5xx.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidSymbol):
		return http.StatusBadRequest
	case errors.Is(err, ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrDataUnavailable), errors.Is(err, ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns a stable machine-readable code for an error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSymbol):
		return "invalid_symbol"
	case errors.Is(err, ErrSymbolNotFound):
		return "symbol_not_found"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, ErrCacheUnavailable):
		return "cache_unavailable"
	default:
		return "internal_error"
	}
}

const maxSymbolLength = 20

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`)

// NormalizeSymbol trims and upper-cases a ticker and validates it.
// Letters, digits, '.' and '-' are accepted so share classes (BRK.B) and
// exchange-qualified tickers (BHP.AU) pass.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", NewPipelineError(ErrInvalidSymbol, StageValidate, "", errors.New("stock symbol is required"))
	}
	if len(symbol) > maxSymbolLength || !symbolPattern.MatchString(symbol) {
		return "", NewPipelineError(ErrInvalidSymbol, StageValidate, symbol, fmt.Errorf("%q is not a valid ticker", raw))
	}
	return symbol, nil
}
