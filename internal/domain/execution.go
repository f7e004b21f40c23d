package domain

// ExecState is the stage an execution attempt reached.
type ExecState string

const (
	StateRequested ExecState = "REQUESTED"
	StateQuoted    ExecState = "QUOTED"
	StateSubmitted ExecState = "SUBMITTED"
	StateConfirmed ExecState = "CONFIRMED"
	StateFailed    ExecState = "FAILED"
)

// BuyRequest asks the pipeline to open or add to a position.
type BuyRequest struct {
	AssetID string
	Symbol  string
	Name    string
	Reason  string
}

// ExecutionResult is the structured outcome of a buy or sell attempt.
// Failures are reported here rather than as Go errors.
type ExecutionResult struct {
	AttemptID    string    `json:"attemptId"`
	AssetID      string    `json:"tokenAddress"`
	Side         OrderSide `json:"side"`
	Success      bool      `json:"success"`
	Denied       bool      `json:"denied,omitempty"`
	State        ExecState `json:"state"`
	FailedAt     ExecState `json:"failedAt,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Error        string    `json:"error,omitempty"`
	TradeID      int64     `json:"tradeId,omitempty"`
	TxRef        string    `json:"txRef,omitempty"`
	AmountSol    float64   `json:"amountSol,omitempty"`
	AmountTokens float64   `json:"amountTokens,omitempty"`
	Price        float64   `json:"price,omitempty"`
	PnLSol       float64   `json:"pnlSol,omitempty"`
	PnLPercent   float64   `json:"pnlPercent,omitempty"`
}

// Fail marks the attempt failed at stage. The first cause becomes Reason when none is set.
func (r *ExecutionResult) Fail(stage ExecState, cause error) *ExecutionResult {
	r.Success = false
	r.State = StateFailed
	r.FailedAt = stage
	if cause != nil {
		r.Error = cause.Error()
		if r.Reason == "" {
			r.Reason = cause.Error()
		}
	}
	return r
}
