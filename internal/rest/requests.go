package rest

// TransactionRequest is the body of POST /transactions/new. Amount is a
// pointer so a missing field fails validation while zero is accepted.
type TransactionRequest struct {
	Sender    string   `json:"sender" validate:"required"`
	Recipient string   `json:"recipient" validate:"required"`
	Amount    *float64 `json:"amount" validate:"required"`
}

// JobRequest is the body of POST /mine/get-job.
type JobRequest struct {
	Address string `json:"address" validate:"required"`
}

// SolutionRequest is the body of POST /mine/submit-solution. JobID is
// optional; without it the nonce is checked against the outstanding job.
// JobID is parsed by the handler, which accepts any UUID spelling.
type SolutionRequest struct {
	Nonce *uint64 `json:"nonce" validate:"required"`
	JobID string  `json:"job_id"`
}
