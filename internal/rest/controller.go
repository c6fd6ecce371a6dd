// Package rest exposes the ledger over plain HTTP/JSON routes.
package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Klingon-tech/powledger/internal/chain"
	"github.com/Klingon-tech/powledger/internal/mempool"
	"github.com/Klingon-tech/powledger/internal/miner"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

// Response messages.
const (
	MsgBlockAccepted = "Block validated and added"
	MsgInvalidNonce  = "Invalid nonce, keep trying"
	MsgNoActiveJob   = "No active job. Request a job first."
	MsgStaleJob      = "Job was replaced by a newer one. Request a job again."
)

// Controller binds HTTP routes to the ledger and the mining coordinator.
type Controller struct {
	ledger   *chain.Ledger
	coord    *miner.Coordinator
	validate *validator.Validate
}

// NewController creates a controller over ledger and coord.
func NewController(ledger *chain.Ledger, coord *miner.Coordinator) *Controller {
	return &Controller{
		ledger:   ledger,
		coord:    coord,
		validate: validator.New(),
	}
}

// GetChain returns every sealed block and the chain length.
func (c *Controller) GetChain(ctx echo.Context) error {
	blocks := c.ledger.Blocks()
	return ctx.JSON(http.StatusOK, ChainResponse{Chain: blocks, Length: len(blocks)})
}

// NewTransaction queues a transaction for a future block.
func (c *Controller) NewTransaction(ctx echo.Context) error {
	var req TransactionRequest
	if err := c.bind(ctx, &req); err != nil {
		return err
	}

	index, err := c.ledger.SubmitTransaction(req.Sender, req.Recipient, *req.Amount)
	if errors.Is(err, tx.ErrInvalidTransaction) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, mempool.ErrPoolFull) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(http.StatusCreated, TransactionResponse{
		Message: fmt.Sprintf("Transaction will be added to block %d", index),
		Index:   index,
	})
}

// PendingTransactions lists the pool in arrival order.
func (c *Controller) PendingTransactions(ctx echo.Context) error {
	list, count := c.ledger.PendingTransactions()
	if list == nil {
		list = []*tx.Transaction{}
	}
	return ctx.JSON(http.StatusOK, PendingResponse{PendingTransactions: list, Count: count})
}

// GetJob prepares a candidate block for the requesting miner. It replaces
// any outstanding job.
func (c *Controller) GetJob(ctx echo.Context) error {
	var req JobRequest
	if err := c.bind(ctx, &req); err != nil {
		return err
	}

	job, err := c.coord.GetJob(req.Address)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ctx.JSON(http.StatusOK, JobResponse{
		JobID:       job.ID.String(),
		Difficulty:  job.Difficulty,
		BlockString: job.Preimage,
		Index:       job.Index,
	})
}

// SubmitSolution checks a nonce against the outstanding job.
func (c *Controller) SubmitSolution(ctx echo.Context) error {
	var req SolutionRequest
	if err := c.bind(ctx, &req); err != nil {
		return err
	}

	var (
		res *miner.Result
		err error
	)
	if req.JobID != "" {
		id, parseErr := uuid.Parse(req.JobID)
		if parseErr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid job_id: must be a UUID")
		}
		res, err = c.coord.SubmitSolutionFor(id, *req.Nonce)
	} else {
		res, err = c.coord.SubmitSolution(*req.Nonce)
	}

	switch {
	case errors.Is(err, chain.ErrNoActiveJob):
		return ctx.JSON(http.StatusBadRequest, SolutionResponse{Message: MsgNoActiveJob})
	case errors.Is(err, chain.ErrStaleJob):
		return ctx.JSON(http.StatusConflict, SolutionResponse{Message: MsgStaleJob})
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	case !res.Accepted:
		return ctx.JSON(http.StatusBadRequest, SolutionResponse{Message: MsgInvalidNonce})
	}

	return ctx.JSON(http.StatusOK, SolutionResponse{
		Message: MsgBlockAccepted,
		Hash:    res.Hash,
		Index:   res.Index,
	})
}

// bind decodes the JSON body into req and validates it.
func (c *Controller) bind(ctx echo.Context, req interface{}) error {
	if err := ctx.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("missing or invalid values: %v", err))
	}
	return nil
}
