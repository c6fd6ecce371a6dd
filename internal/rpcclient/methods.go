package rpcclient

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/Klingon-tech/powledger/internal/chain"
	"github.com/Klingon-tech/powledger/internal/miner"
	"github.com/Klingon-tech/powledger/internal/rpc"
	"github.com/Klingon-tech/powledger/pkg/block"
)

// Client satisfies miner.JobSource, so a Worker can mine against a remote node.
var _ miner.JobSource = (*Client)(nil)

// ChainInfo calls chain_getInfo.
func (c *Client) ChainInfo() (*rpc.ChainInfoResult, error) {
	var res rpc.ChainInfoResult
	if err := c.Call("chain_getInfo", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Chain calls chain_getChain.
func (c *Client) Chain() (*rpc.ChainResult, error) {
	var res rpc.ChainResult
	if err := c.Call("chain_getChain", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BlockByIndex calls chain_getBlockByIndex.
func (c *Client) BlockByIndex(index uint64) (*block.Block, error) {
	var blk block.Block
	if err := c.Call("chain_getBlockByIndex", rpc.IndexParam{Index: index}, &blk); err != nil {
		return nil, err
	}
	return &blk, nil
}

// BlockByHash calls chain_getBlockByHash.
func (c *Client) BlockByHash(hash string) (*block.Block, error) {
	var blk block.Block
	if err := c.Call("chain_getBlockByHash", rpc.HashParam{Hash: hash}, &blk); err != nil {
		return nil, err
	}
	return &blk, nil
}

// Verify calls chain_verify.
func (c *Client) Verify() (*rpc.VerifyResult, error) {
	var res rpc.VerifyResult
	if err := c.Call("chain_verify", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitTransaction calls tx_submit.
func (c *Client) SubmitTransaction(sender, recipient string, amount float64) (*rpc.TxSubmitResult, error) {
	var res rpc.TxSubmitResult
	params := rpc.TxSubmitParam{Sender: sender, Recipient: recipient, Amount: &amount}
	if err := c.Call("tx_submit", params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Pending calls mempool_getContent.
func (c *Client) Pending() (*rpc.MempoolContentResult, error) {
	var res rpc.MempoolContentResult
	if err := c.Call("mempool_getContent", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetJob calls mining_getJob. The returned job replaces any outstanding one.
func (c *Client) GetJob(minerAddress string) (*miner.Job, error) {
	var job miner.Job
	if err := c.Call("mining_getJob", rpc.MiningGetJobParam{Address: minerAddress}, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// SubmitSolution calls mining_submitSolution against whatever job is outstanding.
func (c *Client) SubmitSolution(nonce uint64) (*miner.Result, error) {
	return c.submit(rpc.MiningSubmitParam{Nonce: &nonce})
}

// SubmitSolutionFor calls mining_submitSolution for a specific job.
// A replaced or missing job is reported as chain.ErrStaleJob or
// chain.ErrNoActiveJob.
func (c *Client) SubmitSolutionFor(jobID uuid.UUID, nonce uint64) (*miner.Result, error) {
	return c.submit(rpc.MiningSubmitParam{Nonce: &nonce, JobID: jobID.String()})
}

func (c *Client) submit(params rpc.MiningSubmitParam) (*miner.Result, error) {
	var res miner.Result
	if err := c.Call("mining_submitSolution", params, &res); err != nil {
		return nil, jobError(err)
	}
	return &res, nil
}

// jobError maps the node's job-unavailable code back to the ledger sentinels,
// using the reason in the error's data member. A missing or unknown reason
// is treated as a stale job.
func jobError(err error) error {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != rpc.CodeJobUnavailable {
		return err
	}
	var data rpc.JobErrorData
	if len(rpcErr.Data) > 0 {
		_ = json.Unmarshal(rpcErr.Data, &data)
	}
	if data.Reason == chain.ReasonNoJob {
		return &jobUnavailable{sentinel: chain.ErrNoActiveJob, rpcErr: rpcErr}
	}
	return &jobUnavailable{sentinel: chain.ErrStaleJob, rpcErr: rpcErr}
}

// jobUnavailable matches both the ledger sentinel and the original *RPCError.
type jobUnavailable struct {
	sentinel error
	rpcErr   *RPCError
}

func (e *jobUnavailable) Error() string { return e.rpcErr.Error() }

func (e *jobUnavailable) Unwrap() []error { return []error{e.sentinel, e.rpcErr} }
