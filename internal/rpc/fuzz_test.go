package rpc

import (
	"encoding/json"
	"testing"
)

// FuzzRPCRequestUnmarshal tests that arbitrary JSON does not panic
// when parsed as a JSON-RPC 2.0 request.
func FuzzRPCRequestUnmarshal(f *testing.F) {
	f.Add([]byte(`{"jsonrpc":"2.0","method":"chain_getInfo","params":null,"id":1}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"chain_getBlockByHash","params":{"hash":"abc"},"id":"test"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"method":"","params":[]}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"mining_submitSolution","params":{"nonce":-1},"id":999}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		_ = req.Method
		_ = req.ID
	})
}

// FuzzSubmitParams checks that arbitrary mining params never panic the
// handler and never seal a block without a valid nonce.
func FuzzSubmitParams(f *testing.F) {
	f.Add([]byte(`{"nonce":0}`))
	f.Add([]byte(`{"nonce":12,"job_id":"not-a-uuid"}`))
	f.Add([]byte(`{"job_id":"00000000-0000-0000-0000-000000000000"}`))
	f.Add([]byte(`[]`))

	env := newHandlerEnv(f, 3)

	f.Fuzz(func(t *testing.T, data []byte) {
		var params interface{}
		if err := json.Unmarshal(data, &params); err != nil {
			return
		}
		before := env.ledger.Length()
		env.server.dispatch(&Request{JSONRPC: "2.0", Method: "mining_getJob", Params: map[string]string{"address": "fuzz"}})
		_, _ = env.server.dispatch(&Request{JSONRPC: "2.0", Method: "mining_submitSolution", Params: params})
		if err := env.ledger.Verify(); err != nil {
			t.Fatalf("chain corrupted after %d -> %d blocks: %v", before, env.ledger.Length(), err)
		}
	})
}
