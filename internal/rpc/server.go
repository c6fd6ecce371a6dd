// Package rpc serves the ledger and the mining coordinator over JSON-RPC 2.0.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/powledger/config"
	"github.com/Klingon-tech/powledger/internal/archive"
	"github.com/Klingon-tech/powledger/internal/chain"
	klog "github.com/Klingon-tech/powledger/internal/log"
	"github.com/Klingon-tech/powledger/internal/miner"
)

// maxBodySize caps a request body. The largest legitimate request is a
// transaction submission.
const maxBodySize = 1 << 20

// shutdownTimeout bounds how long Stop waits for in-flight calls.
const shutdownTimeout = 5 * time.Second

// handlerFunc answers one JSON-RPC method.
type handlerFunc func(s *Server, req *Request) (interface{}, *Error)

// methods is the dispatch table, keyed by JSON-RPC method name.
var methods = map[string]handlerFunc{
	"chain_getInfo":         (*Server).handleChainGetInfo,
	"chain_getChain":        (*Server).handleChainGetChain,
	"chain_getBlockByIndex": (*Server).handleChainGetBlockByIndex,
	"chain_getBlockByHash":  (*Server).handleChainGetBlockByHash,
	"chain_verify":          (*Server).handleChainVerify,
	"tx_submit":             (*Server).handleTxSubmit,
	"mempool_getInfo":       (*Server).handleMempoolGetInfo,
	"mempool_getContent":    (*Server).handleMempoolGetContent,
	"mining_getJob":         (*Server).handleMiningGetJob,
	"mining_submitSolution": (*Server).handleMiningSubmitSolution,
	"archive_getInfo":       (*Server).handleArchiveGetInfo,
	"archive_getBlock":      (*Server).handleArchiveGetBlock,
}

// Server is the JSON-RPC HTTP server of a node.
type Server struct {
	addr    string
	ledger  *chain.Ledger
	coord   *miner.Coordinator
	archive *archive.Archive // nil = archive_* report disabled.
	access  accessPolicy
	server  *http.Server
	logger  zerolog.Logger
	ln      net.Listener
}

// New creates a server for ledger and coord bound to addr once started.
// An optional RPCConfig enables the IP allow-list and CORS; without one
// every client is accepted and no CORS headers are sent.
func New(addr string, ledger *chain.Ledger, coord *miner.Coordinator, rpcCfg ...config.RPCConfig) *Server {
	s := &Server{
		addr:   addr,
		ledger: ledger,
		coord:  coord,
		logger: klog.RPC,
	}
	if len(rpcCfg) > 0 {
		s.access = newAccessPolicy(rpcCfg[0])
	}

	mux := http.NewServeMux()
	mux.Handle("/", s.access.wrap(http.HandlerFunc(s.handleRequest)))

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// SetArchive enables the archive_* methods.
func (s *Server) SetArchive(a *archive.Archive) {
	s.archive = a
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("RPC server listening")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop waits for in-flight calls and closes the listener.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleRequest decodes one JSON-RPC envelope and writes the reply.
// Transport-level failures still answer with a JSON-RPC error object.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	// Numbers stay json.Number so large nonces survive re-encoding in parseParams.
	var req Request
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, `jsonrpc must be "2.0"`)
		return
	}

	start := time.Now()
	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		s.logger.Debug().
			Str("method", req.Method).
			Int("code", rpcErr.Code).
			Str("error", rpcErr.Message).
			Dur("took", time.Since(start)).
			Msg("RPC call failed")
		writeJSON(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}

	s.logger.Trace().
		Str("method", req.Method).
		Dur("took", time.Since(start)).
		Msg("RPC call")
	writeJSON(w, Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

// dispatch routes a request through the method table.
func (s *Server) dispatch(req *Request) (interface{}, *Error) {
	h, ok := methods[req.Method]
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	return h(s, req)
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		klog.RPC.Warn().Err(err).Msg("Write response failed")
	}
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// parseParams decodes the request params into target.
// Missing params are an error; handlers with optional params check first.
func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}

	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
