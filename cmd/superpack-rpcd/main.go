// SPDX-License-Identifier: Apache-2.0

// Command superpack-rpcd serves the packer as a JSON-RPC service over
// websockets: a client sends .vpasm source, the daemon parses, lowers, and
// optimizes every block, and replies with the resulting plan.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sourcegraph/jsonrpc2"
	wsjsonrpc2 "github.com/sourcegraph/jsonrpc2/websocket"
	"github.com/tliron/commonlog"

	"superpack/internal/asm"
	"superpack/internal/vectorize"
)

// optimizeParams is the request payload for the "vectorize/optimizeBlock" method.
type optimizeParams struct {
	Source string             `json:"source"`
	Config *vectorize.Config  `json:"config,omitempty"`
}

// packResult is one committed pack in an optimizeResult.
type packResult struct {
	Kind  string  `json:"kind"`
	Lanes int     `json:"lanes"`
	Cost  float64 `json:"cost"`
}

// blockResult is one basic block's optimization outcome.
type blockResult struct {
	Function string       `json:"function"`
	Block    string       `json:"block"`
	Cost     float64      `json:"cost"`
	Packs    []packResult `json:"packs"`
}

// optimizeResult is the reply payload for the "vectorize/optimizeBlock" method.
type optimizeResult struct {
	Blocks []blockResult `json:"blocks"`
}

type handler struct {
	logger commonlog.Logger
}

func (h *handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "vectorize/optimizeBlock":
		h.handleOptimize(ctx, conn, req)
	default:
		conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("unknown method %q", req.Method),
		})
	}
}

func (h *handler) handleOptimize(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params optimizeParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()})
			return
		}
	}

	result, err := optimizeSource(params.Source, params.Config)
	if err != nil {
		conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()})
		return
	}

	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.logger.Errorf("reply failed: %s", err)
	}
}

func optimizeSource(source string, cfg *vectorize.Config) (*optimizeResult, error) {
	program, err := asm.ParseSource("<rpc>", source)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	fns, err := asm.Lower(program, nil)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	packer := vectorize.NewPacker(cfg, vectorize.ReferenceCostModel{}, nil, vectorize.DefaultOperations(), nil, nil, nil, nil)

	out := &optimizeResult{}
	for _, fn := range fns {
		for _, block := range fn.Blocks {
			plan, err := packer.Optimize(block)
			if err != nil {
				return nil, errors.Wrapf(err, "optimize %s/%s", fn.Name, block.Label)
			}
			br := blockResult{Function: fn.Name, Block: block.Label, Cost: plan.Cost()}
			for _, p := range plan.Packs() {
				br.Packs = append(br.Packs, packResult{Kind: p.Kind.String(), Lanes: len(p.OrderedValues), Cost: p.Cost})
			}
			out.Blocks = append(out.Blocks, br)
		}
	}
	return out, nil
}

func main() {
	addr := flag.String("addr", ":8089", "address to listen on")
	verbosity := flag.Int("v", 0, "commonlog verbosity")
	flag.Parse()

	commonlog.Configure(*verbosity, nil)
	logger := commonlog.GetLogger("superpack.rpcd")

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	http.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Errorf("upgrade failed: %s", err)
			return
		}
		stream := wsjsonrpc2.NewObjectStream(wsConn)
		<-jsonrpc2.NewConn(r.Context(), stream, &handler{logger: logger}).DisconnectNotify()
	})

	logger.Infof("superpack-rpcd listening on %s", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Errorf("server exited: %s", err)
	}
}
