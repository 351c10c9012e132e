package solve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bufbuild/connect-go"

	"github.com/trisolve/trisolve/internal/observability"
	"github.com/trisolve/trisolve/internal/rpc"
	"github.com/trisolve/trisolve/internal/rpc/connectjson"
)

const ConnectSolveProcedure = "/connect.solve.v1.SolveService/Solve"

// NewConnectHandler builds a Connect bidi stream handler for Solve.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectSolveHandler{runner: runner, metrics: metrics}
	return ConnectSolveProcedure, connect.NewBidiStreamHandler(ConnectSolveProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectSolveHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectSolveHandler) handle(ctx context.Context, stream *connect.BidiStream[rpc.SolveStreamRequest, rpc.SolveEvent]) error {
	if h.metrics != nil {
		h.metrics.IncActiveSessions("connect")
		defer h.metrics.DecActiveSessions("connect")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.Receive()
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "receive_first")
		}
		return err
	}
	if first == nil || first.Solve == nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "missing_solve")
		}
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include solve payload"))
	}

	req := *first.Solve
	if req.Problem == "" {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "empty_problem")
		}
		return connect.NewError(connect.CodeInvalidArgument, errors.New("problem is required"))
	}
	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	if req.CorrelationID == "" {
		req.CorrelationID = req.SessionID + "-corr"
	}

	// Listen for cancellation messages from the client.
	go func() {
		for {
			msg, recvErr := stream.Receive()
			if recvErr != nil {
				if h.metrics != nil && !errors.Is(recvErr, context.Canceled) {
					h.metrics.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	httpReq := &http.Request{}
	httpReq = httpReq.WithContext(ctx)

	events, runErr := h.runner.Run(httpReq, req)
	if runErr != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "runner_error")
		}
		return connect.NewError(connect.CodeInternal, runErr)
	}

	for ev := range events {
		if err := stream.Send(&ev); err != nil {
			if h.metrics != nil {
				h.metrics.RecordTransportError("connect", "send")
			}
			return err
		}
	}
	return nil
}
