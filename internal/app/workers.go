package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
	"github.com/Alijeyrad/simorq_settlement/pkg/constants"
)

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc         fx.Lifecycle
	NC         *nats.Conn `optional:"true"`
	Settlement settlement.Service
}

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		slog.Info("settlement_worker: NATS disabled, not subscribing")
		return
	}

	var sub *nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			sub, err = startSettlementWorker(p.NC, p.Settlement)
			return err
		},
		OnStop: func(ctx context.Context) error {
			// Connection drain is handled by ProvideNatsClient.
			if sub == nil {
				return nil
			}
			return sub.Drain()
		},
	})
}

// ---------------------------------------------------------------------------
// settlement_worker
// ---------------------------------------------------------------------------

// sessionEndedHandler settles one session-ended event and publishes the
// outcome. It is split from the subscription so it can run without a broker.
type sessionEndedHandler struct {
	svc     settlement.Service
	publish func(subject string, data []byte) error
}

func startSettlementWorker(nc *nats.Conn, svc settlement.Service) (*nats.Subscription, error) {
	h := &sessionEndedHandler{svc: svc, publish: nc.Publish}
	sub, err := nc.QueueSubscribe(constants.SubjectSessionEnded, constants.QueueSettlementWorkers, func(msg *nats.Msg) {
		reply := h.handle(context.Background(), msg.Data)
		if msg.Reply != "" {
			if err := msg.Respond(reply); err != nil {
				slog.Warn("settlement_worker: reply failed", "err", err)
			}
		}
	})
	if err != nil {
		slog.Error("settlement_worker: subscribe session.ended failed", "err", err)
		return nil, err
	}
	return sub, nil
}

func (h *sessionEndedHandler) handle(ctx context.Context, data []byte) []byte {
	var req settlement.Request
	if err := json.Unmarshal(data, &req); err != nil {
		slog.Warn("settlement_worker: malformed session.ended payload", "err", err)
		res := settlement.Result{
			ErrorKind: settlement.KindInvalidRequest,
			Message:   settlement.KindInvalidRequest.UserMessage(),
		}
		body, _ := json.Marshal(res)
		return body
	}

	res, err := h.svc.Settle(ctx, req)
	body, mErr := json.Marshal(res)
	if mErr != nil {
		slog.Error("settlement_worker: encode result failed", "session_id", req.SessionID, "err", mErr)
		return nil
	}

	if !validSubjectToken(req.SessionID) {
		slog.Warn("settlement_worker: session id cannot form a subject, outcome not published",
			"session_id", req.SessionID, "error_kind", res.ErrorKind)
		return body
	}

	subject := constants.SubjectSettlementCompleted + "." + req.SessionID
	if err != nil {
		subject = constants.SubjectSettlementFailed + "." + req.SessionID
	}
	if err := h.publish(subject, body); err != nil {
		slog.Warn("settlement_worker: publish outcome failed", "session_id", req.SessionID, "subject", subject, "err", err)
	}
	return body
}

// validSubjectToken reports whether id fits in one NATS subject token.
func validSubjectToken(id string) bool {
	return id != "" && !strings.ContainsAny(id, ".*> \t\r\n")
}
