package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_settlement/internal/settlement"
)

type stubService struct {
	settlement.Service
	res settlement.Result
	err error
	got []settlement.Request
}

func (s *stubService) Settle(_ context.Context, req settlement.Request) (settlement.Result, error) {
	s.got = append(s.got, req)
	return s.res, s.err
}

type published struct {
	subject string
	data    []byte
}

func TestSessionEndedHandler(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name        string
		payload     string
		res         settlement.Result
		err         error
		wantSubject string
		wantCalls   int
	}{
		{
			name:        "settled",
			payload:     `{"sessionId":"s-1","payerId":"p","payeeId":"q","baseAmount":100000}`,
			res:         settlement.Result{Settled: true, SettlementID: &id},
			wantSubject: "simorq.settlement.completed.s-1",
			wantCalls:   1,
		},
		{
			name:        "failed",
			payload:     `{"sessionId":"s-2","payerId":"p","payeeId":"q","baseAmount":100000}`,
			res:         settlement.Result{ErrorKind: settlement.KindInsufficientFunds},
			err:         &settlement.Error{Kind: settlement.KindInsufficientFunds},
			wantSubject: "simorq.settlement.failed.s-2",
			wantCalls:   1,
		},
		{
			name:    "malformed",
			payload: `{"sessionId":`,
		},
		{
			name:      "missing session id",
			payload:   `{"payerId":"p","payeeId":"q","baseAmount":100000}`,
			res:       settlement.Result{ErrorKind: settlement.KindInvalidRequest},
			err:       &settlement.Error{Kind: settlement.KindInvalidRequest},
			wantCalls: 1,
		},
		{
			name:      "session id with wildcard",
			payload:   `{"sessionId":"s.>","payerId":"p","payeeId":"q","baseAmount":100000}`,
			res:       settlement.Result{ErrorKind: settlement.KindInvalidRequest},
			err:       &settlement.Error{Kind: settlement.KindInvalidRequest},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{res: tt.res, err: tt.err}
			var out []published
			h := &sessionEndedHandler{svc: svc, publish: func(s string, d []byte) error {
				out = append(out, published{s, d})
				return nil
			}}

			reply := h.handle(context.Background(), []byte(tt.payload))

			if len(svc.got) != tt.wantCalls {
				t.Fatalf("Settle calls = %d, want %d", len(svc.got), tt.wantCalls)
			}
			var res settlement.Result
			if err := json.Unmarshal(reply, &res); err != nil {
				t.Fatalf("reply is not a result: %v", err)
			}
			if tt.wantSubject == "" {
				if len(out) != 0 || res.ErrorKind != settlement.KindInvalidRequest {
					t.Fatalf("published %v, reply %+v", out, res)
				}
				return
			}
			if len(out) != 1 || out[0].subject != tt.wantSubject {
				t.Fatalf("published %+v, want %s", out, tt.wantSubject)
			}
		})
	}
}
