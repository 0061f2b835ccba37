package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jeremylongshore/moat/pkg/moat/adapter"
	"github.com/jeremylongshore/moat/pkg/moat/contracts"
	"github.com/jeremylongshore/moat/pkg/moat/intentbridge"
	"github.com/jeremylongshore/moat/pkg/moat/moaterr"
	"github.com/jeremylongshore/moat/pkg/moat/problem"
)

const maxBodyBytes = 1 << 20 // 1MB, matching pkg/api/handlers.go's request cap

// executeRequestBody is the wire shape of POST /execute/{capability_id}.
type executeRequestBody struct {
	Params map[string]interface{} `json:"params"`
	Scope  string                 `json:"scope"`
}

// ReceiptResponse is the gateway's wire shape for a completed execution
// (spec §6): a subset/rename of contracts.Receipt's fields, re-attaching
// Result (kept off Receipt's own JSON encoding since it is not part of the
// persisted audit record, only the live response).
type ReceiptResponse struct {
	ReceiptID       string                 `json:"receipt_id"`
	CapabilityID    string                 `json:"capability_id"`
	TenantID        string                 `json:"tenant_id"`
	Status          contracts.ExecutionStatus `json:"status"`
	Result          map[string]interface{} `json:"result,omitempty"`
	IdempotencyKey  string                 `json:"idempotency_key,omitempty"`
	ExecutedAt      time.Time              `json:"executed_at"`
	LatencyMS       float64                `json:"latency_ms"`
	Cached          bool                   `json:"cached"`
	PolicyRiskClass contracts.RiskClass    `json:"policy_risk_class,omitempty"`
}

func toReceiptResponse(r *contracts.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ReceiptID:       r.ID,
		CapabilityID:    r.CapabilityID,
		TenantID:        r.TenantID,
		Status:          r.Status,
		Result:          r.Result,
		IdempotencyKey:  r.IdempotencyKey,
		ExecutedAt:      r.Timestamp,
		LatencyMS:       r.LatencyMS,
		Cached:          r.Cached,
		PolicyRiskClass: r.PolicyRiskClass,
	}
}

// HandleExecute handles POST /execute/{capability_id}. Tenant identity
// comes from the authenticated caller context (set by RequireTenant),
// never from the request body.
func (g *Gateway) HandleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		problem.WriteBadRequest(w, "method not allowed")
		return
	}
	tenantID, ok := TenantFromContext(r.Context())
	if !ok {
		problem.WriteUnauthorized(w, "missing tenant identity")
		return
	}
	capabilityID := capabilityIDFromPath(r.URL.Path)
	if capabilityID == "" {
		problem.WriteBadRequest(w, "missing capability id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body executeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.WriteBadRequest(w, "invalid request body")
		return
	}
	if body.Scope == "" {
		body.Scope = "execute"
	}

	req := ExecuteRequest{
		Params:         body.Params,
		TenantID:       tenantID,
		Scope:          body.Scope,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}

	receipt, err := g.Execute(r.Context(), capabilityID, req, tenantID, false)
	if err != nil {
		writeExecuteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toReceiptResponse(receipt))
}

func writeExecuteError(w http.ResponseWriter, err error) {
	var merr *moaterr.Error
	if errors.As(err, &merr) {
		switch merr.Kind {
		case moaterr.KindPolicyDenied, moaterr.KindBudgetExceeded:
			problem.WriteForbidden(w, merr.Error(), merr.RuleHit)
		case moaterr.KindCapabilityNotFound:
			problem.WriteNotFound(w, "capability not found")
		case moaterr.KindSchemaInvalid:
			problem.WriteUnprocessable(w, merr.Error())
		case moaterr.KindAdapterError:
			problem.WriteBadGateway(w, "upstream provider error")
		default:
			problem.WriteInternal(w, err)
		}
		return
	}
	var adErr *adapter.Error
	if errors.As(err, &adErr) {
		problem.WriteBadGateway(w, "upstream provider error")
		return
	}
	problem.WriteInternal(w, err)
}

func capabilityIDFromPath(path string) string {
	const prefix = "/execute/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

// inboundIntentBody is the wire shape of POST /intents/inbound, posted by
// the trusted chain indexer (spec §4.8).
type inboundIntentBody struct {
	IntentHash      string                 `json:"intent_hash"`
	ChainID         int64                  `json:"chain_id"`
	ContractAddress string                 `json:"contract_address"`
	BlockNumber     uint64                 `json:"block_number"`
	TxHash          string                 `json:"tx_hash"`
	CapabilityID    string                 `json:"capability_id"`
	Params          map[string]interface{} `json:"params"`
	Sender          string                 `json:"sender"`
}

// HandleInboundIntent handles POST /intents/inbound.
func (g *Gateway) HandleInboundIntent(bridge *intentbridge.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			problem.WriteBadRequest(w, "method not allowed")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var body inboundIntentBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			problem.WriteBadRequest(w, "invalid request body")
			return
		}
		if body.Sender == "" || body.CapabilityID == "" {
			problem.WriteBadRequest(w, "missing sender or capability_id")
			return
		}

		receipt, err := bridge.Accept(r.Context(), intentbridge.InboundIntent{
			IntentHash:      body.IntentHash,
			ChainID:         body.ChainID,
			ContractAddress: body.ContractAddress,
			BlockNumber:     body.BlockNumber,
			TxHash:          body.TxHash,
			CapabilityID:    body.CapabilityID,
			Params:          body.Params,
			Sender:          body.Sender,
		})
		if err != nil {
			if errors.Is(err, intentbridge.ErrSenderNotRegistered) {
				problem.WriteForbidden(w, "sender not registered to any tenant", "sender_not_registered")
				return
			}
			writeExecuteError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"receipt":            toReceiptResponse(receipt),
			"intent_correlation": receipt.Web3,
			"request_id":         receipt.ID,
		})
	}
}

// HandleHealthz handles GET /healthz.
func (g *Gateway) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "moat-gateway"})
}
