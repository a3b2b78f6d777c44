package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradingfloor/exchange-core/internal/constraints"
	"github.com/tradingfloor/exchange-core/internal/coordinator"
	"github.com/tradingfloor/exchange-core/internal/fanout"
	"github.com/tradingfloor/exchange-core/internal/obsv"
	"github.com/tradingfloor/exchange-core/internal/orders"
	"github.com/tradingfloor/exchange-core/internal/pipeline"
	"github.com/tradingfloor/exchange-core/internal/venue"
)

// Envelope is the uniform response wrapper every handler writes, win or
// lose: exactly one of Data or Error is populated on a terminal response.
type Envelope struct {
	Success   bool         `json:"success"`
	RequestID string       `json:"request_id"`
	OrderID   string       `json:"order_id,omitempty"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// API holds every dependency an HTTP handler needs, wired once in main and
// never reconstructed per-request.
type API struct {
	venue       *venue.Exchange
	pipeline    *pipeline.Pipeline
	coordinator *coordinator.Coordinator
	hub         *fanout.Hub
	metrics     *obsv.Collector
	logger      *zap.Logger
}

func NewAPI(ex *venue.Exchange, p *pipeline.Pipeline, coord *coordinator.Coordinator, hub *fanout.Hub, metrics *obsv.Collector, logger *zap.Logger) *API {
	return &API{venue: ex, pipeline: p, coordinator: coord, hub: hub, metrics: metrics, logger: logger}
}

// RegisterRoutes wires every handler onto a router, in the teacher pack's
// RegisterRoutes(r *mux.Router) style.
func (a *API) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/teams", a.handleRegisterTeam).Methods("POST")
	r.HandleFunc("/orders", a.authenticated(a.handleSubmitOrder)).Methods("POST")
	r.HandleFunc("/orders/{id}", a.authenticated(a.handleCancelOrder)).Methods("DELETE")
	r.HandleFunc("/orders", a.authenticated(a.handleOpenOrders)).Methods("GET")
	r.HandleFunc("/positions", a.authenticated(a.handlePositions)).Methods("GET")
	r.HandleFunc("/ws", a.handleWebSocket).Methods("GET")
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler()).Methods("GET")
	}
}

type teamCtxKey struct{}

// authenticated resolves the caller's API key from the X-API-Key header and
// stashes the team on the request context before calling next. Missing or
// unknown keys short-circuit with 401.
func (a *API) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "", "UNAUTHORIZED", "missing X-API-Key header")
			return
		}
		team, err := a.venue.Teams.Authenticate(key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "", "UNAUTHORIZED", "invalid api key")
			return
		}
		ctx := context.WithValue(r.Context(), teamCtxKey{}, team)
		next(w, r.WithContext(ctx))
	}
}

func teamFromContext(r *http.Request) *venue.Team {
	t, _ := r.Context().Value(teamCtxKey{}).(*venue.Team)
	return t
}

// registerTeamRequest is the /teams request body.
type registerTeamRequest struct {
	TeamName string `json:"team_name"`
	Role     string `json:"role"`
}

func (a *API) handleRegisterTeam(w http.ResponseWriter, r *http.Request) {
	var req registerTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_ROLE", "malformed request body")
		return
	}
	role, err := constraints.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_ROLE", err.Error())
		return
	}
	team, err := a.venue.Teams.Register(req.TeamName, role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "TEAM_NAME_TAKEN", err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, Envelope{
		Success: true,
		Data: map[string]interface{}{
			"team_id":    team.ID,
			"team_name":  team.Name,
			"role":       team.Role.String(),
			"api_key":    team.APIKey,
			"created_at": team.CreatedAt,
		},
	})
}

// submitOrderRequest is the /orders POST body.
type submitOrderRequest struct {
	InstrumentID  string `json:"instrument_id"`
	Side          string `json:"side"`
	Quantity      int64  `json:"quantity"`
	Price         string `json:"price,omitempty"`
	OrderType     string `json:"order_type"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

func (a *API) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	team := teamFromContext(r)

	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_QUANTITY", "malformed request body")
		return
	}

	if _, ok := a.venue.Instrument(req.InstrumentID); !ok {
		writeError(w, http.StatusBadRequest, "", "INVALID_INSTRUMENT", "unknown instrument")
		return
	}
	side, err := orders.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_SIDE", err.Error())
		return
	}
	orderType, err := orders.ParseOrderType(req.OrderType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "INVALID_QUANTITY", err.Error())
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "", "INVALID_QUANTITY", "quantity must be positive")
		return
	}

	var price decimal.Decimal
	if orderType == orders.OrderTypeLimit {
		if req.Price == "" {
			writeError(w, http.StatusBadRequest, "", "MISSING_PRICE", "limit orders require price")
			return
		}
		price, err = decimal.NewFromString(req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, "", "INVALID_PRICE", err.Error())
			return
		}
	}

	now := time.Now().UTC()
	o := &orders.Order{
		ID:             newOrderID(),
		ClientOrderID:  req.ClientOrderID,
		InstrumentID:   req.InstrumentID,
		TeamID:         team.ID,
		Side:           side,
		Type:           orderType,
		Price:          price,
		Quantity:       req.Quantity,
		RemainingQty:   req.Quantity,
		SubmissionTime: now,
		Status:         orders.OrderStatusPendingNew,
	}

	requestID, err := a.pipeline.SubmitOrder(team.ID, team.Role, o)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "", "SERVICE_UNAVAILABLE", err.Error())
		return
	}

	result, err := a.coordinator.Wait(r.Context(), requestID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, requestID, "INTERNAL_ERROR", err.Error())
		return
	}
	writeOrderResult(w, requestID, result, a.venue, team.ID)
}

func (a *API) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	team := teamFromContext(r)
	orderID := mux.Vars(r)["id"]
	instrumentID := r.URL.Query().Get("instrument_id")
	if instrumentID == "" {
		writeError(w, http.StatusBadRequest, "", "CANCEL_FAILED", "instrument_id query parameter required")
		return
	}

	owner, ok := a.venue.OrderOwner(instrumentID, orderID)
	if !ok || owner != team.ID {
		// Same generic failure for not-found and unauthorized, per the
		// error taxonomy: cancel must not leak whether the order exists.
		writeError(w, http.StatusBadRequest, "", "CANCEL_FAILED", "order not cancellable")
		return
	}

	requestID, err := a.pipeline.SubmitCancel(team.ID, instrumentID, orderID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "", "SERVICE_UNAVAILABLE", err.Error())
		return
	}

	result, err := a.coordinator.Wait(r.Context(), requestID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, requestID, "INTERNAL_ERROR", err.Error())
		return
	}
	if !result.Success {
		writeEnvelope(w, result.HTTPStatus, Envelope{
			Success:   false,
			RequestID: requestID,
			Error:     &ErrorDetail{Code: "CANCEL_FAILED", Message: result.ErrorMessage},
		})
		return
	}
	res, _ := result.Data.(*orders.ExecutionResult)
	writeEnvelope(w, http.StatusOK, Envelope{
		Success:   true,
		RequestID: requestID,
		OrderID:   orderID,
		Data: map[string]interface{}{
			"order_id": orderID,
			"status":   res.Order.Status.String(),
		},
	})
}

func (a *API) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	team := teamFromContext(r)
	open := a.venue.OpenOrders(team.ID)

	out := make([]map[string]interface{}, 0, len(open))
	for _, o := range open {
		out = append(out, map[string]interface{}{
			"order_id":      o.ID,
			"instrument_id": o.InstrumentID,
			"side":          o.Side.String(),
			"type":          o.Type.String(),
			"price":         o.Price.String(),
			"quantity":      o.Quantity,
			"remaining_qty": o.RemainingQty,
			"status":        o.Status.String(),
		})
	}
	writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: map[string]interface{}{"orders": out}})
}

func (a *API) handlePositions(w http.ResponseWriter, r *http.Request) {
	team := teamFromContext(r)
	snapshot := a.venue.Positions.Snapshot(team.ID)
	writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: map[string]interface{}{"positions": snapshot}})
}

// writeOrderResult translates a coordinator.Result produced for a submit
// into the §6 order-op response shape, including the booked fee for this
// team on every trade the order produced.
func writeOrderResult(w http.ResponseWriter, requestID string, result coordinator.Result, ex *venue.Exchange, teamID string) {
	if !result.Success {
		writeEnvelope(w, result.HTTPStatus, Envelope{
			Success:   false,
			RequestID: requestID,
			Error:     &ErrorDetail{Code: result.ErrorCode, Message: result.ErrorMessage},
		})
		return
	}

	res, ok := result.Data.(*orders.ExecutionResult)
	if !ok || res == nil {
		writeEnvelope(w, http.StatusInternalServerError, Envelope{
			Success:   false,
			RequestID: requestID,
			Error:     &ErrorDetail{Code: "INTERNAL_ERROR", Message: "malformed pipeline result"},
		})
		return
	}

	o := res.Order
	if o.Status == orders.OrderStatusRejected {
		writeEnvelope(w, http.StatusBadRequest, Envelope{
			Success:   false,
			RequestID: requestID,
			OrderID:   o.ID,
			Error:     &ErrorDetail{Code: rejectCode(o.RejectReason), Message: o.RejectReason},
		})
		return
	}

	fees := make([]map[string]interface{}, 0, len(res.Trades))
	var liquidity string
	for _, t := range res.Trades {
		for _, e := range ex.Fees.Entries() {
			if e.TradeID == t.ID && e.TeamID == teamID {
				fees = append(fees, map[string]interface{}{"trade_id": e.TradeID, "amount": e.Amount.String(), "liquidity": e.Liquidity})
				liquidity = e.Liquidity
			}
		}
	}

	data := map[string]interface{}{
		"order_id":       o.ID,
		"status":         o.Status.String(),
		"filled_quantity": o.FilledQty(),
		"fees":           fees,
	}
	if liquidity != "" {
		data["liquidity_type"] = liquidity
	}
	writeEnvelope(w, http.StatusOK, Envelope{Success: true, RequestID: requestID, OrderID: o.ID, Data: data})
}

func rejectCode(reason string) string {
	switch reason {
	case "market_closed":
		return "MARKET_CLOSED"
	case "no_liquidity":
		return "MARKET_CLOSED"
	default:
		return "EXCHANGE_ERROR"
	}
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	env.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeError(w http.ResponseWriter, status int, requestID, code, message string) {
	writeEnvelope(w, status, Envelope{Success: false, RequestID: requestID, Error: &ErrorDetail{Code: code, Message: message}})
}

func newOrderID() string {
	return uuid.NewString()
}
