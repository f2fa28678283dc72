package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	_ "embed"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/floatify/custodian/internal/logger"
	"github.com/floatify/custodian/internal/market"
	"github.com/floatify/custodian/internal/state"
	"github.com/floatify/custodian/internal/token"
	"github.com/floatify/custodian/internal/types"
	"github.com/floatify/custodian/internal/utils"
	"github.com/floatify/custodian/internal/vault"
)

var webLogger = logger.GetForComponent("web_server")

//go:embed static/index.html
var dashboardHTML []byte

// WebServer exposes the custodian to the controlling operator: read-only
// accessors, the four privileged operations, and sim-mode block control.
// All privileged requests are invoked as the configured operator identity.
type WebServer struct {
	router *mux.Router
	port   string

	custodian  *vault.Custodian
	stablecoin token.Stablecoin
	market     *market.MoneyMarket
	operator   types.Address
	decimals   int
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, custodian *vault.Custodian, stablecoin token.Stablecoin, mm *market.MoneyMarket, operator types.Address, decimals int) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		custodian:  custodian,
		stablecoin: stablecoin,
		market:     mm,
		operator:   operator,
		decimals:   decimals,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/totals", ws.handleTotals).Methods("GET")
	api.HandleFunc("/controller", ws.handleController).Methods("GET")
	api.HandleFunc("/balances", ws.handleBalances).Methods("GET")
	api.HandleFunc("/events", ws.handleEvents).Methods("GET")

	api.HandleFunc("/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/redeem/max", ws.handleRedeemMax).Methods("POST")
	api.HandleFunc("/redeem/partial", ws.handleRedeemPartial).Methods("POST")
	api.HandleFunc("/control/transfer", ws.handleTransferControl).Methods("POST")
	api.HandleFunc("/blocks/advance", ws.handleAdvanceBlocks).Methods("POST")
}

// Start begins listening on the configured port.
func (ws *WebServer) Start() error {
	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return server.ListenAndServe()
}

// Router returns the underlying router, for tests.
func (ws *WebServer) Router() *mux.Router {
	return ws.router
}

func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML)
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if state.DB != nil {
		if err := state.TestDBConnection(); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
		} else {
			health["database"] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, health)
}

func (ws *WebServer) handleTotals(w http.ResponseWriter, r *http.Request) {
	deposited := ws.custodian.TotalDeposited()
	withdrawn := ws.custodian.TotalWithdrawn()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_deposited":         deposited.String(),
		"total_withdrawn":         withdrawn.String(),
		"total_deposited_display": ws.display(deposited),
		"total_withdrawn_display": ws.display(withdrawn),
	})
}

func (ws *WebServer) handleController(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"controller": ws.custodian.Controller(),
		"operator":   ws.operator,
	})
}

func (ws *WebServer) handleBalances(w http.ResponseWriter, r *http.Request) {
	addr := ws.custodian.Address()
	stable := ws.stablecoin.BalanceOf(addr)
	yield := ws.custodian.MarketBalance()

	resp := map[string]any{
		"address":            addr,
		"stablecoin":         stable.String(),
		"stablecoin_display": ws.display(stable),
		"yield_tokens":       yield.String(),
	}
	if ws.market != nil {
		resp["exchange_rate"] = ws.market.ExchangeRateCurrent().String()
		resp["block"] = ws.market.Block()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if state.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "event mirror database not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	events, err := state.GetRecentEvents(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load event receipts")
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type operationRequest struct {
	Destination   types.Address `json:"destination"`
	Amount        string        `json:"amount"`
	NewController types.Address `json:"new_controller"`
	Blocks        uint64        `json:"blocks"`
}

func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	amount, err := ws.custodian.Deposit(ws.operator)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deposited":         amount.String(),
		"deposited_display": ws.display(amount),
	})
}

func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOperation(w, r)
	if !ok {
		return
	}
	amount, err := ws.custodian.Withdraw(ws.operator, req.Destination)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"withdrawn":         amount.String(),
		"withdrawn_display": ws.display(amount),
		"destination":       req.Destination,
	})
}

func (ws *WebServer) handleRedeemMax(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOperation(w, r)
	if !ok {
		return
	}
	received, err := ws.custodian.RedeemAndWithdrawMax(ws.operator, req.Destination)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"received":         received.String(),
		"received_display": ws.display(received),
		"destination":      req.Destination,
	})
}

func (ws *WebServer) handleRedeemPartial(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOperation(w, r)
	if !ok {
		return
	}
	amount, err := utils.ParseAmount(req.Amount, ws.decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}
	if err := ws.custodian.RedeemAndWithdrawPartial(ws.operator, req.Destination, amount); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redeemed":    amount.String(),
		"destination": req.Destination,
	})
}

func (ws *WebServer) handleTransferControl(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOperation(w, r)
	if !ok {
		return
	}
	if err := ws.custodian.TransferControl(ws.operator, req.NewController); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"controller": req.NewController,
	})
}

func (ws *WebServer) handleAdvanceBlocks(w http.ResponseWriter, r *http.Request) {
	if ws.market == nil {
		writeError(w, http.StatusServiceUnavailable, "block control only available in sim mode")
		return
	}
	req, ok := decodeOperation(w, r)
	if !ok {
		return
	}
	if req.Blocks == 0 {
		writeError(w, http.StatusBadRequest, "blocks must be positive")
		return
	}
	ws.market.AdvanceBlocks(req.Blocks)
	writeJSON(w, http.StatusOK, map[string]any{
		"block":         ws.market.Block(),
		"exchange_rate": ws.market.ExchangeRateCurrent().String(),
	})
}

func decodeOperation(w http.ResponseWriter, r *http.Request) (operationRequest, bool) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return req, false
	}
	return req, true
}

func (ws *WebServer) display(amount sdkmath.Int) float64 {
	display, err := utils.IntToFloat64(amount, ws.decimals)
	if err != nil {
		webLogger.Error().Err(err).Str("amount", amount.String()).Msg("Display conversion failed")
		return 0
	}
	return display
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeOperationError maps custodian failures onto HTTP statuses.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, token.ErrInsufficientRedeemable), errors.Is(err, vault.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, vault.ErrExternalCallFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
