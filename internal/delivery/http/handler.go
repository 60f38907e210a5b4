package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ezrasisk/Buyit/internal/entity"
	"github.com/ezrasisk/Buyit/internal/service"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the marketplace.
type Handler struct {
	market *service.MarketService
	saga   *service.PurchaseSaga
}

func NewHandler(market *service.MarketService, saga *service.PurchaseSaga) *Handler {
	return &Handler{
		market: market,
		saga:   saga,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/profiles", h.handleRegister)
	mux.HandleFunc("GET /api/profiles/{principal}", h.handleGetProfile)
	mux.HandleFunc("PATCH /api/profiles/{principal}", h.handleUpdateProfile)

	mux.HandleFunc("POST /api/listings", h.handleCreateListing)
	mux.HandleFunc("GET /api/listings", h.handleListActive)
	mux.HandleFunc("GET /api/listings/all", h.handleListAll)
	mux.HandleFunc("GET /api/listings/{id}", h.handleGetListing)
	mux.HandleFunc("PATCH /api/listings/{id}", h.handleModifyListing)
	mux.HandleFunc("POST /api/listings/{id}/archive", h.handleArchiveListing)
	mux.HandleFunc("GET /api/listings/{id}/receipts", h.handleReceiptsByListing)

	mux.HandleFunc("POST /api/purchases", h.handlePurchase)

	mux.HandleFunc("POST /api/transfers", h.handleTransfer)
	mux.HandleFunc("GET /api/balances/{principal}", h.handleGetBalance)
	mux.HandleFunc("POST /api/balances/{principal}/mint", h.handleMint)
	mux.HandleFunc("GET /api/transactions/{id}", h.handleGetTransaction)
	mux.HandleFunc("GET /api/receipts/{id}", h.handleGetReceipt)
	mux.HandleFunc("GET /api/notifications/{principal}", h.handlePollNotifications)
}

// EnableCORS is a middleware to allow browser frontends to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError maps domain errors onto HTTP status codes. A critical
// inconsistency gets a distinct code so operators can alert on it.
func writeError(w http.ResponseWriter, err error) {
	var inconsistency *entity.CriticalInconsistencyError

	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.As(err, &inconsistency):
		status, code = http.StatusInternalServerError, "critical_inconsistency"
	case errors.Is(err, entity.ErrListingNotFound), errors.Is(err, entity.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, entity.ErrNotForSale):
		status, code = http.StatusConflict, "not_for_sale"
	case errors.Is(err, entity.ErrAlreadyRegistered):
		status, code = http.StatusConflict, "already_registered"
	case errors.Is(err, entity.ErrNotCreator):
		status, code = http.StatusForbidden, "not_creator"
	case errors.Is(err, entity.ErrPaymentFailed),
		errors.Is(err, entity.ErrInsufficientFunds),
		errors.Is(err, entity.ErrNoBalance),
		errors.Is(err, entity.ErrOverflow):
		status, code = http.StatusPaymentRequired, "payment_failed"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(r.PathValue("id"), 10, 64)
}

type registerRequest struct {
	Principal entity.Principal `json:"principal"`
	Username  string           `json:"username"`
	Email     string           `json:"email"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	// Mint a principal when the caller doesn't bring one.
	if req.Principal == "" {
		req.Principal = entity.Principal(uuid.New().String())
	}

	profile := entity.Profile{Principal: req.Principal, Username: req.Username, Email: req.Email}
	if err := h.market.Register(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.market.GetProfile(r.Context(), entity.Principal(r.PathValue("principal")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	principal := entity.Principal(r.PathValue("principal"))
	if err := h.market.UpdateProfile(r.Context(), principal, req.Username, req.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createListingRequest struct {
	Creator entity.Principal `json:"creator"`
	Text    string           `json:"text"`
	Image   []byte           `json:"image"`
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator == "" {
		http.Error(w, "creator is required", http.StatusBadRequest)
		return
	}

	id, err := h.market.CreateListing(r.Context(), req.Creator, req.Text, req.Image)
	if err != nil {
		slog.Error("Failed to create listing", "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]uint64{"listing_id": id})
}

func (h *Handler) handleListActive(w http.ResponseWriter, r *http.Request) {
	listings, err := h.market.ListActiveListings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	listings, err := h.market.ListAllListings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}

	listing, err := h.market.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type modifyListingRequest struct {
	Requester entity.Principal `json:"requester"`
	Text      *string          `json:"text"`
	Image     []byte           `json:"image"`
}

func (h *Handler) handleModifyListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}

	var req modifyListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.market.ModifyListing(r.Context(), id, req.Requester, req.Text, req.Image); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type archiveListingRequest struct {
	Requester entity.Principal `json:"requester"`
}

func (h *Handler) handleArchiveListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}

	var req archiveListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.market.ArchiveListing(r.Context(), id, req.Requester); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReceiptsByListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}

	receipts, err := h.market.GetReceiptsByListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

type purchaseRequest struct {
	Buyer     entity.Principal `json:"buyer"`
	ListingID uint64           `json:"listing_id"`
	Price     uint64           `json:"price"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Buyer == "" {
		http.Error(w, "buyer is required", http.StatusBadRequest)
		return
	}

	result, err := h.saga.Purchase(r.Context(), req.Buyer, req.ListingID, req.Price)
	if err != nil {
		slog.Error("Purchase failed", "buyer", req.Buyer, "listing_id", req.ListingID, "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type transferRequest struct {
	From   entity.Principal `json:"from"`
	To     entity.Principal `json:"to"`
	Amount uint64           `json:"amount"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.From == "" || req.To == "" {
		http.Error(w, "from and to are required", http.StatusBadRequest)
		return
	}

	if err := h.market.Transfer(r.Context(), req.From, req.To, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.market.GetBalance(r.Context(), entity.Principal(r.PathValue("principal")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

type mintRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	principal := entity.Principal(r.PathValue("principal"))
	if err := h.market.Mint(r.Context(), principal, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	txn, err := h.market.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid receipt id", http.StatusBadRequest)
		return
	}

	receipt, err := h.market.GetReceipt(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handlePollNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	principal := entity.Principal(r.PathValue("principal"))
	notifications, err := h.market.PollNotifications(r.Context(), principal, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if notifications == nil {
		notifications = []entity.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}
