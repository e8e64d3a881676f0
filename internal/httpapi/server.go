// Package httpapi exposes the card, payment, and transaction services over
// a session-authenticated JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
	"github.com/icredito/credito/pkg/ledger"
	"github.com/icredito/credito/pkg/payment"
)

// Server wires the domain services behind a gin router.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	cards    *card.Service
	payments *payment.Service
	entries  ledger.Store
	router   *gin.Engine
}

// New validates the configuration and builds the router.
func New(cfg Config, logger *zap.Logger, cards *card.Service, payments *payment.Service, entries ledger.Store) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cards == nil || payments == nil || entries == nil {
		return nil, fmt.Errorf("service dependency is nil")
	}

	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return nil, fmt.Errorf("session validator: %w", err)
	}

	server := &Server{
		cfg:      cfg,
		logger:   logger,
		cards:    cards,
		payments: payments,
		entries:  entries,
	}
	server.router = server.setupRouter(validator)
	return server, nil
}

// Router exposes the configured engine, primarily for tests.
func (server *Server) Router() *gin.Engine {
	return server.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter(validator *sessionvalidator.Validator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(validator.GinMiddleware("auth_claims"))

	api.POST("/cards", server.handleOpenCard)
	api.GET("/cards", server.handleListCards)
	api.GET("/cards/:id", server.handleGetCard)
	api.POST("/cards/:id/block", server.handleBlockCard)
	api.POST("/cards/:id/activate", server.handleActivateCard)
	api.POST("/cards/:id/cancel", server.handleCancelCard)
	api.POST("/cards/:id/alias", server.handleUpdateAlias)
	api.POST("/cards/:id/payments", server.handlePayBalance)
	api.GET("/cards/:id/transactions", server.handleListCardTransactions)

	api.POST("/payments", server.handleProcessPayment)
	api.GET("/payments", server.handleListPayments)
	api.GET("/payments/:id", server.handleGetPayment)
	api.GET("/payments/reference/:reference", server.handleGetPaymentByReference)
	api.POST("/payments/:id/refund", server.handleRefundPayment)

	api.GET("/transactions", server.handleListTransactions)
	api.GET("/transactions/:id", server.handleGetTransaction)
	api.GET("/summary", server.handleSummary)

	return router
}

func (server *Server) handleOpenCard(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	var request openCardRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	opened, err := server.cards.OpenCard(ctx.Request.Context(), userID, card.OpenCardParams{
		Number:          request.CardNumber,
		HolderName:      request.HolderName,
		ExpirationMonth: request.ExpirationMonth,
		ExpirationYear:  request.ExpirationYear,
		CVV:             request.CVV,
		Brand:           request.Brand,
		Kind:            request.Kind,
		LimitCents:      request.CreditLimitCents,
		Alias:           request.Alias,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"card": cardPayloadFrom(opened)})
}

func (server *Server) handleListCards(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	cards, err := server.cards.ListCards(ctx.Request.Context(), userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payloads := make([]cardPayload, 0, len(cards))
	for _, c := range cards {
		payloads = append(payloads, cardPayloadFrom(c))
	}
	ctx.JSON(http.StatusOK, gin.H{"cards": payloads})
}

func (server *Server) handleGetCard(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, ok := server.cardID(ctx)
	if !ok {
		return
	}
	loaded, err := server.cards.GetCard(ctx.Request.Context(), id, userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"card": cardPayloadFrom(loaded)})
}

func (server *Server) handleBlockCard(ctx *gin.Context) {
	server.mutateCard(ctx, server.cards.BlockCard)
}

func (server *Server) handleActivateCard(ctx *gin.Context) {
	server.mutateCard(ctx, server.cards.ActivateCard)
}

func (server *Server) handleCancelCard(ctx *gin.Context) {
	server.mutateCard(ctx, server.cards.CancelCard)
}

func (server *Server) mutateCard(ctx *gin.Context, apply func(context.Context, card.CardID, domain.UserID) (*card.Card, error)) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, ok := server.cardID(ctx)
	if !ok {
		return
	}
	mutated, err := apply(ctx.Request.Context(), id, userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"card": cardPayloadFrom(mutated)})
}

func (server *Server) handleUpdateAlias(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, ok := server.cardID(ctx)
	if !ok {
		return
	}
	var request aliasRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	mutated, err := server.cards.UpdateAlias(ctx.Request.Context(), id, userID, request.Alias)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"card": cardPayloadFrom(mutated)})
}

func (server *Server) handlePayBalance(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, ok := server.cardID(ctx)
	if !ok {
		return
	}
	var request payBalanceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	amount, err := domain.NewAmountCents(request.AmountCents)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	currency, err := domain.NewCurrency(defaultIfEmpty(request.Currency, "BRL"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	result, err := server.payments.PayBalance(ctx.Request.Context(), userID, payment.PayBalanceParams{
		CardID:   id,
		Amount:   amount,
		Currency: currency,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"applied_cents": result.AppliedCents,
		"balance_cents": result.BalanceCents,
	})
}

func (server *Server) handleProcessPayment(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	var request chargeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	cardID, err := card.NewCardID(request.CardID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	amount, err := domain.NewAmountCents(request.AmountCents)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	currency, err := domain.NewCurrency(defaultIfEmpty(request.Currency, "BRL"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	metadata, err := domain.NewMetadataJSON(marshalMetadata(request.Metadata))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	result, err := server.payments.ProcessPayment(ctx.Request.Context(), userID, payment.ChargeParams{
		CardID:           cardID,
		Amount:           amount,
		Currency:         currency,
		MerchantName:     request.MerchantName,
		MerchantCategory: request.MerchantCategory,
		Description:      request.Description,
		Metadata:         metadata,
		IdempotencyKey:   request.IdempotencyKey,
	})
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	ctx.JSON(status, gin.H{"payment": resultPayloadFrom(result)})
}

func (server *Server) handleListPayments(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	page, pageSize, ok := server.paging(ctx)
	if !ok {
		return
	}
	listed, err := server.payments.ListPayments(ctx.Request.Context(), userID, page, pageSize)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	payloads := make([]paymentPayload, 0, len(listed.Payments))
	for _, p := range listed.Payments {
		payloads = append(payloads, paymentPayloadFrom(p))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"payments":    payloads,
		"total_count": listed.TotalCount,
		"page":        listed.Page,
		"page_size":   listed.PageSize,
	})
}

func (server *Server) handleGetPayment(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, err := payment.NewID(ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	loaded, err := server.payments.GetPayment(ctx.Request.Context(), id, userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payment": paymentPayloadFrom(loaded)})
}

func (server *Server) handleGetPaymentByReference(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	loaded, err := server.payments.GetPaymentByReference(ctx.Request.Context(), ctx.Param("reference"), userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payment": paymentPayloadFrom(loaded)})
}

func (server *Server) handleRefundPayment(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, err := payment.NewID(ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	result, err := server.payments.RefundPayment(ctx.Request.Context(), id, userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payment": resultPayloadFrom(result)})
}

func (server *Server) handleListTransactions(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	filter, ok := server.entryFilter(ctx)
	if !ok {
		return
	}
	listed, err := server.entries.ListEntriesForUser(ctx.Request.Context(), userID, filter)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	server.respondEntryPage(ctx, listed)
}

func (server *Server) handleListCardTransactions(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, ok := server.cardID(ctx)
	if !ok {
		return
	}
	filter, ok := server.entryFilter(ctx)
	if !ok {
		return
	}
	listed, err := server.entries.ListEntriesForCard(ctx.Request.Context(), id, userID, filter)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	server.respondEntryPage(ctx, listed)
}

func (server *Server) handleGetTransaction(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	id, err := ledger.NewEntryID(ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	entry, err := server.entries.GetEntryForUser(ctx.Request.Context(), id, userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"transaction": entryPayloadFrom(entry)})
}

func (server *Server) handleSummary(ctx *gin.Context) {
	userID, ok := server.requireUser(ctx)
	if !ok {
		return
	}
	from, to, ok := server.timeRange(ctx)
	if !ok {
		return
	}
	totals, err := server.entries.SumByType(ctx.Request.Context(), userID, from, to)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	cards, err := server.cards.ListCards(ctx.Request.Context(), userID)
	if err != nil {
		server.respondError(ctx, err)
		return
	}

	totalPayloads := make([]typeTotalPayload, 0, len(totals))
	for _, total := range totals {
		totalPayloads = append(totalPayloads, typeTotalPayload{
			Type:       total.Type.String(),
			Count:      total.Count,
			TotalCents: total.TotalCents,
		})
	}
	cardPayloads := make([]cardBalancePayload, 0, len(cards))
	for _, c := range cards {
		cardPayloads = append(cardPayloads, cardBalancePayload{
			CardID:               c.ID().String(),
			Status:               c.Status().String(),
			BalanceCents:         c.BalanceCents(),
			AvailableCreditCents: c.AvailableCreditCents(),
		})
	}
	ctx.JSON(http.StatusOK, gin.H{
		"totals": totalPayloads,
		"cards":  cardPayloads,
	})
}

func (server *Server) requireUser(ctx *gin.Context) (domain.UserID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return domain.UserID{}, false
	}
	userID, err := domain.NewUserID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session subject"))
		return domain.UserID{}, false
	}
	return userID, true
}

func (server *Server) cardID(ctx *gin.Context) (card.CardID, bool) {
	id, err := card.NewCardID(ctx.Param("id"))
	if err != nil {
		server.respondError(ctx, err)
		return card.CardID{}, false
	}
	return id, true
}

func (server *Server) paging(ctx *gin.Context) (int, int, bool) {
	page, ok := server.queryInt(ctx, "page")
	if !ok {
		return 0, 0, false
	}
	pageSize, ok := server.queryInt(ctx, "page_size")
	if !ok {
		return 0, 0, false
	}
	return page, pageSize, true
}

func (server *Server) queryInt(ctx *gin.Context, name string) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", fmt.Sprintf("%s must be an integer", name)))
		return 0, false
	}
	return value, true
}

func (server *Server) entryFilter(ctx *gin.Context) (ledger.Filter, bool) {
	page, pageSize, ok := server.paging(ctx)
	if !ok {
		return ledger.Filter{}, false
	}
	from, to, ok := server.timeRange(ctx)
	if !ok {
		return ledger.Filter{}, false
	}
	filter := ledger.Filter{From: from, To: to, Page: page, PageSize: pageSize}
	if raw := ctx.Query("type"); raw != "" {
		entryType, err := ledger.ParseType(raw)
		if err != nil {
			server.respondError(ctx, err)
			return ledger.Filter{}, false
		}
		filter.Type = entryType
	}
	normalized, err := filter.Normalize()
	if err != nil {
		server.respondError(ctx, err)
		return ledger.Filter{}, false
	}
	return normalized, true
}

func (server *Server) timeRange(ctx *gin.Context) (time.Time, time.Time, bool) {
	from, ok := server.queryUnix(ctx, "from_unix")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := server.queryUnix(ctx, "to_unix")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (server *Server) queryUnix(ctx *gin.Context, name string) (time.Time, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", fmt.Sprintf("%s must be a unix timestamp", name)))
		return time.Time{}, false
	}
	return time.Unix(seconds, 0).UTC(), true
}

func (server *Server) respondEntryPage(ctx *gin.Context, page ledger.Page) {
	payloads := make([]entryPayload, 0, len(page.Entries))
	for _, entry := range page.Entries {
		payloads = append(payloads, entryPayloadFrom(entry))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"transactions": payloads,
		"total_count":  page.TotalCount,
		"page":         page.Page,
		"page_size":    page.PageSize,
	})
}

func (server *Server) respondError(ctx *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		server.logger.Error("request failed", zap.Error(err))
		ctx.JSON(status, errorResponse(code, "internal error"))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, card.ErrCardNotFound),
		errors.Is(err, payment.ErrPaymentNotFound),
		errors.Is(err, ledger.ErrEntryNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, card.ErrCardNumberExists):
		return http.StatusConflict, "card_number_exists"
	case errors.Is(err, payment.ErrRefundNotAllowed):
		return http.StatusConflict, "refund_not_allowed"
	case errors.Is(err, payment.ErrDuplicatePayment):
		return http.StatusConflict, "duplicate_payment"
	case errors.Is(err, card.ErrCardConflict),
		errors.Is(err, payment.ErrPaymentConflict):
		return http.StatusConflict, "concurrent_update"
	case errors.Is(err, card.ErrCardNotActive),
		errors.Is(err, card.ErrInsufficientCredit):
		return http.StatusConflict, "card_rejected"
	case isValidation(err):
		return http.StatusBadRequest, "validation_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func isValidation(err error) bool {
	validation := []error{
		card.ErrCardNumberRequired,
		card.ErrCardNumberLength,
		card.ErrCardNumberFormat,
		card.ErrCardNumberChecksum,
		card.ErrInvalidExpirationMonth,
		card.ErrCardExpired,
		card.ErrCVVRequired,
		card.ErrInvalidCVVLength,
		card.ErrInvalidCVVFormat,
		card.ErrInvalidCreditLimit,
		card.ErrCreditLimitTooHigh,
		card.ErrHolderNameRequired,
		card.ErrInvalidBrand,
		card.ErrInvalidKind,
		card.ErrInvalidCardID,
		domain.ErrInvalidUserID,
		domain.ErrInvalidAmountCents,
		domain.ErrInvalidCurrency,
		domain.ErrInvalidMetadataJSON,
		payment.ErrInvalidPaymentID,
		payment.ErrMerchantRequired,
		payment.ErrInvalidPageBounds,
		ledger.ErrInvalidEntryID,
		ledger.ErrInvalidEntryType,
		ledger.ErrInvalidPageBounds,
	}
	for _, sentinel := range validation {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get("auth_claims")
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func marshalMetadata(metadata map[string]any) string {
	if metadata == nil {
		return "{}"
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

type openCardRequest struct {
	CardNumber       string `json:"card_number"`
	HolderName       string `json:"holder_name"`
	ExpirationMonth  int    `json:"expiration_month"`
	ExpirationYear   int    `json:"expiration_year"`
	CVV              string `json:"cvv"`
	Brand            string `json:"brand"`
	Kind             string `json:"kind"`
	CreditLimitCents int64  `json:"credit_limit_cents"`
	Alias            string `json:"alias"`
}

type aliasRequest struct {
	Alias string `json:"alias"`
}

type payBalanceRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type chargeRequest struct {
	CardID           string         `json:"card_id"`
	AmountCents      int64          `json:"amount_cents"`
	Currency         string         `json:"currency"`
	MerchantName     string         `json:"merchant_name"`
	MerchantCategory string         `json:"merchant_category"`
	Description      string         `json:"description"`
	IdempotencyKey   string         `json:"idempotency_key"`
	Metadata         map[string]any `json:"metadata"`
}

type cardPayload struct {
	CardID               string `json:"card_id"`
	MaskedNumber         string `json:"masked_number"`
	HolderName           string `json:"holder_name"`
	Expiration           string `json:"expiration"`
	Brand                string `json:"brand"`
	Kind                 string `json:"kind"`
	Status               string `json:"status"`
	Alias                string `json:"alias"`
	CreditLimitCents     int64  `json:"credit_limit_cents"`
	BalanceCents         int64  `json:"balance_cents"`
	AvailableCreditCents int64  `json:"available_credit_cents"`
	CreatedUnixUTC       int64  `json:"created_unix_utc"`
	UpdatedUnixUTC       int64  `json:"updated_unix_utc"`
}

func cardPayloadFrom(c *card.Card) cardPayload {
	return cardPayload{
		CardID:               c.ID().String(),
		MaskedNumber:         c.MaskedNumber(),
		HolderName:           c.Holder().String(),
		Expiration:           c.Expiration().String(),
		Brand:                c.Brand().String(),
		Kind:                 c.Kind().String(),
		Status:               c.Status().String(),
		Alias:                c.Alias(),
		CreditLimitCents:     c.LimitCents(),
		BalanceCents:         c.BalanceCents(),
		AvailableCreditCents: c.AvailableCreditCents(),
		CreatedUnixUTC:       c.CreatedAt().Unix(),
		UpdatedUnixUTC:       c.UpdatedAt().Unix(),
	}
}

type paymentPayload struct {
	PaymentID         string `json:"payment_id"`
	Reference         string `json:"reference"`
	CardID            string `json:"card_id"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	MerchantName      string `json:"merchant_name"`
	MerchantCategory  string `json:"merchant_category"`
	Description       string `json:"description"`
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code"`
	FailureReason     string `json:"failure_reason"`
	CreatedUnixUTC    int64  `json:"created_unix_utc"`
	ProcessedUnixUTC  int64  `json:"processed_unix_utc,omitempty"`
	CompletedUnixUTC  int64  `json:"completed_unix_utc,omitempty"`
}

func paymentPayloadFrom(p *payment.Payment) paymentPayload {
	payload := paymentPayload{
		PaymentID:         p.ID().String(),
		Reference:         p.Reference(),
		CardID:            p.CardID().String(),
		AmountCents:       p.Amount().Int64(),
		Currency:          p.Currency().String(),
		MerchantName:      p.MerchantName(),
		MerchantCategory:  p.MerchantCategory(),
		Description:       p.Description(),
		Status:            p.Status().String(),
		AuthorizationCode: p.AuthorizationCode(),
		FailureReason:     p.FailureReason(),
		CreatedUnixUTC:    p.CreatedAt().Unix(),
	}
	if processedAt := p.ProcessedAt(); processedAt != nil {
		payload.ProcessedUnixUTC = processedAt.Unix()
	}
	if completedAt := p.CompletedAt(); completedAt != nil {
		payload.CompletedUnixUTC = completedAt.Unix()
	}
	return payload
}

type resultPayload struct {
	PaymentID         string `json:"payment_id"`
	Reference         string `json:"reference"`
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	CompletedUnixUTC  int64  `json:"completed_unix_utc,omitempty"`
	FailureReason     string `json:"failure_reason"`
	Duplicate         bool   `json:"duplicate"`
}

func resultPayloadFrom(result payment.Result) resultPayload {
	payload := resultPayload{
		PaymentID:         result.PaymentID.String(),
		Reference:         result.Reference,
		Status:            result.Status.String(),
		AuthorizationCode: result.AuthorizationCode,
		AmountCents:       result.AmountCents,
		Currency:          result.Currency,
		FailureReason:     result.FailureReason,
		Duplicate:         result.Duplicate,
	}
	if !result.CompletedAt.IsZero() {
		payload.CompletedUnixUTC = result.CompletedAt.Unix()
	}
	return payload
}

type entryPayload struct {
	EntryID            string          `json:"entry_id"`
	CardID             string          `json:"card_id"`
	PaymentID          string          `json:"payment_id,omitempty"`
	Type               string          `json:"type"`
	AmountCents        int64           `json:"amount_cents"`
	SignedAmountCents  int64           `json:"signed_amount_cents"`
	Currency           string          `json:"currency"`
	Description        string          `json:"description"`
	BalanceBeforeCents int64           `json:"balance_before_cents"`
	BalanceAfterCents  int64           `json:"balance_after_cents"`
	MerchantName       string          `json:"merchant_name,omitempty"`
	Category           string          `json:"category"`
	Metadata           json.RawMessage `json:"metadata"`
	CreatedUnixUTC     int64           `json:"created_unix_utc"`
}

func entryPayloadFrom(entry ledger.Entry) entryPayload {
	metadata := entry.Metadata().String()
	if metadata == "" {
		metadata = "{}"
	}
	return entryPayload{
		EntryID:            entry.ID().String(),
		CardID:             entry.CardID().String(),
		PaymentID:          entry.PaymentID(),
		Type:               entry.Type().String(),
		AmountCents:        entry.AmountCents().Int64(),
		SignedAmountCents:  entry.SignedAmountCents(),
		Currency:           entry.Currency().String(),
		Description:        entry.Description(),
		BalanceBeforeCents: entry.BalanceBeforeCents(),
		BalanceAfterCents:  entry.BalanceAfterCents(),
		MerchantName:       entry.MerchantName(),
		Category:           entry.Category(),
		Metadata:           json.RawMessage(metadata),
		CreatedUnixUTC:     entry.CreatedAt().Unix(),
	}
}

type typeTotalPayload struct {
	Type       string `json:"type"`
	Count      int64  `json:"count"`
	TotalCents int64  `json:"total_cents"`
}

type cardBalancePayload struct {
	CardID               string `json:"card_id"`
	Status               string `json:"status"`
	BalanceCents         int64  `json:"balance_cents"`
	AvailableCreditCents int64  `json:"available_credit_cents"`
}
