package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riskshield/riskshield/internal/analytics"
	"github.com/riskshield/riskshield/internal/auth"
	"github.com/riskshield/riskshield/internal/domain"
	"github.com/riskshield/riskshield/internal/repository"
	"github.com/riskshield/riskshield/internal/rules"
	"github.com/riskshield/riskshield/internal/scoring"
)

const (
	analyticsCacheKey = "analytics:report"
	analyticsCacheTTL = 30 * time.Second
)

// Handler holds dependencies for API handlers.
type Handler struct {
	scorer  *scoring.Service
	auth    *auth.Service
	repo    domain.Repository
	cache   domain.Cache
	engine  *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(scorer *scoring.Service, authSvc *auth.Service, repo domain.Repository, cache domain.Cache, engine *rules.Engine, version string) *Handler {
	return &Handler{
		scorer:  scorer,
		auth:    authSvc,
		repo:    repo,
		cache:   cache,
		engine:  engine,
		version: version,
	}
}

// envelope is the uniform response body: {"status", "message", "data"}.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeSuccess(w, http.StatusOK, "Service is "+status, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// RegisterRequest is the request body for POST /api/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// Register handles POST /api/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User registered successfully", map[string]string{
		"email":     user.Email,
		"full_name": user.FullName,
	})
}

// LoginRequest is the request body for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", map[string]string{
		"email":     user.Email,
		"full_name": user.FullName,
	})
}

// Predict handles POST /api/predict.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var in domain.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	// Scoring is restricted to registered users
	user, err := h.repo.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "User not registered")
		return
	}
	if err != nil {
		slog.Error("failed to look up user", "email", in.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	rec, err := h.scorer.Score(ctx, &in)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	observeDecision(rec.IsFraud, time.Since(start))
	h.invalidateAnalytics(ctx)

	writeSuccess(w, http.StatusOK, "Prediction completed successfully", map[string]any{
		"prediction_id":    rec.ID,
		"user":             user.FullName,
		"model_risk_score": rec.ModelScore,
		"rule_score":       rec.RuleScore,
		"combined_score":   rec.CombinedScore,
		"is_fraud":         rec.IsFraud,
		"rules_triggered":  rec.Flags,
		"derived_features": rec.Features,
		"explanation":      rec.Explanation,
		"timestamp":        rec.Timestamp.Format(time.RFC3339),
	})
}

// BulkPredictRequest is the request body for POST /api/bulk-predict. The
// batch is scored on behalf of a single registered user; per-item emails
// are overwritten with the batch email.
type BulkPredictRequest struct {
	Email        string                     `json:"email"`
	Transactions []*domain.TransactionInput `json:"transactions"`
}

// BulkPredict handles POST /api/bulk-predict.
func (h *Handler) BulkPredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BulkPredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	// Bulk scoring is restricted to registered users, same as Predict.
	if _, err := h.repo.GetUserByEmail(ctx, req.Email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "User not registered")
			return
		}
		slog.Error("failed to look up user", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	for _, in := range req.Transactions {
		if in != nil {
			in.Email = req.Email
		}
	}

	result, err := h.scorer.ScoreBatch(ctx, req.Transactions)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.invalidateAnalytics(ctx)

	writeSuccess(w, http.StatusOK, "Bulk prediction completed", result)
}

// Transactions handles GET /api/transactions/{email}.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "email")

	user, err := h.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("failed to look up user", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	records, err := h.repo.ListDecisionsByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to list decisions", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch transactions")
		return
	}

	transactions := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		transactions = append(transactions, map[string]any{
			"id":               rec.ID,
			"customer_id":      rec.CustomerID,
			"transaction_id":   rec.TransactionID,
			"risk_score":       rec.CombinedScore,
			"is_fraud":         rec.IsFraud,
			"derived_features": rec.Features,
			"rule_flags":       rec.Flags,
			"explanation":      rec.Explanation,
			"timestamp":        rec.Timestamp.Format(time.RFC3339),
		})
	}

	writeSuccess(w, http.StatusOK, "Found "+strconv.Itoa(len(transactions))+" transactions", map[string]any{
		"user_email":         email,
		"user_name":          user.FullName,
		"total_transactions": len(transactions),
		"transactions":       transactions,
	})
}

// Analytics handles GET /api/analytics. Reports are cached briefly and the
// cache is invalidated on every new decision.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, analyticsCacheKey); err == nil && cached != nil {
			var report analytics.Report
			if err := json.Unmarshal(cached, &report); err == nil {
				writeSuccess(w, http.StatusOK, "Analytics generated successfully", &report)
				return
			}
		}
	}

	stats, err := h.repo.DecisionStats(ctx)
	if err != nil {
		slog.Error("failed to load decision stats", "error", err)
		writeError(w, http.StatusInternalServerError, "analytics generation failed")
		return
	}

	report := analytics.BuildReport(stats)

	if h.cache != nil {
		if payload, err := json.Marshal(report); err == nil {
			_ = h.cache.Set(ctx, analyticsCacheKey, payload, analyticsCacheTTL)
		}
	}

	message := "Analytics generated successfully"
	if report.KPIs.TotalTransactions == 0 {
		message = "No data available yet"
	}

	writeSuccess(w, http.StatusOK, message, report)
}

// ModelMetrics handles GET /api/metrics: the model card of the deployed
// classifier, from offline evaluation of the training run.
func (h *Handler) ModelMetrics(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Model metrics retrieved successfully", map[string]any{
		"model_name":    "RiskShield GBDT Fraud Model (Recall-Optimized)",
		"version":       h.version,
		"training_date": "2025-01-15",
		"metrics": map[string]any{
			"accuracy":  0.76,
			"precision": 0.24,
			"recall":    0.83,
			"f1_score":  0.37,
			"auc_roc":   0.80,
			"confusion_matrix": map[string]int{
				"true_positive":  71,
				"false_positive": 224,
				"true_negative":  690,
				"false_negative": 15,
			},
		},
		"feature_importance": []map[string]any{
			{"feature": "transaction_amount", "importance": 0.234},
			{"feature": "account_age_days", "importance": 0.189},
			{"feature": "kyc_verified", "importance": 0.156},
			{"feature": "is_night_txn", "importance": 0.123},
			{"feature": "hour_of_day", "importance": 0.098},
			{"feature": "channel_encoded", "importance": 0.087},
			{"feature": "is_high_amount_transaction", "importance": 0.073},
			{"feature": "day_of_week", "importance": 0.040},
		},
	})
}

// ListRules returns all loaded custom rules from the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.CustomRules()
	writeSuccess(w, http.StatusOK, "Rules retrieved successfully", map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRule validates and persists a custom rule. The engine picks it up on
// the next POST /api/rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.CustomRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if err := h.engine.ValidateCustomRule(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule: "+err.Error())
		return
	}

	if err := h.repo.SaveCustomRule(ctx, &rule); err != nil {
		slog.Error("failed to save custom rule", "id", rule.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	slog.Info("custom rule created", "id", rule.ID, "name", rule.Name)
	writeSuccess(w, http.StatusCreated, "Rule created. Call POST /api/rules/reload to apply changes.", &rule)
}

// ReloadRules reloads custom rules from the database into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configs, err := h.repo.ListCustomRules(ctx)
	if err != nil {
		slog.Error("failed to list custom rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules from database")
		return
	}

	if err := h.engine.LoadCustomRules(configs); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	slog.Info("custom rules reloaded", "count", len(configs))
	writeSuccess(w, http.StatusOK, "Rules reloaded successfully", map[string]int{
		"count": len(configs),
	})
}

func (h *Handler) invalidateAnalytics(ctx context.Context) {
	if h.cache != nil {
		_ = h.cache.Delete(ctx, analyticsCacheKey)
	}
}

// writeFailure maps domain errors to HTTP statuses.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrClassifierUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Model not available")
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: "error", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
