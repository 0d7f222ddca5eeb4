package evaluation

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"slices"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/security"
)

// Handler provides HTTP handlers for evaluation.
type Handler struct {
	evaluator *Evaluator
	judgments JudgmentWriter
}

// NewHandler creates a new evaluation handler. judgments may be nil, in
// which case the judgments endpoint is not registered.
func NewHandler(e *Evaluator, judgments JudgmentWriter) *Handler {
	return &Handler{evaluator: e, judgments: judgments}
}

// RegisterRoutes registers evaluation routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluation/evaluate", h.handleEvaluate)
	if h.judgments != nil {
		mux.HandleFunc("POST /v1/evaluation/judgments", h.handlePutJudgments)
	}
}

// EvaluateRequest is the body of POST /v1/evaluation/evaluate.
type EvaluateRequest struct {
	Queries []Query `json:"queries"`
}

// JudgmentsRequest is the body of POST /v1/evaluation/judgments.
type JudgmentsRequest struct {
	QueryID   string       `json:"query_id"`
	Relevance RelevanceMap `json:"relevance"`
}

// EmptyBatchResponse is returned with 422 when no query could be scored.
type EmptyBatchResponse struct {
	apperrors.ErrorResponse
	Report *Report `json:"report"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := security.ValidateBatchSize(len(req.Queries)); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}
	for _, q := range req.Queries {
		if err := security.ValidateImageID("query id", q.ID); err != nil {
			apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
			return
		}
		if err := security.ValidateRankedList(q.ID, q.Ranked); err != nil {
			apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
			return
		}
	}

	report, err := h.evaluator.Evaluate(r.Context(), req.Queries)
	if err != nil {
		writeEvaluateError(w, report, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeEvaluateError answers 422 with the report for an EMPTY_BATCH error
// and falls back to the error's own status otherwise.
func writeEvaluateError(w http.ResponseWriter, report *Report, err error) {
	var appErr *apperrors.AppError
	if report != nil && errors.As(err, &appErr) && appErr.Code == apperrors.CodeEmptyBatch {
		writeJSON(w, http.StatusUnprocessableEntity, EmptyBatchResponse{
			ErrorResponse: apperrors.ErrorResponse{
				Error:   appErr.Message,
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			},
			Report: report,
		})
		return
	}
	apperrors.WriteError(w, err)
}

func (h *Handler) handlePutJudgments(w http.ResponseWriter, r *http.Request) {
	var req JudgmentsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := security.ValidateImageID("query_id", req.QueryID); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}
	if err := security.ValidateJudgments(slices.Sorted(maps.Keys(req.Relevance))); err != nil {
		apperrors.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	if err := h.judgments.PutRelevance(r.Context(), req.QueryID, req.Relevance); err != nil {
		apperrors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Classify(req.Relevance).Counts)
}

// decodeBody decodes a size-limited JSON body into v, writing 400 or 413 and
// returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, security.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apperrors.WriteErrorWithStatus(w, http.StatusRequestEntityTooLarge, err)
			return false
		}
		apperrors.WriteErrorWithStatus(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
