package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/petalworks/blossom/internal/aiclient"
	"github.com/petalworks/blossom/internal/domain"
)

// Feature endpoints all follow the same shape: decode the request, run the
// vendor call through the entitlement gate, and answer with the result plus
// the payment receipt. A vendor failure costs nothing and maps to 502.

type analyzeRequest struct {
	Image  string   `json:"image"`  // base64 JPEG
	Images []string `json:"images"` // multi-image variant
}

type repliesRequest struct {
	Message string `json:"message"`
}

type oracleRequest struct {
	Image    string `json:"image"`
	Question string `json:"question"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, "image must be base64 JPEG data")
		return
	}

	var result *aiclient.AnalysisResult
	receipt, err := s.gate.Do(r.Context(), domain.FeatureAnalysis, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.ai.Analyze(ctx, image)
		return opErr
	})
	if err != nil {
		writeGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result, "receipt": receipt})
}

func (s *Server) handleAnalyzeMulti(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Images) == 0 {
		writeError(w, http.StatusBadRequest, "images must contain at least one entry")
		return
	}
	images := make([][]byte, 0, len(req.Images))
	for _, enc := range req.Images {
		img, err := base64.StdEncoding.DecodeString(enc)
		if err != nil || len(img) == 0 {
			writeError(w, http.StatusBadRequest, "images must be base64 JPEG data")
			return
		}
		images = append(images, img)
	}

	var result *aiclient.AnalysisResult
	receipt, err := s.gate.Do(r.Context(), domain.FeatureMultiAnalysis, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.ai.AnalyzeMulti(ctx, images)
		return opErr
	})
	if err != nil {
		writeGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result, "receipt": receipt})
}

func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	var req repliesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	var result *aiclient.ReplyOptions
	receipt, err := s.gate.Do(r.Context(), domain.FeatureReplies, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.ai.Replies(ctx, req.Message)
		return opErr
	})
	if err != nil {
		writeGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result, "receipt": receipt})
}

func (s *Server) handleOracle(w http.ResponseWriter, r *http.Request) {
	var req oracleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, "image must be base64 JPEG data")
		return
	}

	var result *aiclient.OracleResult
	receipt, err := s.gate.Do(r.Context(), domain.FeatureOracle, func(ctx context.Context) error {
		var opErr error
		result, opErr = s.ai.Oracle(ctx, image, req.Question)
		return opErr
	})
	if err != nil {
		writeGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result, "receipt": receipt})
}

// writeGateError maps gate failures onto HTTP statuses. Insufficient funds
// get 402 with enough detail for the client to open the recharge screen.
func writeGateError(w http.ResponseWriter, err error) {
	var ib *domain.InsufficientBalanceError
	if errors.As(err, &ib) {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error": map[string]interface{}{
				"message":   err.Error(),
				"type":      "insufficient_balance",
				"required":  ib.Required,
				"current":   ib.Current,
				"shortfall": ib.Shortfall(),
			},
		})
		return
	}
	if errors.Is(err, domain.ErrUnknownFeature) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, domain.ErrExternalOperation) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
