package web

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/hpungsan/promptshrink/internal/config"
	"github.com/hpungsan/promptshrink/internal/db"
	"github.com/hpungsan/promptshrink/internal/errors"
	"github.com/hpungsan/promptshrink/internal/optimize"
	"github.com/hpungsan/promptshrink/internal/tokenizer"
)

// Handlers contains HTTP route handlers for the review UI and JSON API.
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	tokenizers *tokenizer.Registry
	renderer   *Renderer
}

// HandleOptimizeForm handles GET/POST /optimize — the review UI's request
// form and its rendered result.
func (h *Handlers) HandleOptimizeForm(w http.ResponseWriter, r *http.Request) {
	data := OptimizeFormData{
		PageData: PageData{
			Title:   "Optimize a prompt",
			Version: h.renderer.version,
			Nav:     "optimize",
		},
		TokenizerID:     h.cfg.DefaultTokenizerID,
		DirectiveFormat: "none",
	}

	if r.Method != http.MethodPost {
		h.renderer.renderPage(w, r, "optimize", data)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	data.Prompt = r.FormValue("prompt")
	data.TokenizerID = r.FormValue("tokenizer_id")
	data.OutputLanguage = r.FormValue("output_language")
	data.DirectiveFormat = r.FormValue("directive_format")
	data.Aggressive = r.FormValue("aggressive") == "true"

	req := optimize.Request{
		Prompt:          data.Prompt,
		TokenizerID:     data.TokenizerID,
		OutputLanguage:  data.OutputLanguage,
		DirectiveFormat: optimize.DirectiveFormat(data.DirectiveFormat),
		Aggressive:      data.Aggressive,
	}

	result, err := optimize.Run(r.Context(), h.db, h.cfg, h.tokenizers, req)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Result = result
	data.RationaleHTML = renderRationaleHTML(result.Applied)

	h.renderer.renderPage(w, r, "optimize", data)
}

// optimizeWireRequest mirrors spec.md §6's synchronous request wire shape.
type optimizeWireRequest struct {
	Prompt              string  `json:"prompt"`
	TokenizerID         string  `json:"tokenizer_id"`
	OutputLanguage      string  `json:"output_language,omitempty"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
	Aggressive          bool    `json:"aggressive,omitempty"`
	SelectionPolicy     string  `json:"selection_policy,omitempty"`
	ProtectionPolicy    string  `json:"protection_policy,omitempty"`
	DirectiveFormat     string  `json:"directive_format,omitempty"`
	CallbackURL         string  `json:"callback_url,omitempty"`
}

func (req optimizeWireRequest) toRequest() optimize.Request {
	return optimize.Request{
		Prompt:              req.Prompt,
		TokenizerID:         req.TokenizerID,
		OutputLanguage:      req.OutputLanguage,
		ConfidenceThreshold: req.ConfidenceThreshold,
		Aggressive:          req.Aggressive,
		SelectionPolicy:     optimize.SelectionPolicy(req.SelectionPolicy),
		ProtectionPolicy:    req.ProtectionPolicy,
		DirectiveFormat:     optimize.DirectiveFormat(req.DirectiveFormat),
	}
}

// writeAPIError renders the error taxonomy wire shape from spec.md §6 as
// JSON, unconditionally — unlike renderError, the /v1/* routes are JSON-only
// regardless of the request's Accept header.
func writeAPIError(w http.ResponseWriter, err error) {
	oErr, ok := err.(*errors.OptimizeError)
	if !ok {
		oErr = errors.NewInternal(err)
	}
	renderJSON(w, oErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(oErr.Code),
			"message": oErr.Message,
			"status":  oErr.Status,
		},
	})
}

// HandleOptimizeAPI handles POST /v1/optimize — spec.md §6's synchronous
// Request/Response.
func (h *Handlers) HandleOptimizeAPI(w http.ResponseWriter, r *http.Request) {
	var wire optimizeWireRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeAPIError(w, errors.NewInvalidRequest("invalid JSON body: "+err.Error()))
		return
	}

	result, err := optimize.Run(r.Context(), h.db, h.cfg, h.tokenizers, wire.toRequest())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	renderJSON(w, http.StatusOK, result)
}

// HandleOptimizeWebhook handles POST /v1/optimize/webhook — the webhook
// variant of spec.md §6: same request/response, plus a best-effort,
// non-retried POST of the response body to callback_url if present.
func (h *Handlers) HandleOptimizeWebhook(w http.ResponseWriter, r *http.Request) {
	var wire optimizeWireRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeAPIError(w, errors.NewInvalidRequest("invalid JSON body: "+err.Error()))
		return
	}

	result, err := optimize.Run(r.Context(), h.db, h.cfg, h.tokenizers, wire.toRequest())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if wire.CallbackURL != "" {
		go deliverCallback(wire.CallbackURL, result)
	}

	renderJSON(w, http.StatusOK, result)
}

// deliverCallback best-effort POSTs result to url once. Failures are logged,
// never retried, per spec.md §6.
func deliverCallback(url string, result *optimize.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("webhook callback to %s: encode result: %v", url, err)
		return
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("webhook callback to %s failed: %v", url, err)
		return
	}
	resp.Body.Close()
}

// HandlePatternsAPI handles GET /v1/patterns — read-only pattern catalog
// inspection, the same path promptshrink's CLI `patterns list` uses.
func (h *Handlers) HandlePatternsAPI(w http.ResponseWriter, r *http.Request) {
	patterns, err := db.LoadPatterns(h.db)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, patterns)
}

// HandleConceptsAPI handles GET /v1/concepts — read-only concept catalog
// inspection, the same path promptshrink's CLI `concepts list` uses.
func (h *Handlers) HandleConceptsAPI(w http.ResponseWriter, r *http.Request) {
	concepts, err := db.ListConcepts(h.db)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, concepts)
}

// renderRationaleHTML renders each applied rewrite's "original → replacement"
// text as markdown for the HTML review form.
func renderRationaleHTML(applied []optimize.Rewrite) []template.HTML {
	out := make([]template.HTML, len(applied))
	for i, rw := range applied {
		out[i] = renderMarkdown(rw.Original + " → " + rw.Replacement)
	}
	return out
}
