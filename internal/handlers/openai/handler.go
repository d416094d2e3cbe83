// Package openai implements the OpenAI-compatible HTTP surface
// (SPEC_FULL.md §6: GET /v1/models, POST /v1/chat/completions). Adapted
// from the teacher's internal/handlers/openai package, with the
// routing-strategy/credential-manager/client-cache machinery replaced by a
// direct reference to the already-built dispatcher.Dispatcher — this
// gateway's single entry point for the acquire/refresh/call/retry state
// machine, shared with the native surface in internal/handlers/gemini.
package openai

import (
	"gcligateway/internal/config"
	"gcligateway/internal/dispatcher"
)

// Handler serves the OpenAI-compatible endpoints.
type Handler struct {
	Dispatcher *dispatcher.Dispatcher
	Cfg        func() config.Config
}

// New builds an openai.Handler.
func New(d *dispatcher.Dispatcher, cfg func() config.Config) *Handler {
	return &Handler{Dispatcher: d, Cfg: cfg}
}
