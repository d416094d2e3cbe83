// Package gemini implements the native-wire HTTP surface (SPEC_FULL.md §6:
// GET /v1beta/models, POST /v1beta/models/{model}:generateContent and
// :streamGenerateContent). Adapted from the teacher's
// internal/handlers/gemini package, routed through the shared
// dispatcher.Dispatcher instead of the teacher's routing strategy/client
// cache.
package gemini

import (
	"gcligateway/internal/config"
	"gcligateway/internal/dispatcher"
)

// Handler serves the native Gemini-compatible endpoints.
type Handler struct {
	Dispatcher *dispatcher.Dispatcher
	Cfg        func() config.Config
}

// New builds a gemini.Handler.
func New(d *dispatcher.Dispatcher, cfg func() config.Config) *Handler {
	return &Handler{Dispatcher: d, Cfg: cfg}
}
