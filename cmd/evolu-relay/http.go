// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/evoluhq/evolu-sub007/owner"
	"github.com/evoluhq/evolu-sub007/wire"
)

const writeKeyHeader = "X-Evolu-Write-Key"

// router builds the relay's HTTP surface: a chi mux exposing the
// length-prefixed sync endpoint, the WebSocket upgrade, and a
// liveness probe.
func (s *server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Post("/sync/{ownerId}", s.handleSync)
	r.Get("/ws/{ownerId}", s.handleWebsocket)
	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleSync implements spec §4.6's plain-HTTP sync round: the body
// is one wire.Envelope carrying a wire.SyncRequest, the response is
// one wire.Envelope carrying the matching wire.SyncResponse.
func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	ownerID := owner.ID(chi.URLParam(r, "ownerId"))
	writeKey := []byte(r.Header.Get(writeKeyHeader))

	body, err := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	envelope, _, err := wire.DecodeEnvelope(body)
	if err != nil {
		http.Error(w, "malformed envelope", http.StatusBadRequest)
		return
	}
	if envelope.Kind != wire.KindSyncRequest {
		http.Error(w, "expected a sync request envelope", http.StatusBadRequest)
		return
	}
	req, err := wire.DecodeSyncRequest(envelope.Payload)
	if err != nil {
		http.Error(w, "malformed sync request", http.StatusBadRequest)
		return
	}
	if req.OwnerID != string(ownerID) {
		http.Error(w, "owner mismatch between path and payload", http.StatusBadRequest)
		return
	}

	resp, err := s.runSyncRound(r.Context(), ownerID, writeKey, req)
	if err != nil {
		if errors.Is(err, ErrWriteKeyRejected) {
			http.Error(w, "write key rejected", http.StatusForbidden)
			return
		}
		s.logger.Error("relay: sync round failed", zap.String("owner", string(ownerID)), zap.Error(err))
		http.Error(w, "sync round failed", http.StatusInternalServerError)
		return
	}

	payload, err := wire.EncodeSyncResponse(resp)
	if err != nil {
		s.logger.Error("relay: encode sync response failed", zap.Error(err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wire.EncodeEnvelope(wire.Envelope{
		Version: wire.Version,
		Kind:    wire.KindSyncResponse,
		Payload: payload,
	}))
}
