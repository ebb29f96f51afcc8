// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evoluhq/evolu-sub007/owner"
	"github.com/evoluhq/evolu-sub007/wire"
)

// upgrader permits any origin: the relay has no browser session state
// to protect and authenticates every sync round by write key, not by
// origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebsocket implements spec §4.6 step 3's preferred transport:
// one binary frame in is one wire.Envelope sync request, one binary
// frame out is the matching sync response, repeated for the
// connection's lifetime.
func (s *server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ownerID := owner.ID(chi.URLParam(r, "ownerId"))
	writeKey := []byte(r.Header.Get(writeKeyHeader))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("relay: websocket upgrade failed", zap.String("owner", string(ownerID)), zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("relay: websocket read failed", zap.String("owner", string(ownerID)), zap.Error(err))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		if err := s.handleWebsocketFrame(r, conn, ownerID, writeKey, data); err != nil {
			s.logger.Error("relay: websocket sync round failed", zap.String("owner", string(ownerID)), zap.Error(err))
			if errors.Is(err, ErrWriteKeyRejected) {
				_ = conn.WriteControl(websocket.ClosePolicyViolation, nil, time.Now().Add(time.Second))
			}
			return
		}
	}
}

func (s *server) handleWebsocketFrame(r *http.Request, conn *websocket.Conn, ownerID owner.ID, writeKey, data []byte) error {
	envelope, _, err := wire.DecodeEnvelope(data)
	if err != nil {
		return err
	}
	if envelope.Kind != wire.KindSyncRequest {
		return errors.New("relay: expected a sync request frame")
	}
	req, err := wire.DecodeSyncRequest(envelope.Payload)
	if err != nil {
		return err
	}

	resp, err := s.runSyncRound(r.Context(), ownerID, writeKey, req)
	if err != nil {
		return err
	}

	payload, err := wire.EncodeSyncResponse(resp)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, wire.EncodeEnvelope(wire.Envelope{
		Version: wire.Version,
		Kind:    wire.KindSyncResponse,
		Payload: payload,
	}))
}
