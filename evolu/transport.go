// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package evolu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/evoluhq/evolu-sub007/config"
	"github.com/evoluhq/evolu-sub007/merkle"
	"github.com/evoluhq/evolu-sub007/ports"
	syncengine "github.com/evoluhq/evolu-sub007/sync"
	"github.com/evoluhq/evolu-sub007/wire"
)

// offlineTransport is used when a host configures neither a WebSocket
// nor a relay URL: every sync round fails as a retryable
// NetworkError rather than the engine panicking on a nil Transport.
type offlineTransport struct{}

func (offlineTransport) SyncRound(ctx context.Context, req syncengine.Request) (syncengine.Response, error) {
	return syncengine.Response{}, &syncengine.NetworkError{Cause: errors.New("evolu: no transport configured")}
}

// websocketTransport implements syncengine.Transport over a
// ports.WebSocket, the spec §4.6 step 3 preferred transport. The sync
// engine only ever has one round in flight per owner (Run processes
// one trigger at a time), so a single pending-response slot is
// enough to correlate a request with its reply.
type websocketTransport struct {
	ws  ports.WebSocket
	cfg config.Sync

	mu     sync.Mutex
	respCh chan []byte
}

func newWebSocketTransport(ws ports.WebSocket, cfg config.Sync) *websocketTransport {
	t := &websocketTransport{ws: ws, cfg: cfg, respCh: make(chan []byte, 1)}
	ws.OnMessage(func(data []byte) {
		select {
		case t.respCh <- data:
		default:
			// A response arrived with nothing waiting on it (e.g. a
			// prior round already timed out); drop it rather than
			// block the host's onMessage callback.
		}
	})
	return t
}

func (t *websocketTransport) SyncRound(ctx context.Context, req syncengine.Request) (syncengine.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ws.State() != ports.ConnOpen {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: fmt.Errorf("evolu: websocket is not open")}
	}

	frame, err := encodeSyncRequestFrame(req)
	if err != nil {
		return syncengine.Response{}, err
	}

	roundCtx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
	defer cancel()

	if err := t.ws.Send(roundCtx, frame); err != nil {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: err}
	}

	select {
	case <-roundCtx.Done():
		return syncengine.Response{}, &syncengine.NetworkError{Cause: roundCtx.Err()}
	case data := <-t.respCh:
		return decodeSyncResponseFrame(data)
	}
}

// httpTransport implements syncengine.Transport as the spec §4.6 step
// 3 fallback: a single POST per sync round against the relay's
// /sync/{ownerId} endpoint. Business-level rejections surface as real
// HTTP status codes, which this maps back onto the sync package's
// terminal error kinds.
type httpTransport struct {
	baseURL  string
	writeKey []byte
	client   *http.Client
	cfg      config.Sync
}

func newHTTPTransport(baseURL string, writeKey []byte, cfg config.Sync) *httpTransport {
	return &httpTransport{
		baseURL:  baseURL,
		writeKey: writeKey,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		cfg:      cfg,
	}
}

func (t *httpTransport) SyncRound(ctx context.Context, req syncengine.Request) (syncengine.Response, error) {
	frame, err := encodeSyncRequestFrame(req)
	if err != nil {
		return syncengine.Response{}, err
	}

	roundCtx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/sync/%s", t.baseURL, string(req.OwnerID))
	httpReq, err := http.NewRequestWithContext(roundCtx, http.MethodPost, url, bytes.NewReader(frame))
	if err != nil {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("X-Evolu-Write-Key", string(t.writeKey))

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: err}
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(httpResp.Body, 64<<20))
		if err != nil {
			return syncengine.Response{}, &syncengine.NetworkError{Cause: err}
		}
		return decodeSyncResponseFrame(body)
	case http.StatusPaymentRequired:
		return syncengine.Response{}, syncengine.ErrPaymentRequired
	default:
		return syncengine.Response{}, &syncengine.ServerError{Status: httpResp.StatusCode}
	}
}

func encodeSyncRequestFrame(req syncengine.Request) ([]byte, error) {
	wireReq := wire.SyncRequest{
		OwnerID:    string(req.OwnerID),
		NodeID:     req.NodeID,
		MerkleTree: merkle.Encode(req.Merkle),
		Messages:   req.Messages,
	}
	payload, err := wire.EncodeSyncRequest(wireReq)
	if err != nil {
		return nil, fmt.Errorf("evolu: encode sync request: %w", err)
	}
	return wire.EncodeEnvelope(wire.Envelope{
		Version: wire.Version,
		Kind:    wire.KindSyncRequest,
		Payload: payload,
	}), nil
}

func decodeSyncResponseFrame(data []byte) (syncengine.Response, error) {
	envelope, _, err := wire.DecodeEnvelope(data)
	if err != nil {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: err}
	}
	if envelope.Kind != wire.KindSyncResponse {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: fmt.Errorf("evolu: unexpected envelope kind %d", envelope.Kind)}
	}
	resp, err := wire.DecodeSyncResponse(envelope.Payload)
	if err != nil {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: err}
	}
	tree, err := merkle.Decode(resp.MerkleTree)
	if err != nil {
		return syncengine.Response{}, &syncengine.NetworkError{Cause: err}
	}
	return syncengine.Response{Merkle: tree, Messages: resp.Messages}, nil
}
