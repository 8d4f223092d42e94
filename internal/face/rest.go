package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"github.com/google/uuid"
)

// RESTDetector calls a subscription-keyed face detection endpoint. The
// response is a JSON array with one element per detected face.
type RESTDetector struct {
	endpoint string
	key      string
	client   *http.Client
	logger   *slog.Logger
}

func NewRESTDetector(endpoint, key string, logger *slog.Logger) *RESTDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &RESTDetector{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (d *RESTDetector) Detect(ctx context.Context, img Image) (int, error) {
	reqID := uuid.New().String()
	start := time.Now()
	logCtx := d.logger.With("req_id", reqID)

	body, err := json.Marshal(map[string]string{"url": img.URL})
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to encode detection request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/detect", bytes.NewReader(body))
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to build detection request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", d.key)

	logCtx.Info("face.detect.request", "imageUrl", img.URL)
	resp, err := d.client.Do(req)
	if err != nil {
		logCtx.Error("face.detect.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return 0, apperr.Wrap(apperr.KindUpstream, "face detection request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, "failed to read detection response", err)
	}
	logCtx.Info("face.detect.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return 0, apperr.Wrap(apperr.KindUpstream,
			fmt.Sprintf("face detection returned status %d", resp.StatusCode),
			fmt.Errorf("upstream said: %s", strings.TrimSpace(string(raw))))
	}

	var faces []json.RawMessage
	if err := json.Unmarshal(raw, &faces); err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, "failed to decode detection response", err)
	}
	return len(faces), nil
}
