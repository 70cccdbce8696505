package inference

import (
	"context"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	domsvc "GridCast/internal/domain/service"
	xhttp "GridCast/pkg/http"
)

// modelServer posts JSON to an external model server with a short retry.
type modelServer struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
}

func newModelServer(baseURL string, timeout time.Duration) *modelServer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &modelServer{
		baseURL:  baseURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: 3,
	}
}

func (s *modelServer) post(ctx context.Context, path string, payload, dest interface{}) error {
	if s.baseURL == "" {
		return fmt.Errorf("model server url not configured")
	}
	var err error
	for i := 1; i <= s.attempts; i++ {
		err = s.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    s.baseURL + path,
			Body:   payload,
		}, dest)
		if err == nil {
			return nil
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("post %s: %w", path, err)
}

// RemoteBaseline calls POST {url}/baseline/predict.
type RemoteBaseline struct {
	srv      *modelServer
	features int
}

func NewRemoteBaseline(url string, timeout time.Duration, features int) *RemoteBaseline {
	return &RemoteBaseline{srv: newModelServer(url, timeout), features: features}
}

type baselineRequest struct {
	Features []float64 `json:"features"`
}

type scalarResponse struct {
	Prediction float64 `json:"prediction"`
}

func (m *RemoteBaseline) FeatureCount() int { return m.features }

func (m *RemoteBaseline) Predict(ctx context.Context, fv models.FeatureVector) (float64, error) {
	var resp scalarResponse
	if err := m.srv.post(ctx, "/baseline/predict", baselineRequest{Features: fv}, &resp); err != nil {
		return 0, err
	}
	return resp.Prediction, nil
}

var _ domsvc.BaselineModel = (*RemoteBaseline)(nil)

// RemoteCorrection calls POST {url}/correction/predict.
type RemoteCorrection struct {
	srv    *modelServer
	window int
}

func NewRemoteCorrection(url string, timeout time.Duration, window int) *RemoteCorrection {
	return &RemoteCorrection{srv: newModelServer(url, timeout), window: window}
}

type correctionRequest struct {
	Window []float64 `json:"window"`
}

func (m *RemoteCorrection) WindowSize() int { return m.window }

func (m *RemoteCorrection) Predict(ctx context.Context, window []float64) (float64, error) {
	var resp scalarResponse
	if err := m.srv.post(ctx, "/correction/predict", correctionRequest{Window: window}, &resp); err != nil {
		return 0, err
	}
	return resp.Prediction, nil
}

var _ domsvc.CorrectionModel = (*RemoteCorrection)(nil)
