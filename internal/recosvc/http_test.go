package recosvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nucleus/giftreco/internal/recommend"
)

type stubEmbedder struct{ vec []float32 }

func (s *stubEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return s.vec, nil
}

type stubCandidates struct{ candidates []recommend.Candidate }

func (s *stubCandidates) Load(ctx context.Context, budgetMin, budgetMax *int64, dim int) ([]recommend.Candidate, error) {
	return s.candidates, nil
}

func newTestServer() *Server {
	r := &recommend.Recommender{
		Embedder: &stubEmbedder{vec: []float32{1, 0}},
		Candidates: &stubCandidates{candidates: []recommend.Candidate{
			{ItemID: 1, ItemName: "mug", ItemURL: "https://example.test/1", Embedding: []float32{1, 0}},
		}},
	}
	return NewServer(r)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "reco" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHandleRecommend_Success(t *testing.T) {
	s := newTestServer()
	payload, _ := json.Marshal(map[string]any{"mode": "balanced"})
	req := httptest.NewRequest(http.MethodPost, "/recommendations", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp recommend.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("want 1 item, got %d", len(resp.Items))
	}
}

func TestHandleRecommend_InvalidModeReturns400(t *testing.T) {
	s := newTestServer()
	payload, _ := json.Marshal(map[string]any{"mode": "not_a_real_mode"})
	req := httptest.NewRequest(http.MethodPost, "/recommendations", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRecommend_MalformedBodyReturns400(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/recommendations", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
}
