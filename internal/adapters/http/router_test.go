package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

func TestAnswerQueryRequiresTenantHeader(t *testing.T) {
	answerer := &fakeAnswerer{response: okResponse()}
	handler := NewRouter(answerer, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/answers/query", strings.NewReader(`{"question":"how?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without org header, got %d", res.Code)
	}
	if answerer.calls != 0 {
		t.Fatalf("answerer must not be called without a tenant")
	}
}

func TestAnswerQueryRejectsEmptyQuestion(t *testing.T) {
	handler := NewRouter(&fakeAnswerer{response: okResponse()}, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/answers/query", strings.NewReader(`{"question":"  "}`))
	req.Header.Set(tenantHeader, "org-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty question, got %d", res.Code)
	}
}

func TestAnswerQueryReturnsPipelineResponse(t *testing.T) {
	handler := NewRouter(&fakeAnswerer{response: okResponse()}, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/answers/query", strings.NewReader(`{"question":"what changed?"}`))
	req.Header.Set(tenantHeader, "org-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body domain.FinalResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Answer != "fine" {
		t.Fatalf("unexpected answer: %q", body.Answer)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAnswerQueryMapsTemporaryErrorTo503(t *testing.T) {
	answerer := &fakeAnswerer{err: domain.WrapError(domain.ErrTemporary, "ask", fmt.Errorf("downstream down"))}
	handler := NewRouter(answerer, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/answers/query", strings.NewReader(`{"question":"anything"}`))
	req.Header.Set(tenantHeader, "org-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestAnswerQueryMapsInvalidInputTo400(t *testing.T) {
	answerer := &fakeAnswerer{err: domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("bad filters"))}
	handler := NewRouter(answerer, RouterOptions{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/answers/query", strings.NewReader(`{"question":"anything"}`))
	req.Header.Set(tenantHeader, "org-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
