package dispatch

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nalonix/better-auth/internal/pkg/pkgrouter"
	"github.com/nalonix/better-auth/internal/pkg/pkguid"
)

type routerFixture struct {
	router  *pkgrouter.Router
	capture *captureHandler
	order   *[]string
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	var order []string

	builtins := []Endpoint{
		{
			Name:   "signIn",
			Path:   "/sign-in/email",
			Method: http.MethodPost,
			Handler: func(ctx *Context) (any, error) {
				order = append(order, "handler")
				ctx.SetCookie(&http.Cookie{Name: "session", Value: "tok-1", Path: "/"})
				return map[string]any{"email": ctx.Body["email"]}, nil
			},
		},
		{
			Name:   "short",
			Path:   "/short",
			Method: http.MethodPost,
			Handler: func(ctx *Context) (any, error) {
				order = append(order, "short-handler")
				return nil, nil
			},
		},
	}

	plugins := []Plugin{{
		ID: "probe",
		Middlewares: []Middleware{
			{
				Path: "/sign-in/*",
				Handler: func(ctx *Context) (any, error) {
					order = append(order, "mw:sign-in")
					return nil, nil
				},
			},
			{
				Path: "/short",
				Handler: func(ctx *Context) (any, error) {
					order = append(order, "mw:short")
					return map[string]string{"short": "circuited"}, nil
				},
			},
		},
	}}

	ambient := &Ambient{BasePath: "/api/auth", Values: map[string]any{"base_path": "/api/auth"}}
	table := Assemble(ambient, builtins, plugins)

	capture := &captureHandler{}
	classifier := NewClassifier(slog.New(capture), false)

	router := pkgrouter.NewRouter(pkguid.NewUUID())
	BuildRouter(router, NewDispatcher(table), CollectMiddlewares(ambient, plugins), RouterConfig{
		BasePath:       "/api/auth",
		Ambient:        ambient,
		Classifier:     classifier,
		TrustedOrigins: []string{"https://app.example.com"},
	})

	return &routerFixture{router: router, capture: capture, order: &order}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouterEndToEnd(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in/email", strings.NewReader(`{"email":"a@b.c"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["email"] != "a@b.c" {
		t.Fatalf("expected parsed body to reach the handler, got %v", body)
	}

	cookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "session=tok-1") {
		t.Fatalf("expected session cookie on the response, got %q", cookie)
	}

	want := []string{"mw:sign-in", "handler"}
	got := *f.order
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected order %v, got %v", want, got)
	}
}

func TestRouterCSRFRunsBeforePluginMiddleware(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in/email", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://evil.example.com")

	rec := f.do(req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(*f.order) != 0 {
		t.Fatalf("plugin middleware or handler ran past the rejected origin: %v", *f.order)
	}
	if f.capture.len() != 1 {
		t.Fatalf("expected one classified failure, got %d", f.capture.len())
	}
}

func TestRouterMiddlewareShortCircuit(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/auth/short", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["short"] != "circuited" {
		t.Fatalf("expected middleware response, got %v", body)
	}

	for _, step := range *f.order {
		if step == "short-handler" {
			t.Fatal("handler ran despite the middleware short-circuit")
		}
	}
}

func TestRouterRejectsMalformedBody(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in/email", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.capture.len() != 1 {
		t.Fatalf("expected one classified failure, got %d", f.capture.len())
	}
}

func TestRouterSyntheticEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/ok", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body["ok"] {
		t.Fatalf("unexpected body %v", body)
	}
}
