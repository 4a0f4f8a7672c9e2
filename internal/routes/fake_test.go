package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"table-call/internal/backend"
	"table-call/internal/config"
	"table-call/internal/jwt"
	"table-call/internal/push"
	"table-call/internal/tablecode"
	"table-call/internal/tableview"
)

type fakeBackend struct {
	mu sync.Mutex

	queue    backend.QueueResponse
	queueErr error
	callErr  error
	closeErr error
	calls    []backend.ButtonCall

	created   []backend.CallInput
	cancelled []backend.CloseCallInput
	closed    []backend.CloseCallInput
	feedbacks []backend.FeedbackInput
}

func (f *fakeBackend) CreateCall(ctx context.Context, in backend.CallInput) (*backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &backend.ButtonCall{ID: "c1", Location: in.Location, TableName: in.TableName, Type: in.Type, StartHour: in.Hour}, nil
}

func (f *fakeBackend) CloseFromCustomer(ctx context.Context, in backend.CloseCallInput) (*backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, in)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &backend.ButtonCall{ID: "c1", FinishHour: in.Hour}, nil
}

func (f *fakeBackend) GetQueue(ctx context.Context, location int, tableName string) (backend.QueueResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueErr != nil {
		return nil, f.queueErr
	}
	return f.queue, nil
}

func (f *fakeBackend) CreateFeedback(ctx context.Context, in backend.FeedbackInput) (*backend.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbacks = append(f.feedbacks, in)
	return &backend.Feedback{ID: 1, Location: in.Location, TableName: in.TableName, StarRating: in.StarRating, Comment: in.Comment}, nil
}

func (f *fakeBackend) ListCalls(ctx context.Context, q backend.ListCallsQuery) ([]backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, nil
}

func (f *fakeBackend) CloseFromPanel(ctx context.Context, in backend.CloseCallInput) (*backend.ButtonCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, in)
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	return &backend.ButtonCall{ID: "c1", FinishHour: in.Hour}, nil
}

func (f *fakeBackend) snapshot() (created []backend.CallInput, feedbacks []backend.FeedbackInput, closed []backend.CloseCallInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.CallInput(nil), f.created...),
		append([]backend.FeedbackInput(nil), f.feedbacks...),
		append([]backend.CloseCallInput(nil), f.closed...)
}

var testNow = time.Date(2026, 10, 14, 19, 5, 0, 0, time.UTC)

var testCodec = tablecode.MustCodec(tablecode.DefaultSecret)

func testToken(t *testing.T, location int, name string) string {
	t.Helper()
	token, err := testCodec.Encode(location, name)
	require.NoError(t, err)
	return token
}

func newTestServer(t *testing.T, b *fakeBackend, signer *jwt.Signer) *Server {
	t.Helper()
	return &Server{
		Cfg: &config.Config{
			Secret:           "test-secret",
			TableSecret:      tablecode.DefaultSecret,
			BaseURL:          "https://cafe.example",
			CallCooldown:     time.Minute,
			FeedbackCooldown: time.Minute,
			NoticeTTL:        time.Minute,
			QRImageSize:      128,
		},
		Codec:    testCodec,
		Backend:  b,
		Views:    tableview.NewRegistry(),
		Signer:   signer,
		Listener: push.Nop{},
		Bindings: push.DefaultBindings(),
		Now:      func() time.Time { return testNow },
	}
}

// newTestEngine wires s like the app does, with inline templates.
func newTestEngine(s *Server) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	render := multitemplate.NewRenderer()
	render.AddFromString("home.html.tmpl", `home`)
	render.AddFromString("table.html.tmpl", `table {{.Table.Location}}/{{.Table.Name}} {{.Token}}`)
	render.AddFromString("active_calls.html.tmpl", `active {{.Location}}`)
	render.AddFromString("qr_list.html.tmpl", `{{range .Entries}}{{.FullURL}}
{{end}}`)
	render.AddFromString("error.html.tmpl", `error {{.Status}} {{.Error.Message}}`)
	r.HTMLRender = render

	r.Use(func(c *gin.Context) {
		c.Set(BaseURLKey, s.Cfg.BaseURL)
		c.Next()
	})
	r.Use(ErrorHandler())

	s.Health(&r.RouterGroup)
	s.TableAPI(r.Group("/api/tables/:token"))
	s.AdminRoutes(r.Group("/admin"))
	s.TablePages(&r.RouterGroup)
	return r
}

func do(r http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
