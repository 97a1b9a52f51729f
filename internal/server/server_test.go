package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

func init() { gin.SetMode(gin.TestMode) }

type captureHandler struct {
	mu   sync.Mutex
	last core.Invocation
	rid  string
	res  core.Result
}

func (h *captureHandler) Process(ctx context.Context, inv core.Invocation) core.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = inv
	h.rid = common.RequestIDFromContext(ctx)
	return h.res
}

func okHandler() *captureHandler {
	return &captureHandler{res: core.Result{
		StatusCode: 200,
		Message:    "✅ Processed and saved to ocr-results/ocr_output_2025-03-14.xlsx",
		ReportKey:  "ocr-results/ocr_output_2025-03-14.xlsx",
		Rows:       1,
	}}
}

func TestExtractEndpoint(t *testing.T) {
	h := okHandler()
	r := NewHTTPHandler(h, 0, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("png-bytes"))
	req.Header.Set("filename", "scan.png")
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, h.res.Message, w.Body.String())
	assert.Equal(t, h.res.ReportKey, w.Header().Get(headerReportKey))
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	assert.Equal(t, "scan.png", h.last.Filename)
	assert.Equal(t, "image/png", h.last.ContentType)
	assert.Equal(t, []byte("png-bytes"), h.last.Body)
	assert.False(t, h.last.Base64)
	assert.Equal(t, "http", h.last.Source)
	assert.Equal(t, "req-42", h.rid)
}

func TestExtractEndpointBase64AndStatus(t *testing.T) {
	h := &captureHandler{res: core.Result{StatusCode: 413, Message: "❌ Error: File too large (max 5 MB)"}}
	r := NewHTTPHandler(h, 0, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/extract?isBase64Encoded=true", strings.NewReader("aGVsbG8="))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, 413, w.Code)
	assert.Equal(t, "❌ Error: File too large (max 5 MB)", w.Body.String())
	assert.True(t, h.last.Base64)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestExtractEndpointBodyIsBounded(t *testing.T) {
	h := okHandler()
	r := NewHTTPHandler(h, 10, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(strings.Repeat("x", 1000)))
	req.Header.Set("X-Body-Encoding", "base64")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, h.last.Body, 11, "one byte past the limit is enough to reject")
	assert.True(t, h.last.Base64)
}

func TestEventsEndpoint(t *testing.T) {
	h := okHandler()
	r := NewHTTPHandler(h, 0, nil, nil)

	body := `{"headers":{"Filename":"letter.pdf","content-type":"application/pdf"},"body":"JVBERi0=","isBase64Encoded":true}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "letter.pdf", h.last.Filename)
	assert.Equal(t, "application/pdf", h.last.ContentType)
	assert.Equal(t, []byte("JVBERi0="), h.last.Body)
	assert.True(t, h.last.Base64)
	assert.Equal(t, "event", h.last.Source)
}

func TestEventsEndpointRejectsBadEvents(t *testing.T) {
	r := NewHTTPHandler(okHandler(), 0, nil, nil)

	for name, body := range map[string]string{
		"not json":      `{"body":`,
		"missing body":  `{"headers":{}}`,
		"body not text": `{"body":42}`,
		"bad header":    `{"body":"x","headers":{"filename":7}}`,
		"bad flag":      `{"body":"x","isBase64Encoded":"yes"}`,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.True(t, strings.HasPrefix(w.Body.String(), "❌ Error: "), name)
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTTPHandler(okHandler(), 0, nil, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	failing := func(context.Context) error { return errors.New("db down") }
	w = httptest.NewRecorder()
	NewHTTPHandler(okHandler(), 0, failing, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "db down")
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	h := map[string]string{"FILENAME": "a.png", "content-type": "image/png"}
	assert.Equal(t, "a.png", Header(h, "filename"))
	assert.Equal(t, "image/png", Header(h, "Content-Type"))
	assert.Equal(t, "", Header(h, "x-missing"))
	assert.Equal(t, "", Header(nil, "filename"))
}

func dialBuf(t *testing.T, h Handler) *grpc.ClientConn {
	t.Helper()
	gs, _, err := NewGRPCServer(h, common.DefaultMaxBodyBytes, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCExtract(t *testing.T) {
	h := okHandler()
	conn := dialBuf(t, h)

	req, err := structpb.NewStruct(map[string]any{
		"filename":     "scan.png",
		"content_type": "image/png",
		"body":         base64.StdEncoding.EncodeToString([]byte("png")),
	})
	require.NoError(t, err)

	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(context.Background(), "/"+ExtractionServiceName+"/Extract", req, out))

	fields := out.GetFields()
	assert.Equal(t, float64(200), fields["status_code"].GetNumberValue())
	assert.Equal(t, h.res.Message, fields["message"].GetStringValue())
	assert.Equal(t, h.res.ReportKey, fields["report_key"].GetStringValue())
	assert.Equal(t, "scan.png", h.last.Filename)
	assert.True(t, h.last.Base64)
	assert.Equal(t, "grpc", h.last.Source)
}

func TestGRPCExtractRequiresBody(t *testing.T) {
	conn := dialBuf(t, okHandler())

	req, err := structpb.NewStruct(map[string]any{"filename": "scan.png"})
	require.NoError(t, err)
	err = conn.Invoke(context.Background(), "/"+ExtractionServiceName+"/Extract", req, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	conn := dialBuf(t, okHandler())
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ExtractionServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPCAcceptsBodiesAroundTheLimit(t *testing.T) {
	for _, size := range []int{4<<20 + 512<<10, int(common.DefaultMaxBodyBytes) - 4, int(common.DefaultMaxBodyBytes) + 4} {
		h := okHandler()
		conn := dialBuf(t, h)

		req, err := structpb.NewStruct(map[string]any{
			"filename": "big.pdf",
			"body":     strings.Repeat("A", size),
		})
		require.NoError(t, err)

		out := new(structpb.Struct)
		require.NoError(t, conn.Invoke(context.Background(), "/"+ExtractionServiceName+"/Extract", req, out), "size %d", size)
		assert.Len(t, h.last.Body, size)
	}
}

func TestMaxRecvMsgSize(t *testing.T) {
	assert.Equal(t, 2*int(common.DefaultMaxBodyBytes)+(1<<16), MaxRecvMsgSize(0))
	assert.Equal(t, 2*1024+(1<<16), MaxRecvMsgSize(1024))
}
