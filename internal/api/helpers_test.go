package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/controller"
	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/kdimtricp/lostfound/internal/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type TestServer struct {
	Server   *httptest.Server
	Sessions *session.Manager
}

func setupTestServer(t *testing.T, client ai.Client) *TestServer {
	t.Helper()
	if client == nil {
		client = ai.NewStubClient()
	}

	sessions, err := session.NewManager(client, session.Config{
		Backend:    session.BackendSQLite,
		Controller: controller.Options{MaxImageSize: media.DefaultMaxImageSize},
	})
	require.NoError(t, err)

	app := &App{
		Sessions:      sessions,
		MaxUploadSize: 5 << 20,
		Logger:        zap.NewNop(),
	}

	ts := &TestServer{
		Server:   httptest.NewServer(NewRouter(app)),
		Sessions: sessions,
	}
	t.Cleanup(func() {
		ts.Server.Close()
		sessions.Close()
	})
	return ts
}

// newBrowser returns a client with its own cookie jar that does not follow
// redirects.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

type reportForm struct {
	kind        string
	description string
	location    string
	image       []byte
}

func postReport(t *testing.T, c *http.Client, url string, f reportForm) *http.Response {
	t.Helper()
	resp, err := c.Do(newReportRequest(t, url, f))
	require.NoError(t, err)
	return resp
}

func newReportRequest(t *testing.T, url string, f reportForm) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("kind", f.kind))
	require.NoError(t, writer.WriteField("description", f.description))
	require.NoError(t, writer.WriteField("location", f.location))

	if f.image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="item.png"`)
		h.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.image)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// blockingClient holds every extraction until release is closed.
type blockingClient struct {
	*ai.StubClient
	started chan struct{}
	release chan struct{}
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		StubClient: ai.NewStubClient(),
		started:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
}

func (c *blockingClient) ExtractFeatures(ctx context.Context, req ai.ExtractRequest) (models.ItemFeatures, error) {
	select {
	case c.started <- struct{}{}:
	default:
	}
	<-c.release
	return c.StubClient.ExtractFeatures(ctx, req)
}
