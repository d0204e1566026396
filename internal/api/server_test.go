package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/local/pdfintake/internal/document"
	"github.com/local/pdfintake/internal/identity"
	"github.com/local/pdfintake/internal/intake"
	"github.com/local/pdfintake/internal/notify"
	"github.com/local/pdfintake/internal/publish"
	"github.com/local/pdfintake/internal/selection"
	"github.com/local/pdfintake/internal/statuscheck"
	"github.com/local/pdfintake/internal/worklist"
)

type contentParser map[string]int

func (contentParser) Name() string { return "content" }

func (p contentParser) Inspect(data []byte) (document.Info, error) {
	n, ok := p[string(data)]
	if !ok {
		return document.Info{}, errors.New("Invalid or corrupted file")
	}
	return document.Info{PageCount: n, FirstPage: document.Dim{Width: 595, Height: 842}}, nil
}

type fakeRenderer struct{}

func (fakeRenderer) RenderJPEG(data []byte, page int) ([]byte, int, int, error) {
	return []byte(fmt.Sprintf("jpeg:%s:%d", data, page)), 10, 10, nil
}

type env struct {
	srv   *httptest.Server
	coord *selection.Coordinator
	store *worklist.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := worklist.NewStore()
	coord := selection.New(&identity.Sequence{Prefix: "req"})
	bridge := publish.NewBridge()
	latest := &publish.Latest{}
	bridge.Subscribe(latest)
	feed := notify.NewFeed(0)

	svc, err := intake.New(intake.Dependencies{
		Validator: document.NewValidator(contentParser{"one": 1, "three": 3}, document.Options{}),
		Selector:  coord,
		Store:     store,
		Bridge:    bridge,
		Notifier:  notify.NewHub(feed),
		IDs:       &identity.Sequence{Prefix: "item"},
	}, intake.Options{})
	require.NoError(t, err)

	mux := http.NewServeMux()
	New(Dependencies{
		Intake:    svc,
		Selection: coord,
		Latest:    latest,
		Feed:      feed,
		Renderer:  fakeRenderer{},
		Health:    statuscheck.New(statuscheck.Options{Parser: document.NewPDFCPUParser()}),
	}).RegisterRoutes(mux)

	e := &env{srv: httptest.NewServer(mux), coord: coord, store: store}
	t.Cleanup(e.srv.Close)
	return e
}

type upload struct{ name, mime, content string }

// post uploads files and decodes the batch result. It does not touch t so it
// can run off the test goroutine.
func (e *env) post(files ...upload) (*http.Response, intake.BatchResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.name))
		h.Set("Content-Type", f.mime)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, intake.BatchResult{}, err
		}
		_, _ = part.Write([]byte(f.content))
	}
	if err := mw.Close(); err != nil {
		return nil, intake.BatchResult{}, err
	}

	resp, err := http.Post(e.srv.URL+"/intake/files", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, intake.BatchResult{}, err
	}
	defer resp.Body.Close()
	var res intake.BatchResult
	if resp.StatusCode == http.StatusOK {
		err = json.NewDecoder(resp.Body).Decode(&res)
	}
	return resp, res, err
}

func (e *env) submit(t *testing.T, files ...upload) (*http.Response, intake.BatchResult) {
	t.Helper()
	resp, res, err := e.post(files...)
	require.NoError(t, err)
	return resp, res
}

// commitWhenPending resolves the next selection request with pages.
func commitWhenPending(c *selection.Coordinator, pages []int) {
	for i := 0; i < 300; i++ {
		if p, ok := c.Pending(); ok {
			_, _ = c.Commit(p.ID, pages)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (e *env) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *env) waitPending(t *testing.T) pendingResp {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp := e.do(t, http.MethodGet, "/selection/pending", "")
		if resp.StatusCode == http.StatusOK {
			var p pendingResp
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no pending selection")
	return pendingResp{}
}

func TestSubmitSinglePageAndList(t *testing.T) {
	e := newEnv(t)
	resp, res := e.submit(t,
		upload{"a.pdf", "application/pdf", "one"},
		upload{"c.txt", "text/plain", "hello"},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, res.Added)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, "1 file(s) added successfully. 1 file(s) failed to load.", res.Summary)

	resp = e.do(t, http.MethodGet, "/intake/items", "")
	var items []worklist.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	require.Equal(t, "a.pdf", items[0].Source.Name)
	require.Equal(t, []int{0}, items[0].SelectedPages)

	resp = e.do(t, http.MethodGet, "/intake/snapshot", "")
	var m publish.Manifest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	require.Len(t, m.Files, 1)
	require.Equal(t, 3, m.Files[0].Size)

	resp = e.do(t, http.MethodGet, "/notifications", "")
	var feed []notify.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&feed))
	require.Equal(t, "c.txt is not a PDF file", feed[0].Notification.Message)
	require.NotNil(t, feed[len(feed)-1].Dialog)
}

func TestSelectionSurfaceProtocol(t *testing.T) {
	e := newEnv(t)

	done := make(chan intake.BatchResult, 1)
	go func() {
		_, res, _ := e.post(upload{"b.pdf", "application/pdf", "three"})
		done <- res
	}()

	p := e.waitPending(t)
	require.Equal(t, "b.pdf", p.Name)
	require.Equal(t, 3, p.TotalPages)

	resp := e.do(t, http.MethodGet, "/selection/pending/pages/2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	img, _ := io.ReadAll(resp.Body)
	require.Equal(t, "jpeg:three:2", string(img))
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/selection/pending/pages/3", "").StatusCode)

	require.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/selection/"+p.RequestID+"/commit", `{"pages":[]}`).StatusCode)
	require.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/selection/stale/commit", `{"pages":[0]}`).StatusCode)

	resp = e.do(t, http.MethodPost, "/selection/"+p.RequestID+"/commit", `{"pages":[2,0]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out outcomeResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, []int{0, 2}, out.Pages)

	select {
	case res := <-done:
		require.Equal(t, 1, res.Added)
		require.Equal(t, "File added successfully", res.Summary)
	case <-time.After(3 * time.Second):
		t.Fatal("upload did not finish")
	}
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodGet, "/selection/pending", "").StatusCode)
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/selection/"+p.RequestID+"/cancel", "").StatusCode)
}

func TestEditThenCancel(t *testing.T) {
	e := newEnv(t)
	go commitWhenPending(e.coord, []int{0, 2})
	_, res := e.submit(t, upload{"b.pdf", "application/pdf", "three"})
	id := res.Files[0].ID

	edit := func(body string, commit bool) outcomeResp {
		result := make(chan *http.Response, 1)
		go func() {
			resp, err := http.Post(e.srv.URL+"/intake/items/"+id+"/edit", "application/json", nil)
			if err != nil {
				resp = &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader("{}"))}
			}
			result <- resp
		}()
		p := e.waitPending(t)
		if commit {
			require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/selection/"+p.RequestID+"/commit", body).StatusCode)
		} else {
			require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/selection/"+p.RequestID+"/cancel", "").StatusCode)
		}
		resp := <-result
		defer resp.Body.Close()
		var out outcomeResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	require.Equal(t, []int{1}, edit(`{"pages":[1]}`, true).Pages)
	require.Equal(t, "cancelled", edit("", false).Resolution)

	it, ok := e.store.Get(id)
	require.True(t, ok)
	require.Equal(t, []int{1}, it.SelectedPages)
}

func TestItemActions(t *testing.T) {
	e := newEnv(t)
	_, res := e.submit(t,
		upload{"a.pdf", "application/pdf", "one"},
		upload{"bad.pdf", "application/pdf", "garbage"},
		upload{"z.pdf", "application/pdf", "one"},
	)
	a, bad, z := res.Files[0].ID, res.Files[1].ID, res.Files[2].ID

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/intake/items/"+a+"/drag", "").StatusCode)
	require.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/intake/items/"+bad+"/drag", "").StatusCode)

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/intake/order", fmt.Sprintf(`{"ids":["%s","%s"]}`, z, a)).StatusCode)
	require.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/intake/order", fmt.Sprintf(`{"ids":["%s"]}`, z)).StatusCode)
	require.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/intake/order", `{`).StatusCode)

	require.Equal(t, http.StatusUnprocessableEntity, e.do(t, http.MethodPost, "/intake/items/"+a+"/pages", `{"pages":[1]}`).StatusCode)
	require.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/intake/items/"+bad+"/pages", `{"pages":[0]}`).StatusCode)
	require.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/intake/items/"+a+"/edit", "").StatusCode)

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/intake/items/"+a, "").StatusCode)
	require.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/intake/items/"+a, "").StatusCode)

	items := e.store.Items()
	require.Len(t, items, 2)
	require.Equal(t, z, items[0].ID)
	require.Equal(t, bad, items[1].ID)
}

func TestExternalErrorReport(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/intake/errors", `{}`).StatusCode)
	require.Equal(t, http.StatusAccepted, e.do(t, http.MethodPost, "/intake/errors", `{"message":"Selection must include at least one page"}`).StatusCode)

	resp := e.do(t, http.MethodGet, "/notifications?after=0", "")
	var feed []notify.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&feed))
	require.Len(t, feed, 1)
	require.Equal(t, notify.KindError, feed[0].Notification.Kind)

	require.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/notifications?after=x", "").StatusCode)
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/intake/files", `{"files":[]}`).StatusCode)
	resp, _ := e.submit(t)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, http.StatusMethodNotAllowed, e.do(t, http.MethodGet, "/intake/files", "").StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum statuscheck.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	require.True(t, sum.Parser.OK)
	require.False(t, sum.Redis.OK)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/metrics", "").StatusCode)
}
