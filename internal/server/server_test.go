package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gifshelf/internal/blobstore"
	"gifshelf/internal/catalog"
	"gifshelf/internal/config"
	"gifshelf/internal/export"
	"gifshelf/internal/logging"
	"gifshelf/internal/pipeline"
	"gifshelf/internal/renderer"
	"gifshelf/internal/renderqueue"
	"gifshelf/internal/server"
	"gifshelf/internal/testsupport"
)

type fixture struct {
	cfg *config.Config
	ts  *httptest.Server
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blobstore.New(cfg.Paths.UploadsDir)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	script := testsupport.WriteStubRenderer(t, t.TempDir(), 0)
	svc := renderer.NewService("/bin/sh", script)
	p := pipeline.New(store, blobs, svc, logging.NewNop())

	queue := renderqueue.New(p, cfg.Renderer, logging.NewNop())
	queue.Start()
	t.Cleanup(queue.Stop)

	exports := export.NewService(store, blobs, logging.NewNop())
	srv := server.New(cfg, store, blobs, p, queue, exports, logging.NewNop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{cfg: cfg, ts: ts}
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, f.ts.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) doJSON(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return f.do(t, method, path, bytes.NewReader(data), "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (f *fixture) upload(t *testing.T, filename, displayName string) catalog.Image {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake image bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if displayName != "" {
		if err := mw.WriteField("name", displayName); err != nil {
			t.Fatalf("write name field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/api/images", &buf, mw.FormDataContentType())
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d, body %s", resp.StatusCode, body)
	}
	return decode[catalog.Image](t, resp)
}

func TestUploadAndCatalogListing(t *testing.T) {
	f := newFixture(t)

	image := f.upload(t, "cat.png", "My Cat")
	if image.ID == "" || image.OriginalName != "cat.png" {
		t.Fatalf("unexpected upload response: %+v", image)
	}
	if !strings.HasSuffix(image.Filename, ".png") {
		t.Fatalf("stored filename %q does not keep the extension", image.Filename)
	}

	resp := f.do(t, http.MethodGet, "/api/catalog", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("catalog status = %d", resp.StatusCode)
	}
	listing := decode[struct {
		Images  []catalog.Image  `json:"images"`
		Folders []catalog.Folder `json:"folders"`
	}](t, resp)
	if len(listing.Images) != 1 || listing.Images[0].ID != image.ID {
		t.Fatalf("catalog images = %+v", listing.Images)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "notes.txt")
	_, _ = part.Write([]byte("plain text"))
	_ = mw.Close()

	resp := f.do(t, http.MethodPost, "/api/images", &buf, mw.FormDataContentType())
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", resp.StatusCode)
	}
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t)
	image := f.upload(t, "cat.png", "")

	resp := f.do(t, http.MethodDelete, "/api/images/"+image.ID, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp = f.do(t, http.MethodDelete, "/api/images/"+image.ID, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func waitForRender(t *testing.T, f *fixture, imageID string) renderqueue.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := f.do(t, http.MethodGet, "/api/images/"+imageID+"/render", nil, "")
		if resp.StatusCode == http.StatusOK {
			job := decode[renderqueue.Job](t, resp)
			if job.Status == renderqueue.StatusDone || job.Status == renderqueue.StatusFailed {
				return job
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("render job never finished")
	return renderqueue.Job{}
}

func TestRenderFlowAndFileServing(t *testing.T) {
	f := newFixture(t)
	image := f.upload(t, "cat.png", "")

	resp := f.do(t, http.MethodPost, "/api/images/"+image.ID+"/render", nil, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("render enqueue status = %d", resp.StatusCode)
	}

	job := waitForRender(t, f, image.ID)
	if job.Status != renderqueue.StatusDone {
		t.Fatalf("render job status = %s, error %s", job.Status, job.Error)
	}

	resp = f.do(t, http.MethodGet, "/uploads/"+job.Artifact, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("artifact fetch status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/gif" {
		t.Fatalf("artifact content type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Fatalf("cache control = %q", cc)
	}
}

func TestRenderUnknownJob(t *testing.T) {
	f := newFixture(t)
	image := f.upload(t, "cat.png", "")

	resp := f.do(t, http.MethodGet, "/api/images/"+image.ID+"/render", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for never-enqueued render", resp.StatusCode)
	}
}

func TestTagUpdateNormalizes(t *testing.T) {
	f := newFixture(t)
	image := f.upload(t, "cat.png", "")

	resp := f.doJSON(t, http.MethodPut, "/api/images/"+image.ID+"/tags",
		map[string]any{"tags": []string{" pets ", "Pets", "fun"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tags status = %d", resp.StatusCode)
	}
	out := decode[struct {
		Tags []string `json:"tags"`
	}](t, resp)
	want := []string{"PETS", "FUN"}
	if len(out.Tags) != len(want) || out.Tags[0] != want[0] || out.Tags[1] != want[1] {
		t.Fatalf("tags = %v, want %v", out.Tags, want)
	}
}

func TestFolderLifecycle(t *testing.T) {
	f := newFixture(t)
	image := f.upload(t, "cat.png", "")

	resp := f.doJSON(t, http.MethodPut, "/api/images/"+image.ID+"/folder",
		map[string]any{"folderId": "missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("move to missing folder status = %d, want 404", resp.StatusCode)
	}

	resp = f.doJSON(t, http.MethodPost, "/api/folders", map[string]any{"name": "Pets"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create folder status = %d", resp.StatusCode)
	}
	folder := decode[catalog.Folder](t, resp)

	resp = f.doJSON(t, http.MethodPut, "/api/images/"+image.ID+"/folder",
		map[string]any{"folderId": folder.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodDelete, "/api/folders/"+folder.ID, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete folder status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/catalog", nil, "")
	listing := decode[struct {
		Images  []catalog.Image  `json:"images"`
		Folders []catalog.Folder `json:"folders"`
	}](t, resp)
	if len(listing.Folders) != 0 {
		t.Fatalf("folders = %+v, want none", listing.Folders)
	}
	if listing.Images[0].FolderID != nil {
		t.Fatal("image still references the deleted folder")
	}
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)
	image := f.upload(t, "cat.png", "cat")

	resp := f.do(t, http.MethodPost, "/api/images/"+image.ID+"/render", nil, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("render enqueue status = %d", resp.StatusCode)
	}
	waitForRender(t, f, image.ID)

	resp = f.doJSON(t, http.MethodPost, "/api/export", map[string]any{"includeAll": true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("export content type = %q", ct)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if !strings.Contains(disposition, "gifs_export_") || !strings.Contains(disposition, ".zip") {
		t.Fatalf("content disposition = %q", disposition)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read export body: %v", err)
	}
	if len(data) == 0 || string(data[:2]) != "PK" {
		t.Fatal("export body is not a zip archive")
	}
}

func TestExportEmptySelection(t *testing.T) {
	f := newFixture(t)

	resp := f.doJSON(t, http.MethodPost, "/api/export", map[string]any{"tags": []string{"NONE"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("error content type = %q", ct)
	}
}

func TestAdminVerify(t *testing.T) {
	f := newFixture(t)

	resp := f.doJSON(t, http.MethodPost, "/api/admin/verify",
		map[string]string{"secret": f.cfg.Paths.AdminSecret})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	out := decode[struct {
		Valid bool `json:"valid"`
	}](t, resp)
	if !out.Valid {
		t.Fatal("correct secret reported invalid")
	}

	resp = f.doJSON(t, http.MethodPost, "/api/admin/verify",
		map[string]string{"secret": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong secret status = %d, want 401", resp.StatusCode)
	}
}

func TestBearerTokenGuardsAPIRoutes(t *testing.T) {
	f := newFixture(t, testsupport.WithAPIToken("sekrit"))

	resp := f.do(t, http.MethodGet, "/api/status", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/status", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer sekrit")
	authed, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("authed request: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", authed.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/uploads/nope.png", nil, "")
	if resp.StatusCode == http.StatusUnauthorized {
		t.Fatal("file serving must not require the bearer token")
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "cat.png", "")

	resp := f.do(t, http.MethodGet, "/api/status", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decode[struct {
		Running bool `json:"running"`
		Images  int  `json:"images"`
	}](t, resp)
	if !out.Running || out.Images != 1 {
		t.Fatalf("status payload = %+v", out)
	}
}

func TestUploadedFileNameValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/uploads/sub/file.png", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("nested path status = %d, want 400", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/uploads/missing.png", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing file status = %d, want 404", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	for path, method := range map[string]string{
		"/api/catalog": http.MethodPost,
		"/api/images":  http.MethodGet,
		"/api/export":  http.MethodGet,
	} {
		resp := f.do(t, method, path, nil, "")
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s status = %d, want 405", method, path, resp.StatusCode)
		}
	}
}
