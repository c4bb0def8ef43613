package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/vincent-petithory/dataurl"

	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/jobs"
	"github.com/rmitchellscott/binder/internal/pdfprocessor"
)

type upload struct {
	field, name string
	data        []byte
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Text(40, 40, fmt.Sprintf("page %d", i+1))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, files []upload, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(f.data)
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()
	return body, w.FormDataContentType()
}

func newTestHandler(t *testing.T) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(config.Load(), jobs.NewStore())
	r := gin.New()
	r.POST("/api/upload", h.UploadHandler)
	r.POST("/api/merge/json", h.JSONHandler)
	r.POST("/api/jobs", h.EnqueueHandler)
	r.GET("/api/status/:id", h.StatusHandler)
	r.GET("/api/status/ws/:id", h.StatusWSHandler)
	r.GET("/api/jobs/:id/result", h.ResultHandler)
	return h, r
}

func postMultipart(r http.Handler, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorKey(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", w.Body.String(), err)
	}
	return body.Error
}

func TestUploadMergesInOrder(t *testing.T) {
	_, r := newTestHandler(t)
	body, ct := multipartBody(t, []upload{
		{"files", "a.png", pngBytes(t)},
		{"files", "b.pdf", pdfBytes(t, 2)},
		{"files[]", "c.png", pngBytes(t)},
	}, nil)

	w := postMultipart(r, "/api/upload", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("Content-Type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="output.pdf"` {
		t.Fatalf("Content-Disposition %q", cd)
	}
	if got := w.Header().Get("X-Page-Count"); got != "4" {
		t.Fatalf("X-Page-Count %q", got)
	}
	if got := w.Header().Get("X-Document-Id"); got != "" {
		t.Fatalf("unexpected X-Document-Id %q", got)
	}
	n, err := pdfprocessor.PageCount(w.Body.Bytes())
	if err != nil || n != 4 {
		t.Fatalf("output pages = %d, %v", n, err)
	}
}

func TestUploadOptions(t *testing.T) {
	_, r := newTestHandler(t)
	body, ct := multipartBody(t, []upload{
		{"files", "b.pdf", pdfBytes(t, 3)},
	}, map[string]string{"pages": "1,3", "filename": "My Scans", "page_size": "Letter", "margin": "18"})

	w := postMultipart(r, "/api/upload", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Page-Count"); got != "2" {
		t.Fatalf("X-Page-Count %q", got)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="My Scans.pdf"` {
		t.Fatalf("Content-Disposition %q", cd)
	}
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		files  []upload
		fields map[string]string
		status int
		key    string
	}{
		{
			name:   "no files",
			fields: map[string]string{"pages": "1"},
			status: http.StatusBadRequest,
			key:    "backend.errors.no_files",
		},
		{
			name:   "unsupported type",
			files:  []upload{{"files", "notes.txt", []byte("just some text")}},
			status: http.StatusUnsupportedMediaType,
			key:    "backend.errors.unsupported_type",
		},
		{
			name:   "too many files",
			env:    map[string]string{"MAX_FILES": "1"},
			files:  []upload{{"files", "a.png", pngBytes(t)}, {"files", "b.png", pngBytes(t)}},
			status: http.StatusRequestEntityTooLarge,
			key:    "backend.errors.too_many_files",
		},
		{
			name:   "file too large",
			env:    map[string]string{"MAX_FILE_SIZE": "10"},
			files:  []upload{{"files", "a.png", pngBytes(t)}},
			status: http.StatusRequestEntityTooLarge,
			key:    "backend.errors.file_too_large",
		},
		{
			name:   "request too large",
			env:    map[string]string{"MAX_REQUEST_SIZE": "64"},
			files:  []upload{{"files", "a.png", pngBytes(t)}},
			status: http.StatusRequestEntityTooLarge,
			key:    "backend.errors.request_too_large",
		},
		{
			name:   "filename too long",
			env:    map[string]string{"MAX_FILENAME_LENGTH": "8"},
			files:  []upload{{"files", "a-very-long-name.png", pngBytes(t)}},
			status: http.StatusBadRequest,
			key:    "backend.errors.filename_too_long",
		},
		{
			name:   "corrupt pdf",
			files:  []upload{{"files", "broken.pdf", []byte("%PDF-1.4\nthis is not really a pdf\n%%EOF")}},
			status: http.StatusUnprocessableEntity,
			key:    "backend.errors.invalid_pdf",
		},
		{
			name:   "bad pdf mode",
			files:  []upload{{"files", "a.png", pngBytes(t)}},
			fields: map[string]string{"pdf_mode": "shred"},
			status: http.StatusBadRequest,
			key:    "backend.errors.invalid_options",
		},
		{
			name:   "bad page size",
			files:  []upload{{"files", "a.png", pngBytes(t)}},
			fields: map[string]string{"page_size": "napkin"},
			status: http.StatusBadRequest,
			key:    "backend.errors.invalid_options",
		},
		{
			name:   "bad page selection",
			files:  []upload{{"files", "b.pdf", pdfBytes(t, 2)}},
			fields: map[string]string{"pages": "nonsense"},
			status: http.StatusBadRequest,
			key:    "backend.errors.invalid_pages",
		},
		{
			name:   "private url",
			fields: map[string]string{"urls": "http://127.0.0.1/a.pdf"},
			status: http.StatusBadRequest,
			key:    "backend.errors.invalid_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, r := newTestHandler(t)
			body, ct := multipartBody(t, tt.files, tt.fields)
			w := postMultipart(r, "/api/upload", body, ct)
			if w.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if key := errorKey(t, w); key != tt.key {
				t.Fatalf("error %q, want %q", key, tt.key)
			}
		})
	}
}

func TestUploadNotMultipart(t *testing.T) {
	_, r := newTestHandler(t)
	w := postMultipart(r, "/api/upload", bytes.NewBufferString("hello"), "text/plain")
	if w.Code != http.StatusBadRequest || errorKey(t, w) != "backend.errors.invalid_form" {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestErrorMessageTranslated(t *testing.T) {
	_, r := newTestHandler(t)
	body, ct := multipartBody(t, []upload{{"files", "notes.txt", []byte("text")}}, nil)
	w := postMultipart(r, "/api/upload", body, ct)
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["message"] != "Unsupported file type: notes.txt" {
		t.Fatalf("message %q", resp["message"])
	}
}

func TestJSONMerge(t *testing.T) {
	_, r := newTestHandler(t)
	payload := map[string]any{
		"files": []map[string]string{
			{"name": "a.png", "data": dataurl.EncodeBytes(pngBytes(t))},
			{"name": "b.pdf", "data": dataurl.New(pdfBytes(t, 2), "application/pdf").String()},
		},
		"filename": "joined.pdf",
	}
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/merge/json", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Page-Count"); got != "3" {
		t.Fatalf("X-Page-Count %q", got)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "joined.pdf") {
		t.Fatalf("Content-Disposition %q", cd)
	}
}

func TestJSONMergeBadDataURL(t *testing.T) {
	_, r := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/merge/json", strings.NewReader(`{"files":[{"name":"x","data":"not a data url"}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || errorKey(t, w) != "backend.errors.invalid_options" {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func waitForJob(t *testing.T, r http.Handler, id string) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status/"+id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status endpoint %d", w.Code)
		}
		var job jobs.Job
		if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
			t.Fatal(err)
		}
		if job.Finished() {
			return &job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not finish")
	return nil
}

func enqueue(t *testing.T, r http.Handler, files []upload) string {
	t.Helper()
	body, ct := multipartBody(t, files, nil)
	w := postMultipart(r, "/api/jobs", body, ct)
	if w.Code != http.StatusAccepted {
		t.Fatalf("enqueue status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID string `json:"jobId"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.JobID == "" {
		t.Fatal("missing jobId")
	}
	return resp.JobID
}

func TestJobLifecycle(t *testing.T) {
	_, r := newTestHandler(t)
	id := enqueue(t, r, []upload{{"files", "a.png", pngBytes(t)}, {"files", "b.pdf", pdfBytes(t, 1)}})

	job := waitForJob(t, r, id)
	if job.Status != jobs.StatusSuccess || job.Progress != 100 || job.Data["pages"] != "2" {
		t.Fatalf("unexpected job %+v", job)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/result", nil))
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("result %d", w.Code)
	}
}

func TestJobFailure(t *testing.T) {
	_, r := newTestHandler(t)
	id := enqueue(t, r, []upload{{"files", "notes.txt", []byte("plain text")}})
	job := waitForJob(t, r, id)
	if job.Status != jobs.StatusError || job.Message != "backend.errors.unsupported_type" || job.Data["name"] != "notes.txt" {
		t.Fatalf("unexpected job %+v", job)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/result", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("result status %d", w.Code)
	}
}

func TestUnknownJob(t *testing.T) {
	_, r := newTestHandler(t)
	for _, path := range []string{"/api/status/nope", "/api/jobs/nope/result", "/api/status/ws/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: status %d", path, w.Code)
		}
	}
}

func TestStatusWebsocket(t *testing.T) {
	h, r := newTestHandler(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	// a job that is already finished still reports its final state
	id := "done-job"
	h.jobs.Create(id)
	h.jobs.Complete(id, []byte("%PDF"), "output.pdf", "backend.status.done", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/status/ws/"+id, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.CloseNow()

	var job jobs.Job
	if err := wsjson.Read(ctx, conn, &job); err != nil {
		t.Fatal(err)
	}
	if job.Status != jobs.StatusSuccess {
		t.Fatalf("status %q", job.Status)
	}
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v", err)
	}
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"*", "https://app.example.com", "localhost:3000"})
	want := []string{"app.example.com", "localhost:3000"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUploadURLRedirectToBlockedHost(t *testing.T) {
	t.Setenv("BLOCK_PRIVATE_IPS", "false")
	t.Setenv("BLOCKED_DOMAINS", "blocked.example")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://blocked.example/secret.pdf", http.StatusFound)
	}))
	defer srv.Close()

	_, r := newTestHandler(t)
	body, ct := multipartBody(t, nil, map[string]string{"urls": srv.URL + "/scan.pdf"})
	w := postMultipart(r, "/api/upload", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400: %s", w.Code, w.Body.String())
	}
	if key := errorKey(t, w); key != "backend.errors.invalid_url" {
		t.Fatalf("error %q, want backend.errors.invalid_url", key)
	}
}
