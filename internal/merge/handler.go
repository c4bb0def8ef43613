// Package merge serves the upload endpoints that turn images and PDFs into
// one output document, synchronously or as background jobs.
package merge

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rmitchellscott/binder/internal/binder"
	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/database"
	"github.com/rmitchellscott/binder/internal/i18n"
	"github.com/rmitchellscott/binder/internal/jobs"
	"github.com/rmitchellscott/binder/internal/logging"
	"github.com/rmitchellscott/binder/internal/media"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before net/http spills file parts to temporary files.
const multipartMemory = 32 << 20

// Handler serves the merge endpoints.
type Handler struct {
	settings config.Settings
	limits   media.Limits
	jobs     *jobs.Store
}

func NewHandler(s config.Settings, store *jobs.Store) *Handler {
	return &Handler{
		settings: s,
		limits: media.Limits{
			MaxFiles:          s.MaxFiles,
			MaxFileSize:       s.MaxFileSize,
			MaxFilenameLength: s.MaxFilenameLength,
		},
		jobs: store,
	}
}

// task is a validated merge request with its uploads in memory.
type task struct {
	req    Request
	opts   binder.Options
	inputs []binder.Input
	source string
}

type outcome struct {
	result     *binder.Result
	filename   string
	documentID string
}

// reportFunc receives progress as (operation, i18n key, data, percent).
type reportFunc func(op, key string, data map[string]string, progress int)

// UploadHandler merges a multipart upload and returns the PDF.
func (h *Handler) UploadHandler(c *gin.Context) {
	t, err := h.parseMultipart(c)
	defer removeTemp(c.Request)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, t)
}

// JSONHandler merges data URL inputs and returns the PDF.
func (h *Handler) JSONHandler(c *gin.Context) {
	t, err := h.parseJSON(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, t)
}

// EnqueueHandler accepts the same bodies as the synchronous endpoints,
// starts a background job and returns JSON{"jobId": "..."}.
func (h *Handler) EnqueueHandler(c *gin.Context) {
	var (
		t   *task
		err error
	)
	if c.ContentType() == binding.MIMEJSON {
		t, err = h.parseJSON(c)
	} else {
		t, err = h.parseMultipart(c)
		defer removeTemp(c.Request)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	t.source = database.SourceJob
	c.JSON(http.StatusAccepted, gin.H{"jobId": h.enqueue(t)})
}

// StatusHandler returns current status & message for a given jobId.
func (h *Handler) StatusHandler(c *gin.Context) {
	if job, ok := h.jobs.Get(c.Param("id")); ok {
		c.JSON(http.StatusOK, job)
	} else {
		i18n.Abort(c, http.StatusNotFound, "backend.errors.job_not_found", nil)
	}
}

// StatusWSHandler streams job updates over a websocket until the job ends
// or the client goes away.
func (h *Handler) StatusWSHandler(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.jobs.Get(id); !ok {
		i18n.Abort(c, http.StatusNotFound, "backend.errors.job_not_found", nil)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: slices.Contains(h.settings.AllowedOrigins, "*"),
		OriginPatterns:     originPatterns(h.settings.AllowedOrigins),
	})
	if err != nil {
		logging.Logf("[JOBS] websocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	// CloseRead handles control frames and cancels ctx when the peer leaves.
	ctx := conn.CloseRead(c.Request.Context())
	updates, unsubscribe := h.jobs.Subscribe(id)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-updates:
			if err := wsjson.Write(ctx, conn, job); err != nil {
				return
			}
			if job.Finished() {
				conn.Close(websocket.StatusNormalClosure, job.Status)
				return
			}
		}
	}
}

// originPatterns converts CORS origins ("https://host:port") into the host
// patterns the websocket origin check expects.
func originPatterns(origins []string) []string {
	var patterns []string
	for _, o := range origins {
		if o == "*" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

// ResultHandler returns the output document of a finished job.
func (h *Handler) ResultHandler(c *gin.Context) {
	id := c.Param("id")
	pdf, filename, ok := h.jobs.Result(id)
	if !ok {
		if _, exists := h.jobs.Get(id); exists {
			i18n.Abort(c, http.StatusConflict, "backend.errors.job_not_finished", nil)
		} else {
			i18n.Abort(c, http.StatusNotFound, "backend.errors.job_not_found", nil)
		}
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) parseMultipart(c *gin.Context) (*task, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.settings.MaxRequestSize)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, maxErr
		}
		return nil, fmt.Errorf("%w: %v", errBadForm, err)
	}

	var req Request
	if err := c.ShouldBind(&req); err != nil {
		return nil, &optionsError{Detail: validationDetail(err)}
	}

	headers := uploadedFiles(c.Request.MultipartForm)
	if err := h.limits.CheckCount(len(headers) + len(req.URLs)); err != nil {
		return nil, err
	}
	inputs, err := readUploads(headers, h.limits)
	if err != nil {
		return nil, err
	}
	return h.newTask(req, inputs, database.SourceUpload)
}

func (h *Handler) parseJSON(c *gin.Context) (*task, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.settings.MaxRequestSize)

	var req JSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, maxErr
		}
		return nil, &optionsError{Detail: validationDetail(err)}
	}
	if err := h.limits.CheckCount(len(req.Files) + len(req.URLs)); err != nil {
		return nil, err
	}
	inputs, err := decodeDataURLs(req.Files, h.limits)
	if err != nil {
		return nil, err
	}
	return h.newTask(req.Request, inputs, database.SourceJSON)
}

func (h *Handler) newTask(req Request, inputs []binder.Input, source string) (*task, error) {
	opts, err := req.options(h.settings)
	if err != nil {
		return nil, &optionsError{Detail: err.Error()}
	}
	return &task{req: req, opts: opts, inputs: inputs, source: source}, nil
}

func (h *Handler) respond(c *gin.Context, t *task) {
	out, err := h.run(c.Request.Context(), t, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.filename))
	c.Header("X-Page-Count", strconv.Itoa(out.result.Pages))
	if out.documentID != "" {
		c.Header("X-Document-Id", out.documentID)
	}
	c.Data(http.StatusOK, "application/pdf", out.result.PDF)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, key, data := describe(err, h.limits)
	if status >= http.StatusInternalServerError {
		logging.Logf("[ERROR] [MERGE] %v", err)
	} else {
		logging.Logf("[MERGE] rejected (%d): %v", status, err)
	}
	i18n.Abort(c, status, key, data)
}

// run fetches remote inputs, merges everything in order and stores the
// result when configured.
func (h *Handler) run(ctx context.Context, t *task, report reportFunc) (*outcome, error) {
	if report == nil {
		report = func(string, string, map[string]string, int) {}
	}

	// fetching takes the first third of the bar when there are URLs
	base := 0
	inputs := t.inputs
	if n := len(t.req.URLs); n > 0 {
		base = 30
		fetched, err := fetchAll(ctx, t.req.URLs, h.limits, func(i int, u string) {
			report("fetching", "backend.status.fetching", map[string]string{"url": u}, i*base/n)
		})
		if err != nil {
			return nil, err
		}
		inputs = append(slices.Clip(inputs), fetched...)
	}

	res, err := binder.Bind(ctx, inputs, t.opts, func(done, n int) {
		if done == n && t.opts.Optimize {
			report("optimizing", "backend.status.optimizing", nil, 90)
			return
		}
		report("merging", "backend.status.merging", map[string]string{"name": inputs[done-1].Name}, base+done*(90-base)/n)
	})
	if err != nil {
		return nil, err
	}

	out := &outcome{result: res, filename: t.req.outputName()}
	if h.settings.StoreOutput {
		report("storing", "backend.status.storing", nil, 95)
		id, err := storeOutput(ctx, res, out.filename, t.source, h.settings.Retention)
		if err != nil {
			// the caller still gets the document
			logging.Logf("[WARNING] [STORAGE] %v", err)
		}
		out.documentID = id
	}
	return out, nil
}

// enqueue starts t in the background and returns its job ID.
func (h *Handler) enqueue(t *task) string {
	// Log each form field in "Human Key: Value" format.
	titleCaser := cases.Title(language.English)
	fields := t.req.fields()
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		logging.Logf("[JOBS] %s: %s", titleCaser.String(strings.ReplaceAll(key, "_", " ")), fields[key])
	}

	id := uuid.NewString()
	h.jobs.Create(id)
	logging.Logf("[JOBS] %s: %d files, %d urls", id, len(t.inputs), len(t.req.URLs))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.GetDuration("JOB_TIMEOUT", 10*time.Minute))
		defer cancel()

		// Catch panics
		defer func() {
			if r := recover(); r != nil {
				logging.Logf("[ERROR] [JOBS] panic in %s: %v", id, r)
				h.jobs.Update(id, jobs.StatusError, "backend.errors.generate_failed", nil)
			}
		}()

		h.jobs.UpdateWithOperation(id, jobs.StatusRunning, "backend.status.pending", nil, "pending")
		out, err := h.run(ctx, t, func(op, key string, data map[string]string, progress int) {
			h.jobs.UpdateWithOperation(id, jobs.StatusRunning, key, data, op)
			h.jobs.UpdateProgress(id, progress)
		})
		if err != nil {
			_, key, data := describe(err, h.limits)
			logging.Logf("[JOBS] %s failed: %v", id, err)
			h.jobs.Update(id, jobs.StatusError, key, data)
			return
		}

		data := map[string]string{"pages": strconv.Itoa(out.result.Pages)}
		if out.documentID != "" {
			data["documentId"] = out.documentID
		}
		h.jobs.Complete(id, out.result.PDF, out.filename, "backend.status.done", data)
		logging.Logf("[JOBS] %s done: %d pages", id, out.result.Pages)
	}()

	return id
}

// removeTemp deletes any temporary files backing a multipart form.
func removeTemp(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		logging.Logf("[WARNING] [MERGE] Failed to remove multipart temp files: %v", err)
	}
}
