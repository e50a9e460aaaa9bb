package httpx

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// HTTPObserver records served requests.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int)
}

// Logging returns a middleware that logs HTTP requests and responses.
// The route label is the matched ServeMux pattern, never the raw path.
func Logging(logger *slog.Logger, obs HTTPObserver) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			tag := &requestTag{}
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestTagKey{}, tag)))

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Int("bytes", ww.bytes),
				slog.Duration("duration", time.Since(start)),
			}
			if tag.session != "" {
				attrs = append(attrs, slog.String("session", shortID(tag.session)))
			}
			logger.Info("http", attrs...)

			if obs != nil {
				obs.ObserveHTTP(r.Method, routeLabel(tag.pattern), ww.status)
			}
		})
	}
}

// requestTag carries facts learned deeper in the chain (the matched pattern, the session)
// back out to Logging. Inner handlers see copies of the request, not the one Logging holds.
type requestTag struct {
	pattern string
	session string
}

type requestTagKey struct{}

func tagOf(r *http.Request) *requestTag {
	tag, _ := r.Context().Value(requestTagKey{}).(*requestTag)
	return tag
}

func tagSession(r *http.Request, id string) {
	if tag := tagOf(r); tag != nil {
		tag.session = id
	}
}

func tagPattern(r *http.Request, pattern string) {
	if tag := tagOf(r); tag != nil {
		tag.pattern = pattern
	}
}

// routeLabel returns the matched pattern without its method prefix.
func routeLabel(p string) string {
	if i := strings.IndexByte(p, ' '); i >= 0 {
		p = p[i+1:]
	}
	return p
}

type respWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *respWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
						panic(err)
					}
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that detects browser requests vs API requests.
// It sets a context value that can be used by downstream handlers to determine
// whether to return HTML or JSON responses.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			isBrowser := isBrowserRequest(r)
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if val := r.Context().Value(browserRequestKey{}); val != nil {
		if isBrowser, ok := val.(bool); ok {
			return isBrowser
		}
	}
	return isBrowserRequest(r)
}

// isBrowserRequest determines if a request is from a browser based on:
// 1. Path prefix - API routes start with /api/
// 2. Accept header - browsers typically accept text/html
// 3. HTMX requests are considered browser requests.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/static/") {
		return false
	}
	if IsHTMX(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html")
}

// redirectToLogin sends a browser to the login page, carrying the current page as next.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath
	if next := redirectPathForRequest(r); next != "" && next != "/" && !isAuthPath(next) {
		target += "?next=" + url.QueryEscape(next)
	}
	redirectBrowser(w, r, target)
}

// redirectBrowser navigates a browser to target, using HX-Redirect for htmx requests.
func redirectBrowser(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r) {
		SetHXRedirect(w, target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func redirectPathForRequest(r *http.Request) string {
	if IsHTMX(r) {
		if current := safeRedirectFromURL(r.Header.Get("Hx-Current-Url")); current != "" {
			return current
		}
		if referer := safeRedirectFromURL(r.Header.Get("Referer")); referer != "" {
			return referer
		}
	}
	if r.Method != http.MethodGet {
		return ""
	}
	return safeRedirectPath(r.URL.RequestURI())
}

func safeRedirectFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	// Reject scheme-relative or host-only references.
	if u.Host != "" && !u.IsAbs() {
		return ""
	}
	if u.IsAbs() {
		return safeRedirectPath(u.RequestURI())
	}
	return safeRedirectPath(raw)
}

func isAuthPath(p string) bool {
	for _, prefix := range []string{LoginPath, SignupPath, LogoutPath} {
		if p == prefix || strings.HasPrefix(p, prefix+"?") {
			return true
		}
	}
	return false
}

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	Level   int // Compression level (1-9, where 6 is default)
	MinSize int // Minimum response size to compress (bytes, 0 = always compress)
	Logger  *slog.Logger
}

func getDefaultCompressibleTypes() map[string]bool {
	return map[string]bool{
		"text/html":              true,
		"text/css":               true,
		"text/plain":             true,
		"text/javascript":        true,
		"application/javascript": true,
		"application/json":       true,
		"image/svg+xml":          true,
	}
}

type compressor struct {
	level         int
	minSize       int
	pool          sync.Pool
	compressTypes map[string]bool
	logger        *slog.Logger
}

func (c *compressor) get(dst io.Writer) *gzip.Writer {
	gz, _ := c.pool.Get().(*gzip.Writer)
	if gz == nil {
		gz = newGzipWriter(c.level)
	}
	gz.Reset(dst)
	return gz
}

func (c *compressor) put(gz *gzip.Writer) {
	gz.Reset(io.Discard)
	c.pool.Put(gz)
}

func newGzipWriter(level int) *gzip.Writer {
	w, err := gzip.NewWriterLevel(io.Discard, level)
	if err != nil {
		return gzip.NewWriter(io.Discard)
	}
	return w
}

// Compression returns a middleware that compresses HTTP responses using gzip.
// It compresses responses only when:
// - Client accepts gzip encoding (via Accept-Encoding header).
// - Content-Type is compressible (text/html, text/css, application/json, etc.).
// - Response status is not 1xx, 204, or 304.
// - Request method is not HEAD.
// - Response size reaches MinSize (if configured).
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	level := cfg.Level
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	c := &compressor{
		level:         level,
		minSize:       max(cfg.MinSize, 0),
		compressTypes: getDefaultCompressibleTypes(),
		logger:        cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			gzw := &gzipResponseWriter{ResponseWriter: w, c: c, ctx: r.Context()}
			next.ServeHTTP(gzw, r)
			gzw.finish()
		})
	}
}

// acceptsGzip checks if the client accepts gzip encoding, respecting q-values.
func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(part)
		encoding, params, _ := strings.Cut(part, ";")
		if !strings.EqualFold(strings.TrimSpace(encoding), "gzip") {
			continue
		}
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}

// isCompressibleContentType checks if the content type should be compressed.
func isCompressibleContentType(contentType string, compressTypes map[string]bool) bool {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return compressTypes[strings.TrimSpace(strings.ToLower(contentType))]
}

// gzipResponseWriter defers the compress decision until the status and the first
// MinSize bytes are known.
type gzipResponseWriter struct {
	http.ResponseWriter
	c   *compressor
	ctx context.Context //nolint:containedctx // request scoped, used for logging only

	status     int
	decided    bool
	passthru   bool
	gz         *gzip.Writer
	buf        []byte
	headerSent bool
}

// WriteHeader records the status. Headers go out once the compress decision is made.
func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.status != 0 {
		return
	}
	w.status = statusCode
	if statusCode < 200 || statusCode == http.StatusNoContent || statusCode == http.StatusNotModified ||
		w.Header().Get("Content-Encoding") != "" {
		w.passthrough()
		return
	}
	if ct := w.Header().Get("Content-Type"); ct != "" && !isCompressibleContentType(ct, w.c.compressTypes) {
		w.passthrough()
	}
}

func (w *gzipResponseWriter) passthrough() {
	w.decided = true
	w.passthru = true
	w.sendHeader()
}

func (w *gzipResponseWriter) sendHeader() {
	if w.headerSent {
		return
	}
	w.headerSent = true
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.status)
}

func (w *gzipResponseWriter) startGzip() {
	w.decided = true
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.sendHeader()
	w.gz = w.c.get(w.ResponseWriter)
}

// Write compresses data if compression is enabled.
func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.decided && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", http.DetectContentType(b))
	}
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.passthru {
		return w.ResponseWriter.Write(b)
	}
	if w.gz != nil {
		return w.gz.Write(b)
	}

	w.buf = append(w.buf, b...)
	if len(w.buf) < w.c.minSize {
		return len(b), nil
	}
	if !isCompressibleContentType(w.Header().Get("Content-Type"), w.c.compressTypes) {
		w.passthrough()
	} else {
		w.startGzip()
	}
	if err := w.flushBuf(); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (w *gzipResponseWriter) flushBuf() error {
	if len(w.buf) == 0 {
		return nil
	}
	var err error
	if w.gz != nil {
		_, err = w.gz.Write(w.buf)
	} else {
		_, err = w.ResponseWriter.Write(w.buf)
	}
	w.buf = nil
	return err
}

// finish emits anything still buffered and returns the gzip writer to the pool.
func (w *gzipResponseWriter) finish() {
	if !w.decided {
		// Below MinSize or never written: send uncompressed.
		w.passthru = true
		if w.status != 0 || len(w.buf) > 0 {
			w.sendHeader()
		}
		if err := w.flushBuf(); err != nil {
			w.c.logger.DebugContext(w.ctx, "writing buffered response failed", "error", err)
		}
		return
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.c.logger.ErrorContext(w.ctx, "closing gzip writer failed", "error", err)
		}
		w.c.put(w.gz)
		w.gz = nil
	}
}

// Flush implements http.Flusher for streaming support.
func (w *gzipResponseWriter) Flush() {
	if !w.decided {
		if isCompressibleContentType(w.Header().Get("Content-Type"), w.c.compressTypes) || w.Header().Get("Content-Type") == "" {
			w.startGzip()
		} else {
			w.passthrough()
		}
		if err := w.flushBuf(); err != nil {
			w.c.logger.DebugContext(w.ctx, "flushing buffered response failed", "error", err)
		}
	}
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			w.c.logger.ErrorContext(w.ctx, "flushing gzip writer failed", "error", err)
		}
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker for WebSocket support.
func (w *gzipResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("http.Hijacker not supported")
}
