// Package server exposes a compiler and an executor over HTTP.
//
//	POST /compile   {"formula": "a ; |> or"}
//	POST /evaluate  {"formula": "a ; |> or", "graphs": {"x": [[1]], "edges": []}}
//
// /evaluate answers with JSON labels, or with the protobuf tensor encoding
// when the request accepts application/x-protobuf.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/mgc/internal/compiler"
	"github.com/hanpama/mgc/internal/eventbus"
	"github.com/hanpama/mgc/internal/events"
	"github.com/hanpama/mgc/internal/executor"
	"github.com/hanpama/mgc/internal/graph"
	"github.com/hanpama/mgc/internal/metrics"
	"github.com/hanpama/mgc/internal/runid"
	"github.com/hanpama/mgc/internal/tensor"
)

// RunIDHeader carries the run id of a request in the response.
const RunIDHeader = "X-Run-Id"

// Handler is an http.Handler serving compile and evaluate requests.
type Handler struct {
	comp *compiler.Compiler
	exec *executor.Executor
	opt  Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	Logger *zap.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler serving formulas through comp and exec.
func New(comp *compiler.Compiler, exec *executor.Executor, opts ...Option) (*Handler, error) {
	if comp == nil || exec == nil {
		return nil, errors.New("server: compiler and executor are required")
	}
	op := Options{Timeout: 10 * time.Second, Logger: zap.NewNop()}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{comp: comp, exec: exec, opt: op}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := runid.NewContext(ctx)
	w.Header().Set(RunIDHeader, strconv.FormatInt(rid, 10))
	status := http.StatusOK
	start := time.Now()
	route := routeOf(r.URL.Path)
	eventbus.Publish(ctx, events.HTTPStart{Request: r, Route: route})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Route: route, Status: status, Duration: time.Since(start)})
		h.opt.Logger.Debug("request",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int64("run_id", rid),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	var handle func(context.Context, http.ResponseWriter, []byte, *http.Request) int
	switch route {
	case "/compile":
		handle = h.compile
	case "/evaluate":
		handle = h.evaluate
	default:
		status = http.StatusNotFound
		writeJSON(w, status, errorBody("not found", ""), h.opt.Pretty)
		return
	}
	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorBody("method not allowed", ""), h.opt.Pretty)
		return
	}

	body, err := readBody(r, h.opt.MaxBodyBytes)
	if err != nil {
		status = http.StatusBadRequest
		if err == errBodyTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorBody(err.Error(), ""), h.opt.Pretty)
		return
	}
	status = handle(ctx, w, body, r)
}

func routeOf(path string) string {
	switch path {
	case "/compile", "/evaluate":
		return path
	}
	return ""
}

// ------------------ Handlers ------------------

// CompileRequest is the body of /compile.
type CompileRequest struct {
	Formula string `json:"formula"`
}

// CompileResponse describes a compiled model.
type CompileResponse struct {
	Formula string `json:"formula"`
	Mode    string `json:"mode"`
	Width   int    `json:"width"`
	Layers  int    `json:"layers"`
	Nodes   int    `json:"nodes"`
	Summary string `json:"summary"`
}

func (h *Handler) compile(ctx context.Context, w http.ResponseWriter, body []byte, _ *http.Request) int {
	var req CompileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return h.fail(w, http.StatusBadRequest, errors.New("invalid JSON"))
	}
	if req.Formula == "" {
		return h.fail(w, http.StatusBadRequest, errors.New("missing 'formula'"))
	}
	m, err := h.comp.Compile(ctx, req.Formula)
	if err != nil {
		return h.fail(w, statusOf(err), err)
	}
	writeJSON(w, http.StatusOK, CompileResponse{
		Formula: m.Formula,
		Mode:    m.Spec.Mode(),
		Width:   m.Output.Width,
		Layers:  m.Layers(),
		Nodes:   len(m.Nodes),
		Summary: m.Summary(),
	}, h.opt.Pretty)
	return http.StatusOK
}

// EvaluateRequest is the body of /evaluate. Graphs holds one graph
// document or an array of them.
type EvaluateRequest struct {
	Formula string          `json:"formula"`
	Graphs  json.RawMessage `json:"graphs"`
}

// EvaluateResponse carries the labels computed for every node. Index maps
// rows to graphs in batched mode.
type EvaluateResponse struct {
	Formula string         `json:"formula"`
	DType   tensor.DType   `json:"dtype"`
	Labels  *tensor.Tensor `json:"labels"`
	Index   []int          `json:"index,omitempty"`
}

func (h *Handler) evaluate(ctx context.Context, w http.ResponseWriter, body []byte, r *http.Request) int {
	var req EvaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return h.fail(w, http.StatusBadRequest, errors.New("invalid JSON"))
	}
	if req.Formula == "" {
		return h.fail(w, http.StatusBadRequest, errors.New("missing 'formula'"))
	}
	if len(req.Graphs) == 0 {
		return h.fail(w, http.StatusBadRequest, errors.New("missing 'graphs'"))
	}

	spec := h.comp.Config().Input
	edgeType := spec.Node.DType
	if spec.Edge != nil {
		edgeType = spec.Edge.DType
	}
	gs, err := graph.Decode(bytes.NewReader(req.Graphs), spec.Node.DType, edgeType)
	if err != nil {
		return h.fail(w, http.StatusBadRequest, err)
	}
	m, err := h.comp.Compile(ctx, req.Formula)
	if err != nil {
		return h.fail(w, statusOf(err), err)
	}
	in, err := executor.Prepare(spec, gs...)
	if err != nil {
		return h.fail(w, statusOf(err), err)
	}
	out, err := h.exec.Evaluate(ctx, m, in)
	if err != nil {
		return h.fail(w, statusOf(err), err)
	}

	if acceptsProtobuf(r.Header.Get("Accept")) {
		w.Header().Set("Content-Type", tensor.ProtoContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out.MarshalProto())
		return http.StatusOK
	}
	writeJSON(w, http.StatusOK, EvaluateResponse{
		Formula: m.Formula,
		DType:   out.DType(),
		Labels:  out,
		Index:   in.Index,
	}, h.opt.Pretty)
	return http.StatusOK
}

// ------------------ Errors ------------------

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func errorBody(msg, code string) errorResponse {
	return errorResponse{Error: errorDetail{Message: msg, Code: code}}
}

func (h *Handler) fail(w http.ResponseWriter, status int, err error) int {
	code := metrics.Result(err)
	if code == metrics.LabelGenericError && status < 500 {
		code = ""
	}
	writeJSON(w, status, errorBody(err.Error(), code), h.opt.Pretty)
	return status
}

func statusOf(err error) int {
	switch metrics.Result(err) {
	case metrics.LabelSyntaxError, metrics.LabelUnknownOp, metrics.LabelUnbound,
		metrics.LabelModeMismatch, metrics.LabelShapeError:
		return http.StatusBadRequest
	case metrics.LabelNonTermination:
		return http.StatusUnprocessableEntity
	case metrics.LabelCanceled:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// ------------------ Request parsing ------------------

var errBodyTooLarge = errors.New("body too large")

func readBody(r *http.Request, maxBody int64) ([]byte, error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return nil, errors.New("unsupported Content-Type")
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.New("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// ------------------ Response formatting ------------------

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func acceptsProtobuf(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		if strings.HasPrefix(strings.TrimSpace(p), tensor.ProtoContentType) {
			return true
		}
	}
	return false
}
