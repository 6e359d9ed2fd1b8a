// Package checkpipeline compiles shader documents in batch without touching
// them: extract the user region, assemble, compile, link, report.
package checkpipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shaderlab/internal/cache"
	"shaderlab/internal/diag"
	"shaderlab/internal/observ"
	"shaderlab/internal/reload"
	"shaderlab/internal/shader"
	"shaderlab/internal/source"
	"shaderlab/internal/template"
	"shaderlab/internal/trace"
)

// BackendFactory creates a backend for one document. Backends are not shared
// between goroutines.
type BackendFactory func(ctx context.Context) (shader.Backend, error)

// Request configures a batch check.
type Request struct {
	Files    []string
	BaseDir  string
	Template *template.Template
	// DefaultFragment replaces a missing region; the template default when empty.
	DefaultFragment template.Fragment
	NewBackend      BackendFactory
	// BackendName is part of the cache key.
	BackendName    string
	LineMode       reload.LineMode
	MaxDiagnostics int
	// Jobs bounds concurrent documents; 0 means GOMAXPROCS.
	Jobs     int
	Cache    *cache.DiskCache
	Progress ProgressSink
}

// Result is the outcome for one document.
type Result struct {
	Path        string // as given in Request.Files
	DisplayPath string
	Fragment    template.Fragment
	// Lines is the text Diagnostics' line numbers refer to.
	Lines []string
	// FileOffset converts a fragment line to a line of the file on disk.
	FileOffset  int
	Diagnostics diag.Set
	Dropped     int
	Failure     reload.Failure
	Log         string
	Err         error
	Fallback    bool
	Cached      bool
	Timing      observ.Report
}

// OK reports whether the document compiled and linked.
func (r Result) OK() bool { return r.Failure == reload.FailNone }

// Status names the failure for reports: ok, compile, link or io.
func (r Result) Status() string {
	if r.OK() {
		return "ok"
	}
	return r.Failure.String()
}

// Report is the outcome of a whole run.
type Report struct {
	Results []Result
	Timings Timings
}

// Failed counts documents that did not link.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// Run checks every file. Results keep the order of req.Files. The returned
// error is reserved for problems with the request itself or cancellation;
// per-document failures, I/O included, are reported in Results.
func Run(ctx context.Context, req *Request) (Report, error) {
	var report Report
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return report, errors.New("missing check request")
	}
	if req.Template == nil || req.NewBackend == nil {
		return report, errors.New("check request needs a template and a backend factory")
	}
	if req.DefaultFragment == "" {
		req.DefaultFragment = req.Template.DefaultFragment()
	}

	t := trace.FromContext(ctx)
	span := trace.Begin(t, trace.ScopeDriver, "check", trace.CurrentSpan(ctx))
	span.WithExtra("files", strconv.Itoa(len(req.Files)))
	defer span.End("")
	ctx = trace.WithSpan(ctx, span)

	display := make([]string, len(req.Files))
	for i, f := range req.Files {
		display[i] = DisplayPath(f, req.BaseDir)
	}
	emitQueued(req.Progress, display)

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	report.Results = make([]Result, len(req.Files))
	report.Timings = Timings{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range req.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, timings := checkOne(gctx, req, req.Files[i], display[i])
			report.Results[i] = res
			mu.Lock()
			report.Timings.Merge(timings)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func checkOne(ctx context.Context, req *Request, path, display string) (res Result, timings Timings) {
	res = Result{Path: path, DisplayPath: display}
	timings = Timings{}
	began := time.Now()
	timer := observ.NewTimer()
	t := trace.FromContext(ctx)
	span := trace.Begin(t, trace.ScopeReload, "check:"+display, trace.CurrentSpan(ctx))
	defer func() {
		span.End(res.Status())
		res.Timing = timer.Report()
	}()

	fail := func(stage Stage, kind reload.Failure, err error) (Result, Timings) {
		res.Failure, res.Err = kind, err
		emit(req.Progress, display, stage, StatusError, err, time.Since(began))
		trace.Error(t, trace.ScopeReload, "check:"+display, err, span.ID())
		return res, timings
	}

	// load
	emit(req.Progress, display, StageLoad, StatusWorking, nil, 0)
	start := time.Now()
	idx := timer.Begin("load")
	f, err := source.Load(path)
	timer.End(idx, "")
	if err != nil {
		return fail(StageLoad, reload.FailIO, fmt.Errorf("read %s: %w", display, err))
	}
	doc := template.Document(f.Text())
	frag, ok := template.ExtractRegion(doc)
	if !ok || strings.TrimSpace(string(frag)) == "" {
		trace.Point(t, trace.ScopeReload, "sentinel missing", display, span.ID())
		frag, res.Fallback = req.DefaultFragment, true
	}
	res.Fragment = frag
	assembled := req.Template.Assemble(frag)
	if req.LineMode == reload.LineModeRaw {
		res.Lines = strings.Split(string(assembled), "\n")
	} else {
		res.Lines = strings.Split(string(frag), "\n")
		res.FileOffset = regionOffset(doc)
	}
	timings[StageLoad] += time.Since(start)

	// cache
	key := cache.Key(req.BackendName, string(req.Template.Dialect()), string(assembled), req.LineMode.String(), strconv.Itoa(req.MaxDiagnostics))
	if req.Cache != nil {
		start = time.Now()
		payload, hit, err := req.Cache.Get(key)
		timings[StageCache] += time.Since(start)
		if err != nil {
			trace.Error(t, trace.ScopeReload, "cache", err, span.ID())
		}
		if hit {
			res.Cached = true
			res.Diagnostics, res.Dropped, res.Log = payload.Set(), payload.Dropped, payload.Log
			res.Failure = failureOf(payload.Status)
			if !res.OK() {
				res.Err = fmt.Errorf("%s failed (cached)", payload.Status)
			}
			emit(req.Progress, display, StageCache, doneOrError(res.OK()), res.Err, time.Since(began))
			return res, timings
		}
	}

	backend, err := req.NewBackend(ctx)
	if err != nil {
		return fail(StageCompile, reload.FailIO, err)
	}
	adapter := shader.NewAdapter(backend)

	// compile
	emit(req.Progress, display, StageCompile, StatusWorking, nil, 0)
	start = time.Now()
	idx = timer.Begin("compile")
	vert := adapter.Compile(shader.StageVertex, req.Template.VertexSource())
	var fragRes shader.CompileResult
	if vert.OK() {
		fragRes = adapter.Compile(shader.StageFragment, string(assembled))
	}
	timer.End(idx, "")
	timings[StageCompile] += time.Since(start)
	if !vert.OK() {
		return fail(StageCompile, reload.FailIO, fmt.Errorf("vertex stage: %w", vert.Err()))
	}
	defer adapter.ReleaseShader(vert.Handle)
	if !fragRes.OK() {
		res.Log = fragRes.Log
		res.Diagnostics, res.Dropped = reload.MapDiagnostics(fragRes.Log, req.Template, frag, req.LineMode, req.MaxDiagnostics)
		store(ctx, req, key, reload.FailCompile, res)
		return fail(StageCompile, reload.FailCompile, fragRes.Err())
	}

	// link
	emit(req.Progress, display, StageLink, StatusWorking, nil, 0)
	start = time.Now()
	idx = timer.Begin("link")
	link := adapter.Link(vert.Handle, fragRes.Handle)
	adapter.ReleaseShader(fragRes.Handle)
	timer.End(idx, "")
	timings[StageLink] += time.Since(start)
	if !link.OK() {
		res.Log = link.Log
		res.Diagnostics, res.Dropped = reload.MapDiagnostics(link.Log, req.Template, frag, req.LineMode, req.MaxDiagnostics)
		store(ctx, req, key, reload.FailLink, res)
		return fail(StageLink, reload.FailLink, link.Err())
	}
	adapter.ReleaseProgram(link.Program)

	res.Diagnostics = diag.Set{}
	store(ctx, req, key, reload.FailNone, res)
	emit(req.Progress, display, StageLink, StatusDone, nil, time.Since(began))
	return res, timings
}

// regionOffset is the number of file lines before the first fragment line.
func regionOffset(doc template.Document) int {
	for i, line := range strings.Split(string(doc), "\n") {
		if strings.TrimSpace(line) == template.BeginSentinel {
			return i + 1
		}
	}
	return 0
}

func store(ctx context.Context, req *Request, key cache.Digest, status reload.Failure, res Result) {
	if req.Cache == nil {
		return
	}
	name := "ok"
	if status != reload.FailNone {
		name = status.String()
	}
	payload := cache.NewPayload(req.BackendName, name, res.Log, res.Diagnostics, res.Dropped)
	if err := req.Cache.Put(key, payload); err != nil {
		trace.Error(trace.FromContext(ctx), trace.ScopeReload, "cache", err, trace.CurrentSpan(ctx))
	}
}

func failureOf(status string) reload.Failure {
	switch status {
	case "compile":
		return reload.FailCompile
	case "link":
		return reload.FailLink
	case "io":
		return reload.FailIO
	}
	return reload.FailNone
}

func doneOrError(ok bool) Status {
	if ok {
		return StatusDone
	}
	return StatusError
}

func emitQueued(sink ProgressSink, files []string) {
	if sink == nil {
		return
	}
	for _, file := range files {
		sink.OnEvent(Event{File: file, Stage: StageLoad, Status: StatusQueued})
	}
}

func emit(sink ProgressSink, file string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
