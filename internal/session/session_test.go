package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"query-visualizer/internal/adapter"
	"query-visualizer/internal/ai"
	"query-visualizer/internal/chart"
	"query-visualizer/internal/record"
	"strings"
	"sync"
	"testing"
	"time"
)

// querierFunc 测试用查询协作者
type querierFunc func(ctx context.Context, prompt string) (*Response, error)

func (f querierFunc) Query(ctx context.Context, prompt string) (*Response, error) {
	return f(ctx, prompt)
}

func happiness() record.ResultSet {
	return record.ResultSet{
		Columns: []string{"country", "year", "happiness"},
		Rows: []record.Record{
			{"country": "Finland", "year": 2020.0, "happiness": 7.8},
			{"country": "Finland", "year": 2019.0, "happiness": 7.6},
			{"country": "Sweden", "year": 2020.0, "happiness": 7.5},
			{"country": "Sweden", "year": 2019.0, "happiness": 7.4},
		},
	}
}

func respond(rs record.ResultSet) querierFunc {
	return func(context.Context, string) (*Response, error) {
		q := "MATCH (c:Country) RETURN c.name"
		return &Response{OriginalCypher: q, ExecutedCypher: &q, Results: rs}, nil
	}
}

func newController(t *testing.T, q Querier, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController(q, nil, opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func render(t *testing.T, c *Controller) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestSubmitReady(t *testing.T) {
	c := newController(t, respond(happiness()))
	if got := c.Status().State; got != StateIdle {
		t.Fatalf("initial state = %s", got)
	}

	outcome, err := c.Submit(context.Background(), "happiness of Finland and Sweden")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.State != StateReady || outcome.RequestID == "" {
		t.Errorf("outcome = %+v", outcome)
	}

	var types []chart.Type
	for _, s := range outcome.Charts {
		types = append(types, s.Type)
	}
	want := []chart.Type{chart.TypeLine, chart.TypeBar, chart.TypePie}
	if len(types) != len(want) {
		t.Fatalf("chart types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("chart %d = %s, want %s", i, types[i], want[i])
		}
	}
	if len(outcome.Response.Charts) != 3 {
		t.Errorf("response charts = %d", len(outcome.Response.Charts))
	}

	st := c.Status()
	if st.State != StateReady || st.RequestID != "" || c.Pending() {
		t.Errorf("status = %+v", st)
	}
	if !c.View().Mounted() || len(c.View().Specs()) != 3 {
		t.Error("view not mounted")
	}
	if html := render(t, c); !strings.Contains(html, `id="charts"`) {
		t.Error("report has no chart area")
	}
}

func TestSubmitEmpty(t *testing.T) {
	c := newController(t, respond(record.ResultSet{Rows: []record.Record{}}))

	outcome, err := c.Submit(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.State != StateEmpty || len(outcome.Charts) != 0 {
		t.Errorf("outcome = %+v", outcome)
	}
	if c.Status().State != StateEmpty {
		t.Errorf("state = %s", c.Status().State)
	}
	if html := render(t, c); !strings.Contains(html, "No data") {
		t.Error("expected no-data placeholder")
	}
}

func TestSubmitQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	c := newController(t, querierFunc(func(context.Context, string) (*Response, error) {
		return nil, boom
	}))

	if _, err := c.Submit(context.Background(), "happiness"); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}

	st := c.Status()
	if st.State != StateFailed || st.Error != boom.Error() || c.Pending() {
		t.Errorf("status = %+v", st)
	}
	if html := render(t, c); !strings.Contains(html, "error-message") || !strings.Contains(html, "connection refused") {
		t.Errorf("expected error panel, got %s", html)
	}
}

func TestSubmitExecutionError(t *testing.T) {
	c := newController(t, querierFunc(func(context.Context, string) (*Response, error) {
		q := "MATCH (n) RETURN n.missing"
		return &Response{OriginalCypher: q, ExecutedCypher: &q, Error: "syntax error", Results: record.ResultSet{}}, nil
	}))

	outcome, err := c.Submit(context.Background(), "happiness")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.State != StateFailed || outcome.Response.Error != "syntax error" {
		t.Errorf("outcome = %+v", outcome)
	}
	if c.Status().State != StateFailed {
		t.Errorf("state = %s", c.Status().State)
	}
}

func TestSubmitReleasesAfterPanic(t *testing.T) {
	c := newController(t, querierFunc(func(context.Context, string) (*Response, error) {
		panic("querier exploded")
	}))

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		c.Submit(context.Background(), "happiness")
	}()

	if c.Pending() {
		t.Fatal("loading state not released after panic")
	}
	if st := c.Status(); st.State != StateFailed {
		t.Errorf("state = %s", st.State)
	}
}

func TestSubmitTimeout(t *testing.T) {
	c := newController(t, querierFunc(func(ctx context.Context, _ string) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), WithTimeout(10*time.Millisecond))

	if _, err := c.Submit(context.Background(), "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if c.Pending() {
		t.Error("still pending after timeout")
	}
}

func TestSubmitEmptyPrompt(t *testing.T) {
	c := newController(t, respond(happiness()))
	if _, err := c.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if c.Status().State != StateIdle {
		t.Errorf("state = %s", c.Status().State)
	}
}

func TestSubmitBusy(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	c := newController(t, querierFunc(func(context.Context, string) (*Response, error) {
		close(started)
		<-unblock
		return respond(happiness())(context.Background(), "")
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	var first *Outcome
	var firstErr error
	go func() {
		defer wg.Done()
		first, firstErr = c.Submit(context.Background(), "first")
	}()

	<-started
	if st := c.Status(); st.State != StateLoading || st.RequestID == "" {
		t.Errorf("status while pending = %+v", st)
	}
	if _, err := c.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(unblock)
	wg.Wait()
	if firstErr != nil || first.State != StateReady {
		t.Fatalf("first submission = %+v, %v", first, firstErr)
	}

	// 释放后可再次提交
	c.querier = respond(happiness())
	if _, err := c.Submit(context.Background(), "third"); err != nil {
		t.Errorf("resubmit: %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	c := newController(t, respond(happiness()))
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	if _, err := c.Submit(context.Background(), "happiness"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var states []State
	for i := 0; i < 3; i++ {
		select {
		case st := <-ch:
			states = append(states, st.State)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %v", states)
		}
	}
	want := []State{StateIdle, StateLoading, StateReady}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states = %v, want %v", states, want)
			break
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := newController(t, respond(happiness()))
	ch, unsubscribe := c.Subscribe()
	<-ch
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
}

// fakeTranslator / fakeExecutor 流水线测试替身
type fakeTranslator struct {
	query string
	err   error
}

func (f *fakeTranslator) Translate(context.Context, string) (string, error) {
	return f.query, f.err
}

type fakeExecutor struct {
	executed []string
	rs       record.ResultSet
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, q string) (record.ResultSet, error) {
	f.executed = append(f.executed, q)
	return f.rs, f.err
}

func (f *fakeExecutor) Describe(context.Context) (string, error) { return "", nil }

func (f *fakeExecutor) Close(context.Context) error { return nil }

func TestPipelineRewritesCypher(t *testing.T) {
	tr := &fakeTranslator{query: "MATCH (c:Country)-[:HAS_HAPPINESS_DATA]->(y:Year) RETURN c.name, y.year, y.happiness_score"}
	ex := &fakeExecutor{rs: happiness()}
	p := NewPipeline(tr, ex, ai.DialectCypher, DefaultBreakerConfig())

	resp, err := p.Query(context.Background(), "happiness")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := "MATCH (c:Country)-[r:HAS_HAPPINESS_DATA]->(y:Year) RETURN c.name, y.year, r.happiness_score"
	if resp.ExecutedCypher == nil || *resp.ExecutedCypher != want {
		t.Errorf("executed = %v", resp.ExecutedCypher)
	}
	if resp.OriginalCypher != tr.query {
		t.Errorf("original = %q", resp.OriginalCypher)
	}
	if len(ex.executed) != 1 || ex.executed[0] != want {
		t.Errorf("executor received %v", ex.executed)
	}
	if resp.Results.Len() != 4 || resp.Error != "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestPipelineSQLIsNotRewritten(t *testing.T) {
	tr := &fakeTranslator{query: "SELECT y.year FROM happiness y"}
	ex := &fakeExecutor{rs: record.ResultSet{}}
	p := NewPipeline(tr, ex, ai.DialectSQL, DefaultBreakerConfig())

	resp, err := p.Query(context.Background(), "years")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if *resp.ExecutedCypher != tr.query {
		t.Errorf("executed = %q", *resp.ExecutedCypher)
	}
	if resp.Results.Rows == nil {
		t.Error("results should encode as an empty array")
	}
}

func TestPipelineExecutionError(t *testing.T) {
	tr := &fakeTranslator{query: "MATCH (n) RETURN n"}
	ex := &fakeExecutor{err: errors.New("Neo.ClientError.Statement.SyntaxError")}
	p := NewPipeline(tr, ex, ai.DialectCypher, DefaultBreakerConfig())

	resp, err := p.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("execution errors belong in the response, got %v", err)
	}
	if !strings.Contains(resp.Error, "SyntaxError") || !resp.Results.Empty() {
		t.Errorf("response = %+v", resp)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(data, []byte(`"results":[]`)) || !bytes.Contains(data, []byte(`"error":`)) {
		t.Errorf("json = %s", data)
	}
}

func TestPipelineTranslationError(t *testing.T) {
	tr := &fakeTranslator{err: ai.ErrUnsafeQuery}
	ex := &fakeExecutor{}
	p := NewPipeline(tr, ex, ai.DialectCypher, DefaultBreakerConfig())

	if _, err := p.Query(context.Background(), "delete everything"); !errors.Is(err, ai.ErrUnsafeQuery) {
		t.Fatalf("expected ErrUnsafeQuery, got %v", err)
	}
	if len(ex.executed) != 0 {
		t.Error("unsafe query reached the executor")
	}
}

func TestPipelineBreakerOpens(t *testing.T) {
	tr := &fakeTranslator{err: errors.New("ollama down")}
	p := NewPipeline(tr, &fakeExecutor{}, ai.DialectCypher, BreakerConfig{Threshold: 2, Timeout: time.Minute})

	for i := 0; i < 2; i++ {
		p.Query(context.Background(), "q")
	}
	tr.err = nil
	tr.query = "MATCH (n) RETURN n"
	if _, err := p.Query(context.Background(), "q"); err == nil {
		t.Fatal("expected open breaker to reject the call")
	}
}

func TestPipelineStatementErrorsKeepBreakerClosed(t *testing.T) {
	syntax := &adapter.QueryError{Err: errors.New("Neo.ClientError.Statement.SyntaxError")}
	tr := &fakeTranslator{query: "MATCH (n RETURN n"}
	ex := &fakeExecutor{err: syntax}
	p := NewPipeline(tr, ex, ai.DialectCypher, DefaultBreakerConfig())

	for i := 0; i < 5; i++ {
		resp, err := p.Query(context.Background(), "q")
		if err != nil || !strings.Contains(resp.Error, "SyntaxError") {
			t.Fatalf("attempt %d: resp=%+v err=%v", i, resp, err)
		}
	}

	tr.query = "MATCH (n) RETURN n"
	ex.err = nil
	ex.rs = happiness()
	resp, err := p.Query(context.Background(), "q")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Error != "" || resp.Results.Len() != 4 {
		t.Errorf("valid query after statement errors: %+v", resp)
	}
	if len(ex.executed) != 6 {
		t.Errorf("executor called %d times, want 6", len(ex.executed))
	}
}

func TestPipelineRejectedTranslationsKeepBreakerClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unsafe", ai.ErrUnsafeQuery},
		{"empty", ai.ErrEmptyTranslation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranslator{err: tt.err}
			p := NewPipeline(tr, &fakeExecutor{}, ai.DialectCypher, BreakerConfig{Threshold: 2, Timeout: time.Minute})

			for i := 0; i < 5; i++ {
				if _, err := p.Query(context.Background(), "q"); !errors.Is(err, tt.err) {
					t.Fatalf("attempt %d: got %v, want %v", i, err, tt.err)
				}
			}
		})
	}
}

func TestPipelineWriteQueryKeepsBreakerClosed(t *testing.T) {
	tr := &fakeTranslator{query: "MATCH (n) RETURN n"}
	ex := &fakeExecutor{err: adapter.ErrWriteQuery}
	p := NewPipeline(tr, ex, ai.DialectCypher, BreakerConfig{Threshold: 2, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		p.Query(context.Background(), "q")
	}
	if len(ex.executed) != 3 {
		t.Errorf("executor called %d times, want 3", len(ex.executed))
	}
}

func TestPipelineExecutorOutageOpensBreaker(t *testing.T) {
	tr := &fakeTranslator{query: "MATCH (n) RETURN n"}
	ex := &fakeExecutor{err: errors.New("dial tcp 127.0.0.1:7687: connection refused")}
	p := NewPipeline(tr, ex, ai.DialectCypher, BreakerConfig{Threshold: 2, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		p.Query(context.Background(), "q")
	}
	if len(ex.executed) != 2 {
		t.Errorf("executor called %d times, want 2 before the breaker opens", len(ex.executed))
	}
}

func TestRemoteQuerier(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"original_cypher":"q","executed_cypher":"q","results":[{"year":2020,"country":"Finland"}]}`))
	}))
	defer srv.Close()

	resp, err := NewRemoteQuerier(srv.URL+"/", time.Second).Query(context.Background(), "happiness")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got["prompt"] != "happiness" {
		t.Errorf("request body = %v", got)
	}
	if resp.Results.Len() != 1 || strings.Join(resp.Results.Columns, ",") != "year,country" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestRemoteQuerierErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error body", http.StatusBadGateway, `{"error":"model unavailable"}`, "model unavailable"},
		{"plain body", http.StatusInternalServerError, `oops`, "500"},
		{"not json", http.StatusOK, `<html>`, "parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemoteQuerier(srv.URL, time.Second).Query(context.Background(), "x")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
