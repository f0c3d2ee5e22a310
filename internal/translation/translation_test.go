package translation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/services"
	"lexisub/internal/vocabulary"
)

type countingBackend struct {
	calls atomic.Int32
	build BuildParams
}

func (b *countingBackend) Name() string { return "counting" }

func (b *countingBackend) Translate(_ context.Context, text string, call CallParams) (Result, error) {
	b.calls.Add(1)
	return Result{TranslatedText: strings.ToUpper(text) + "@" + call.TargetLang, Backend: "counting"}, nil
}

func TestSplitSeparatesParams(t *testing.T) {
	build, call := FactoryParams{
		Model:      " m1 ",
		Device:     "CUDA",
		BatchSize:  0,
		SourceLang: "DE",
		TargetLang: "en",
	}.Split()
	if build != (BuildParams{Model: "m1", Device: "cuda", BatchSize: 1}) {
		t.Fatalf("unexpected build params: %+v", build)
	}
	if call != (CallParams{SourceLang: "de", TargetLang: "en", Quality: QualityStandard}) {
		t.Fatalf("unexpected call params: %+v", call)
	}
}

func TestFactoryCachesByBuildParamsOnly(t *testing.T) {
	var constructed atomic.Int32
	f := NewFactory()
	if err := f.Register("counting", func(build BuildParams) (Backend, error) {
		constructed.Add(1)
		return &countingBackend{build: build}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, call1, err := f.Get("counting", FactoryParams{Model: "m", SourceLang: "de", TargetLang: "en"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, call2, err := f.Get("counting", FactoryParams{Model: "m", SourceLang: "fr", TargetLang: "es", Quality: "high"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first != second {
		t.Fatal("call params changed instance identity")
	}
	if call1.TargetLang != "en" || call2.TargetLang != "es" || call2.Quality != "high" {
		t.Fatalf("call params not returned per request: %+v %+v", call1, call2)
	}
	third, _, err := f.Get("counting", FactoryParams{Model: "other"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if third == first {
		t.Fatal("different build params must yield a different instance")
	}
	if constructed.Load() != 2 || f.Instances() != 2 {
		t.Fatalf("expected 2 constructions, got %d (instances %d)", constructed.Load(), f.Instances())
	}
}

func TestFactoryConcurrentGetConstructsOnce(t *testing.T) {
	var constructed atomic.Int32
	f := NewFactory()
	_ = f.Register("counting", func(BuildParams) (Backend, error) {
		constructed.Add(1)
		return &countingBackend{}, nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.Get("counting", FactoryParams{Model: "m"}); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()
	if constructed.Load() != 1 {
		t.Fatalf("expected one construction, got %d", constructed.Load())
	}
}

func TestFactoryUnknownBackend(t *testing.T) {
	f := NewFactory()
	_, _, err := f.Get("nope", FactoryParams{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := f.Register("x", nil); err == nil {
		t.Fatal("expected error registering nil constructor")
	}
}

func TestDictionaryBackendGlossesKnownWords(t *testing.T) {
	catalog, err := vocabulary.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	f := NewFactory()
	_ = f.Register(BackendDictionary, NewDictionaryConstructor(catalog))
	backend, call, err := f.Get(BackendDictionary, FactoryParams{SourceLang: "de", TargetLang: "en"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res, err := backend.Translate(context.Background(), "Hallo, Welt! Xyzzy", call)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.TranslatedText != "Hello, World! Xyzzy" {
		t.Fatalf("unexpected gloss %q", res.TranslatedText)
	}
	if res.Backend != BackendDictionary {
		t.Fatalf("unexpected backend %q", res.Backend)
	}
}

func newChatServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, attempt int32)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r, attempts.Add(1))
	}))
	t.Cleanup(srv.Close)
	return srv, &attempts
}

func writeReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"content": content}}},
	})
}

func TestLLMBackendTranslates(t *testing.T) {
	srv, _ := newChatServer(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if !strings.Contains(req.Messages[0].Content, "German") || !strings.Contains(req.Messages[0].Content, "English") {
			t.Errorf("prompt missing languages: %q", req.Messages[0].Content)
		}
		writeReply(w, "```json\n{\"translation\": \"Hello\"}\n```")
	})
	client := NewChatClient(ChatConfig{APIKey: "key", Endpoint: srv.URL})
	backend, err := NewLLMConstructor(client, "default-model")(BuildParams{Model: "test-model", BatchSize: 2})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	res, err := backend.Translate(context.Background(), "Hallo", CallParams{SourceLang: "de", TargetLang: "en", Quality: "standard"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.TranslatedText != "Hello" || res.Backend != BackendLLM {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLLMBackendRetriesServerErrors(t *testing.T) {
	srv, attempts := newChatServer(t, func(w http.ResponseWriter, _ *http.Request, attempt int32) {
		if attempt < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		writeReply(w, `{"translation": "World"}`)
	})
	client := NewChatClient(ChatConfig{APIKey: "key", Endpoint: srv.URL}, WithChatRetry(4, time.Millisecond, 5*time.Millisecond))
	backend, _ := NewLLMConstructor(client, "m")(BuildParams{BatchSize: 1})
	res, err := backend.Translate(context.Background(), "Welt", CallParams{SourceLang: "de", TargetLang: "en"})
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if res.TranslatedText != "World" || attempts.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d attempts", res, attempts.Load())
	}
}

func TestLLMBackendClientErrorIsInvocationError(t *testing.T) {
	srv, attempts := newChatServer(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})
	client := NewChatClient(ChatConfig{APIKey: "key", Endpoint: srv.URL}, WithChatRetry(4, time.Millisecond, time.Millisecond))
	backend, _ := NewLLMConstructor(client, "m")(BuildParams{BatchSize: 1})
	_, err := backend.Translate(context.Background(), "Welt", CallParams{})
	var invocation *services.BackendInvocationError
	if !errors.As(err, &invocation) {
		t.Fatalf("expected backend invocation error, got %v", err)
	}
	if invocation.Backend != BackendLLM || invocation.Op != "translate" {
		t.Fatalf("unexpected invocation error %+v", invocation)
	}
	if services.Classify(err) != services.CategoryBackendInvocation {
		t.Fatalf("unexpected category %q", services.Classify(err))
	}
	if attempts.Load() != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestLLMBackendMissingTranslationField(t *testing.T) {
	srv, _ := newChatServer(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		writeReply(w, `{"text": "World"}`)
	})
	client := NewChatClient(ChatConfig{APIKey: "key", Endpoint: srv.URL})
	backend, _ := NewLLMConstructor(client, "m")(BuildParams{BatchSize: 1})
	if _, err := backend.Translate(context.Background(), "Welt", CallParams{}); err == nil {
		t.Fatal("expected error for reply without translation")
	}
}

func TestDecodeJSONReplyToleratesProse(t *testing.T) {
	var reply struct {
		Translation string `json:"translation"`
	}
	if err := decodeJSONReply("Sure! {\"translation\": \"ok\"} Enjoy.", &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Translation != "ok" {
		t.Fatalf("unexpected value %q", reply.Translation)
	}
	if err := decodeJSONReply("no json here", &reply); err == nil {
		t.Fatal("expected error")
	}
}

func TestMemoryServesRepeatTranslations(t *testing.T) {
	mem, err := OpenMemory(filepath.Join(t.TempDir(), "cache", "translations.db"))
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })

	inner := &countingBackend{}
	var hits atomic.Int32
	cached := mem.Wrap(inner, BuildParams{Model: "m"}, func() { hits.Add(1) }, nil)
	call := CallParams{SourceLang: "de", TargetLang: "en", Quality: "standard"}
	ctx := context.Background()

	first, err := cached.Translate(ctx, "hallo", call)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	second, err := cached.Translate(ctx, "hallo", call)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if first != second {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
	if inner.calls.Load() != 1 || hits.Load() != 1 {
		t.Fatalf("expected one backend call and one hit, got %d calls %d hits", inner.calls.Load(), hits.Load())
	}

	if _, err := cached.Translate(ctx, "hallo", CallParams{SourceLang: "de", TargetLang: "fr", Quality: "standard"}); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("different target language must miss the cache")
	}
	if n, err := mem.Count(ctx); err != nil || n != 2 {
		t.Fatalf("expected 2 rows, got %d (%v)", n, err)
	}
}

func TestTranslateSegmentsSkipsSilence(t *testing.T) {
	inner := &countingBackend{}
	segments := []chunk.Segment{
		{Index: 0, Start: 0, End: 1, Text: "hallo"},
		{Index: 1, Start: 1, End: 2, Text: "  "},
		{Index: 2, Start: 2, End: 3, Text: "welt"},
	}
	var reports []int
	out, err := TranslateSegments(context.Background(), inner, CallParams{TargetLang: "en"}, segments, func(done, total int) {
		if total != 3 {
			t.Errorf("unexpected total %d", total)
		}
		reports = append(reports, done)
	})
	if err != nil {
		t.Fatalf("translate segments: %v", err)
	}
	if out[0].TranslatedText != "HALLO@en" || out[1].TranslatedText != "" || out[2].TranslatedText != "WELT@en" {
		t.Fatalf("unexpected output %+v", out)
	}
	if segments[0].TranslatedText != "" {
		t.Fatal("input segments were mutated")
	}
	if inner.calls.Load() != 2 || len(reports) != 3 {
		t.Fatalf("unexpected calls=%d reports=%v", inner.calls.Load(), reports)
	}
}

func TestTranslateSegmentsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TranslateSegments(ctx, &countingBackend{}, CallParams{}, []chunk.Segment{{Text: "x", End: 1}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
