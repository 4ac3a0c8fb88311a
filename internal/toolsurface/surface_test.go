package toolsurface

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/contentclassifier"
	"github.com/sdforge/sdforge/internal/convstore"
	"github.com/sdforge/sdforge/internal/llmrouter"
	"github.com/sdforge/sdforge/internal/loracatalog"
	"github.com/sdforge/sdforge/internal/queue"
	"github.com/sdforge/sdforge/internal/repo"
	"github.com/sdforge/sdforge/internal/sdgateway"
	"github.com/sdforge/sdforge/internal/uploadrouter"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakeGateway struct {
	models     []sdgateway.SDModel
	samplers   []sdgateway.Sampler
	genResult  sdgateway.GenerationResult
	genErr     error
	lastParams sdgateway.GenerationParams
}

func (f *fakeGateway) ListModels(ctx context.Context) ([]sdgateway.SDModel, error) {
	return f.models, nil
}

func (f *fakeGateway) ListSamplers(ctx context.Context) ([]sdgateway.Sampler, error) {
	return f.samplers, nil
}

func (f *fakeGateway) Txt2Img(ctx context.Context, p sdgateway.GenerationParams) (sdgateway.GenerationResult, error) {
	f.lastParams = p
	return f.genResult, f.genErr
}

func (f *fakeGateway) PollProgress(ctx context.Context) (sdgateway.ProgressInfo, error) {
	return sdgateway.ProgressInfo{}, nil
}

func (f *fakeGateway) Interrupt(ctx context.Context) error { return nil }

type fakeLoRAGateway struct{}

func (fakeLoRAGateway) ListLoRAs(ctx context.Context) ([]sdgateway.LoRAListing, error) {
	return nil, nil
}

func newTestSurface(t *testing.T, admins []string) (*Surface, *fakeGateway) {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)

	gw := &fakeGateway{
		models:   []sdgateway.SDModel{{Title: "Anything V5", ModelName: "anythingv5"}},
		samplers: []sdgateway.Sampler{{Name: "Euler a"}},
		genResult: sdgateway.GenerationResult{
			Images: [][]byte{[]byte("fake-png-bytes")},
			Info:   "steps=20",
		},
	}

	catalog := loracatalog.New(db, fakeLoRAGateway{}, config.CatalogConfig{
		NSFWShareThreshold: 0.10, SuggestiveShareThreshold: 0.05,
	})
	classifier := contentclassifier.New(db)
	if err := contentclassifier.SeedBuiltins(ctx, db); err != nil {
		t.Fatalf("seed builtins: %v", err)
	}

	q := queue.New(ctx, gw, nil, nil, config.NSFWConfig{}, 10)

	uploader := uploadrouter.New(db, config.HostingConfig{LocalFallback: true, LocalDir: t.TempDir()})

	store, err := convstore.New(ctx, db, config.AutoCleanConfig{})
	if err != nil {
		t.Fatalf("new convstore: %v", err)
	}

	chatSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	t.Cleanup(chatSrv.Close)
	router := llmrouter.New(ctx, config.ChatConfig{
		Provider: "lmstudio",
		LMStudio: config.ChatProviderConfig{BaseURL: chatSrv.URL},
	})

	surface := New(gw, catalog, classifier, q, uploader, store, router, config.ModerationConfig{AdminUserIDs: admins})
	return surface, gw
}

func TestGetSDModelsSummary_ReturnsEngineModels(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	result := surface.GetSDModelsSummary(context.Background())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	models, ok := result.Payload.([]sdgateway.SDModel)
	if !ok || len(models) != 1 {
		t.Fatalf("expected 1 model, got %#v", result.Payload)
	}
}

func TestSearchSDModels_FiltersByQuery(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	result := surface.SearchSDModels(context.Background(), "anything", 5)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	models := result.Payload.([]sdgateway.SDModel)
	if len(models) != 1 {
		t.Fatalf("expected 1 match, got %d", len(models))
	}

	result = surface.SearchSDModels(context.Background(), "nonexistent", 5)
	if result.Payload.([]sdgateway.SDModel) == nil {
		t.Fatalf("expected an empty slice, not nil")
	}
}

func TestGenerateImage_UploadsFirstResultLocally(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	result := surface.GenerateImage(context.Background(), sdgateway.GenerationParams{Prompt: "a cat"}, nil, "user-1")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	gen := result.Payload.(GenerateResult)
	if gen.ImageURL == "" || gen.Sink != uploadrouter.SinkLocal {
		t.Fatalf("expected a local upload, got %#v", gen)
	}
}

func TestGenerateImage_NoImagesFails(t *testing.T) {
	surface, gw := newTestSurface(t, nil)
	gw.genResult = sdgateway.GenerationResult{}
	result := surface.GenerateImage(context.Background(), sdgateway.GenerationParams{Prompt: "a cat"}, nil, "user-1")
	if result.Success {
		t.Fatalf("expected failure when no images are returned")
	}
}

func TestGenerateImage_EmbedsSelectedLoRATags(t *testing.T) {
	surface, gw := newTestSurface(t, nil)
	result := surface.GenerateImage(context.Background(), sdgateway.GenerationParams{Prompt: "a cat"},
		[]loracatalog.Selection{{Name: "anime_style", Weight: 0.8}}, "user-1")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	want := "<lora:anime_style:0.8> a cat"
	if gw.lastParams.Prompt != want {
		t.Fatalf("expected prompt %q, got %q", want, gw.lastParams.Prompt)
	}
}

func TestOrchestrateImageGeneration_EmbedsAppliedLoRATags(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	result := surface.OrchestrateImageGeneration(context.Background(), "user-1", "anime girl with cat ears", "", 3, loracatalog.StyleBalanced, 5)
	if result.JobID == "" {
		t.Fatalf("expected a job id")
	}
	job, err := surface.queue.Get(result.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if len(result.Applied) > 0 && !strings.Contains(job.Request.Prompt, "<lora:") {
		t.Fatalf("expected enqueued prompt to carry lora tags, got %q", job.Request.Prompt)
	}
}

func TestEnqueueAndInspectGenerationJob(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	enq := surface.EnqueueImageGeneration(queue.Request{Prompt: "a dog"}, 5)
	if !enq.Success {
		t.Fatalf("expected enqueue to succeed, got %q", enq.Error)
	}
	jobID := enq.Payload.(map[string]string)["job_id"]
	if jobID == "" {
		t.Fatalf("expected a job id")
	}

	status := surface.GetQueueStatus()
	if !status.Success {
		t.Fatalf("expected queue status lookup to succeed")
	}
}

func TestTestHostingServices_ReportsLocalAvailable(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	result := surface.TestHostingServices(context.Background())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	statuses := result.Payload.(map[string]uploadrouter.ServiceStatus)
	if !statuses["local"].Available {
		t.Fatalf("expected local sink to report available")
	}
}

func TestAdminTools_RefuseNonAdminCallers(t *testing.T) {
	surface, _ := newTestSurface(t, []string{"admin-1"})

	result := surface.SuspendUser(context.Background(), "not-an-admin", "user-2", "spam")
	if result.Success {
		t.Fatalf("expected non-admin caller to be refused")
	}

	result = surface.SuspendUser(context.Background(), "admin-1", "user-2", "spam")
	if !result.Success {
		t.Fatalf("expected admin caller to succeed, got %q", result.Error)
	}
}

func TestAnalyzePromptContent_RatesLandscapePromptSafe(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	result := surface.AnalyzePromptContent(context.Background(), "a peaceful landscape", "")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	analysis := result.Payload.(contentclassifier.AnalyzeResult)
	if analysis.Safety.Level != contentclassifier.SafetyLevelSafe {
		t.Fatalf("expected a safe landscape prompt, got %v", analysis.Safety.Level)
	}
}

func TestOrchestrateImageGeneration_EnqueuesAndReportsSteps(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	result := surface.OrchestrateImageGeneration(context.Background(), "user-1", "a quiet forest", "", 3, loracatalog.StyleBalanced, 5)
	if result.JobID == "" {
		t.Fatalf("expected a job id")
	}
	found := false
	for _, step := range result.CompletedSteps {
		if step == StepEnqueue {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected enqueue step to be recorded, got %v", result.CompletedSteps)
	}
}

func TestGetConversationHistory_ReturnsMessagesAndStats(t *testing.T) {
	surface, _ := newTestSurface(t, nil)
	ctx := context.Background()

	if _, err := surface.store.Append(ctx, "channel:c1", "u1", "user", "hello", ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := surface.store.Append(ctx, "channel:c1", "assistant", "assistant", "hi there", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	result := surface.GetConversationHistory(ctx, "channel:c1", 10)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	history := result.Payload.(ConversationHistory)
	if len(history.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history.Messages))
	}
	if history.Count != 2 {
		t.Fatalf("expected count 2, got %d", history.Count)
	}
	if history.LastMessageAt == nil {
		t.Fatalf("expected a last-message timestamp")
	}

	empty := surface.GetConversationHistory(ctx, "channel:empty", 10)
	if !empty.Success {
		t.Fatalf("expected success for empty context, got error %q", empty.Error)
	}
	emptyHistory := empty.Payload.(ConversationHistory)
	if len(emptyHistory.Messages) != 0 || emptyHistory.Count != 0 || emptyHistory.LastMessageAt != nil {
		t.Fatalf("expected empty stats for unused context, got %+v", emptyHistory)
	}
}

func TestListPersonalitiesAndProviderInfo(t *testing.T) {
	surface, _ := newTestSurface(t, nil)

	personalities := surface.ListPersonalities(context.Background())
	if !personalities.Success {
		t.Fatalf("expected success, got error %q", personalities.Error)
	}

	info := surface.GetProviderInfo(context.Background())
	if !info.Success {
		t.Fatalf("expected provider info lookup to succeed")
	}

	available := surface.GetAvailableProviders()
	providers := available.Payload.([]string)
	if len(providers) == 0 {
		t.Fatalf("expected at least one known provider")
	}
}
