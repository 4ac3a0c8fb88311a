// Tool-surface HTTP handlers.
//
// This file exposes the outward tool catalog (model/sampler/LoRA
// enumeration, content analysis, image generation, queue inspection, the
// guided-generation recipe, and admin tools) over REST, thinly wrapping
// toolsurface.Surface: parse input, call the tool, translate the
// structured {success, error, payload}
// envelope into an HTTP response.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sdforge/sdforge/internal/convstore"
	"github.com/sdforge/sdforge/internal/loracatalog"
	"github.com/sdforge/sdforge/internal/personacore"
	"github.com/sdforge/sdforge/internal/queue"
	"github.com/sdforge/sdforge/internal/sdgateway"
	"github.com/sdforge/sdforge/internal/toolsurface"
	"github.com/sdforge/sdforge/internal/utils"
)

// ToolHandlers exposes toolsurface.Surface and personacore.Core over HTTP.
type ToolHandlers struct {
	surface *toolsurface.Surface
	persona *personacore.Core
}

// NewToolHandlers constructs ToolHandlers bound to the tool surface and the
// conversational core.
func NewToolHandlers(surface *toolsurface.Surface, persona *personacore.Core) *ToolHandlers {
	return &ToolHandlers{surface: surface, persona: persona}
}

// writeResult translates a toolsurface.Result into the HTTP envelope: the
// payload on success, ErrCodeToolFailed on failure.
func writeResult(c *gin.Context, status int, r toolsurface.Result) {
	if !r.Success {
		fail(c, http.StatusBadRequest, ErrCodeToolFailed, r.Error)
		return
	}
	ok(c, status, r.Payload)
}

func intQuery(c *gin.Context, name string, def int) int {
	return utils.AtoiDefault(c.Query(name), def)
}

// GetSDModelsSummary godoc
// @Summary List available SD checkpoints
// @Tags Catalog
// @Produce json
// @Success 200 {array} sdgateway.SDModel
// @Router /sd/models [get]
func (h *ToolHandlers) GetSDModelsSummary(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetSDModelsSummary(c.Request.Context()))
}

// SearchSDModels godoc
// @Summary Search SD checkpoints by substring
// @Tags Catalog
// @Produce json
// @Param q query string false "search query"
// @Param limit query int false "max results"
// @Success 200 {array} sdgateway.SDModel
// @Router /sd/models/search [get]
func (h *ToolHandlers) SearchSDModels(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.SearchSDModels(c.Request.Context(), c.Query("q"), intQuery(c, "limit", 20)))
}

// GetSamplersList godoc
// @Summary List available samplers
// @Tags Catalog
// @Produce json
// @Success 200 {array} sdgateway.Sampler
// @Router /sd/samplers [get]
func (h *ToolHandlers) GetSamplersList(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetSamplersList(c.Request.Context()))
}

// GetLoRASummary godoc
// @Summary Summarize the LoRA catalog
// @Tags Catalog
// @Produce json
// @Success 200 {object} loracatalog.Summary
// @Router /loras/summary [get]
func (h *ToolHandlers) GetLoRASummary(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetLoRASummary(c.Request.Context()))
}

// BrowseLoRAsByCategory godoc
// @Summary Browse catalog entries under one category
// @Tags Catalog
// @Produce json
// @Param category query string true "category path"
// @Param limit query int false "max results"
// @Success 200 {array} loracatalog.Entry
// @Router /loras/browse [get]
func (h *ToolHandlers) BrowseLoRAsByCategory(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.BrowseLoRAsByCategory(c.Request.Context(), c.Query("category"), intQuery(c, "limit", 20)))
}

// SearchLoRAsSmart godoc
// @Summary Rank catalog entries against a free-text query
// @Tags Catalog
// @Produce json
// @Param q query string true "search query"
// @Param limit query int false "max results"
// @Success 200 {array} loracatalog.SearchResult
// @Router /loras/search [get]
func (h *ToolHandlers) SearchLoRAsSmart(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.SearchLoRAsSmart(c.Request.Context(), c.Query("q"), intQuery(c, "limit", 20)))
}

// SuggestLoRAsForPromptRequest is the JSON payload for suggesting LoRAs.
type SuggestLoRAsForPromptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Limit  int    `json:"limit"`
}

// SuggestLoRAsForPrompt godoc
// @Summary Rank catalog entries against a generation prompt
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body handlers.SuggestLoRAsForPromptRequest true "prompt"
// @Success 200 {array} loracatalog.SuggestResult
// @Router /loras/suggest [post]
func (h *ToolHandlers) SuggestLoRAsForPrompt(c *gin.Context) {
	var req SuggestLoRAsForPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	writeResult(c, http.StatusOK, h.surface.SuggestLoRAsForPrompt(c.Request.Context(), req.Prompt, limit))
}

// ValidateLoRACombinationRequest is the JSON payload for validating a
// proposed LoRA selection.
type ValidateLoRACombinationRequest struct {
	Selected []loracatalog.Selection `json:"selected" binding:"required"`
}

// ValidateLoRACombination godoc
// @Summary Validate a proposed LoRA combination
// @Tags Catalog
// @Accept json
// @Produce json
// @Param body body handlers.ValidateLoRACombinationRequest true "selection"
// @Success 200 {array} loracatalog.Conflict
// @Router /loras/validate [post]
func (h *ToolHandlers) ValidateLoRACombination(c *gin.Context) {
	var req ValidateLoRACombinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.ValidateLoRACombination(c.Request.Context(), req.Selected))
}

// AnalyzePromptContentRequest is the JSON payload for content analysis.
type AnalyzePromptContentRequest struct {
	Prompt         string `json:"prompt" binding:"required"`
	NegativePrompt string `json:"negative_prompt"`
}

// AnalyzePromptContent godoc
// @Summary Analyze a prompt for taxonomy matches and safety
// @Tags Content
// @Accept json
// @Produce json
// @Param body body handlers.AnalyzePromptContentRequest true "prompt"
// @Success 200 {object} contentclassifier.AnalyzeResult
// @Router /content/analyze [post]
func (h *ToolHandlers) AnalyzePromptContent(c *gin.Context) {
	var req AnalyzePromptContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.AnalyzePromptContent(c.Request.Context(), req.Prompt, req.NegativePrompt))
}

// GetContentCategories godoc
// @Summary List the installed content taxonomy
// @Tags Content
// @Produce json
// @Param prefix query string false "category branch prefix"
// @Success 200 {array} contentclassifier.Category
// @Router /content/categories [get]
func (h *ToolHandlers) GetContentCategories(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetContentCategories(c.Request.Context(), c.Query("prefix")))
}

// GetUsageStatistics godoc
// @Summary Report taxonomy-wide word usage statistics
// @Tags Content
// @Produce json
// @Success 200 {object} contentclassifier.UsageStats
// @Router /content/usage [get]
func (h *ToolHandlers) GetUsageStatistics(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetUsageStatistics(c.Request.Context()))
}

// ExportContentConfig godoc
// @Summary Export the full taxonomy and its word mappings
// @Tags Content
// @Produce json
// @Success 200 {object} contentclassifier.ExportedConfig
// @Router /content/export [get]
func (h *ToolHandlers) ExportContentConfig(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.ExportContentConfig(c.Request.Context()))
}

// SearchContentWords godoc
// @Summary Search the content taxonomy's registered words
// @Tags Content
// @Produce json
// @Param q query string true "search query"
// @Success 200 {array} contentclassifier.Match
// @Router /content/words/search [get]
func (h *ToolHandlers) SearchContentWords(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.SearchContentWords(c.Request.Context(), c.Query("q")))
}

// EnhancedPromptGenerationRequest is the JSON payload for a prompt rewrite.
type EnhancedPromptGenerationRequest struct {
	Prompt           string `json:"prompt" binding:"required"`
	ApplySuggestions bool   `json:"apply_suggestions"`
	SafetyFilter     bool   `json:"safety_filter"`
}

// EnhancedPromptGeneration godoc
// @Summary Rewrite a prompt with taxonomy-aware suggestions and an optional safety filter
// @Tags Content
// @Accept json
// @Produce json
// @Param body body handlers.EnhancedPromptGenerationRequest true "prompt and rewrite options"
// @Success 200 {object} string
// @Router /content/enhance [post]
func (h *ToolHandlers) EnhancedPromptGeneration(c *gin.Context) {
	var req EnhancedPromptGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.EnhancedPromptGeneration(c.Request.Context(), req.Prompt, req.ApplySuggestions, req.SafetyFilter))
}

// GenerateImageRequest is the JSON payload for a direct, synchronous
// generation. Selected carries any LoRAs the caller wants applied that
// aren't already embedded as `<lora:NAME:WEIGHT>` tags in Prompt.
type GenerateImageRequest struct {
	sdgateway.GenerationParams
	Selected []loracatalog.Selection `json:"selected,omitempty"`
}

// GenerateImage godoc
// @Summary Generate an image synchronously and upload it
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body handlers.GenerateImageRequest true "generation params"
// @Success 200 {object} toolsurface.GenerateResult
// @Router /images/generate [post]
func (h *ToolHandlers) GenerateImage(c *gin.Context) {
	var req GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.GenerateImage(c.Request.Context(), req.GenerationParams, req.Selected, userID(c)))
}

// EnqueueImageGenerationRequest is the JSON payload for a queued generation.
type EnqueueImageGenerationRequest struct {
	queue.Request
	Priority int `json:"priority"`
}

// EnqueueImageGeneration godoc
// @Summary Submit a generation request to the background queue
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body handlers.EnqueueImageGenerationRequest true "generation request"
// @Success 202 {object} map[string]string
// @Router /images/queue [post]
func (h *ToolHandlers) EnqueueImageGeneration(c *gin.Context) {
	var req EnqueueImageGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	req.Request.UserID = userID(c)
	writeResult(c, http.StatusAccepted, h.surface.EnqueueImageGeneration(req.Request, req.Priority))
}

// GetGenerationProgress godoc
// @Summary Report a job's current state, or the running job if id is empty
// @Tags Generation
// @Produce json
// @Param id query string false "job id"
// @Success 200 {object} queue.Job
// @Router /images/queue/progress [get]
func (h *ToolHandlers) GetGenerationProgress(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetGenerationProgress(c.Query("id")))
}

// GetQueueStatus godoc
// @Summary List every non-terminal job
// @Tags Generation
// @Produce json
// @Success 200 {array} queue.Job
// @Router /images/queue [get]
func (h *ToolHandlers) GetQueueStatus(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetQueueStatus())
}

// CancelGenerationJob godoc
// @Summary Cancel a queued or running job
// @Tags Generation
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} map[string]string
// @Router /images/queue/{id} [delete]
func (h *ToolHandlers) CancelGenerationJob(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.CancelGenerationJob(c.Request.Context(), c.Param("id")))
}

// GetJobHistory godoc
// @Summary List the most recent finished (completed, failed or cancelled) jobs
// @Tags Generation
// @Produce json
// @Param limit query int false "max results"
// @Success 200 {array} queue.Job
// @Router /images/history [get]
func (h *ToolHandlers) GetJobHistory(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetJobHistory(intQuery(c, "limit", 20)))
}

// TestHostingServices godoc
// @Summary Probe which upload sinks are currently usable
// @Tags Generation
// @Produce json
// @Success 200 {object} map[string]uploadrouter.ServiceStatus
// @Router /images/hosting/test [get]
func (h *ToolHandlers) TestHostingServices(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.TestHostingServices(c.Request.Context()))
}

// OrchestrateImageGenerationRequest is the JSON payload for the guided
// end-to-end generation recipe.
type OrchestrateImageGenerationRequest struct {
	Prompt         string                      `json:"prompt" binding:"required"`
	NegativePrompt string                      `json:"negative_prompt"`
	MaxLoRAs       int                         `json:"max_loras"`
	StylePref      loracatalog.StylePreference `json:"style_preference"`
	Priority       int                         `json:"priority"`
}

// OrchestrateImageGeneration godoc
// @Summary Run the full guided-generation recipe and enqueue the result
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body handlers.OrchestrateImageGenerationRequest true "recipe input"
// @Success 202 {object} toolsurface.OrchestrationResult
// @Router /images/orchestrate [post]
func (h *ToolHandlers) OrchestrateImageGeneration(c *gin.Context) {
	var req OrchestrateImageGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	maxLoRAs := req.MaxLoRAs
	if maxLoRAs <= 0 {
		maxLoRAs = 5
	}
	stylePref := req.StylePref
	if stylePref == "" {
		stylePref = loracatalog.StyleBalanced
	}
	result := h.surface.OrchestrateImageGeneration(c.Request.Context(), userID(c), req.Prompt, req.NegativePrompt, maxLoRAs, stylePref, req.Priority)
	ok(c, http.StatusAccepted, result)
}

// ChatTurnRequest is the JSON payload for one conversational exchange.
type ChatTurnRequest struct {
	ContextKey string `json:"context_key" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

// ChatTurn godoc
// @Summary Run one conversational turn, dispatching to chat or image assist
// @Tags Conversation
// @Accept json
// @Produce json
// @Param body body handlers.ChatTurnRequest true "turn input"
// @Success 200 {object} personacore.Turn
// @Failure 429 {object} handlers.ErrorResponse
// @Router /chat/turn [post]
func (h *ToolHandlers) ChatTurn(c *gin.Context) {
	var req ChatTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	turn, err := h.persona.Turn(c.Request.Context(), userID(c), convstore.ContextKey(req.ContextKey), req.Message)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if turn.Refused {
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, turn.RefusalReason)
		return
	}
	ok(c, http.StatusOK, turn)
}

// TimeoutUserRequest is the JSON payload for timing out a user.
type TimeoutUserRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Minutes int    `json:"minutes" binding:"required"`
	Reason  string `json:"reason"`
}

// TimeoutUser godoc
// @Summary Time a user out of chat and generation
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body handlers.TimeoutUserRequest true "timeout input"
// @Success 200 {object} map[string]string
// @Failure 403 {object} handlers.ErrorResponse
// @Router /admin/users/timeout [post]
func (h *ToolHandlers) TimeoutUser(c *gin.Context) {
	var req TimeoutUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.TimeoutUser(c.Request.Context(), userID(c), req.UserID, req.Minutes, req.Reason))
}

// SuspendUserRequest is the JSON payload for suspending a user.
type SuspendUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// SuspendUser godoc
// @Summary Indefinitely suspend a user
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body handlers.SuspendUserRequest true "suspend input"
// @Success 200 {object} map[string]string
// @Failure 403 {object} handlers.ErrorResponse
// @Router /admin/users/suspend [post]
func (h *ToolHandlers) SuspendUser(c *gin.Context) {
	var req SuspendUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.SuspendUser(c.Request.Context(), userID(c), req.UserID, req.Reason))
}

// RestoreUser godoc
// @Summary Return a user to active moderation status
// @Tags Admin
// @Produce json
// @Param id path string true "user id"
// @Success 200 {object} map[string]string
// @Failure 403 {object} handlers.ErrorResponse
// @Router /admin/users/{id}/restore [post]
func (h *ToolHandlers) RestoreUser(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.RestoreUser(c.Request.Context(), userID(c), c.Param("id")))
}

// AdminLockPersonalityRequest is the JSON payload for pinning a user's
// personality against further self-service changes.
type AdminLockPersonalityRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	PersonalityName string `json:"personality_name" binding:"required"`
}

// AdminLockPersonality godoc
// @Summary Pin a user's personality and block further self-service changes
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body handlers.AdminLockPersonalityRequest true "lock input"
// @Success 200 {object} map[string]string
// @Failure 403 {object} handlers.ErrorResponse
// @Router /admin/users/personality/lock [post]
func (h *ToolHandlers) AdminLockPersonality(c *gin.Context) {
	var req AdminLockPersonalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.AdminLockPersonality(c.Request.Context(), userID(c), req.UserID, req.PersonalityName))
}

// AdminUnlockPersonalityRequest is the JSON payload for releasing a pinned
// personality.
type AdminUnlockPersonalityRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AdminUnlockPersonality godoc
// @Summary Release a user's pinned personality back to self-service
// @Tags Admin
// @Accept json
// @Produce json
// @Param body body handlers.AdminUnlockPersonalityRequest true "unlock input"
// @Success 200 {object} map[string]string
// @Failure 403 {object} handlers.ErrorResponse
// @Router /admin/users/personality/unlock [post]
func (h *ToolHandlers) AdminUnlockPersonality(c *gin.Context) {
	var req AdminUnlockPersonalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	writeResult(c, http.StatusOK, h.surface.AdminUnlockPersonality(c.Request.Context(), userID(c), req.UserID))
}

// GetConversationHistory godoc
// @Summary Fetch a conversation context's message history and stats
// @Tags Conversation
// @Produce json
// @Param context_key query string true "context key"
// @Param limit query int false "max messages"
// @Success 200 {object} toolsurface.ConversationHistory
// @Router /chat/history [get]
func (h *ToolHandlers) GetConversationHistory(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetConversationHistory(c.Request.Context(), c.Query("context_key"), intQuery(c, "limit", 50)))
}

// ListPersonalities godoc
// @Summary List every installed personality
// @Tags Conversation
// @Produce json
// @Success 200 {array} domain.Personality
// @Router /personalities [get]
func (h *ToolHandlers) ListPersonalities(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.ListPersonalities(c.Request.Context()))
}

// GetProviderInfo godoc
// @Summary Report the active chat provider's identity and health
// @Tags Admin
// @Produce json
// @Success 200 {object} llmrouter.ProviderInfo
// @Router /admin/providers/active [get]
func (h *ToolHandlers) GetProviderInfo(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetProviderInfo(c.Request.Context()))
}

// GetAvailableProviders godoc
// @Summary List every chat provider the router can build
// @Tags Admin
// @Produce json
// @Success 200 {array} string
// @Router /admin/providers [get]
func (h *ToolHandlers) GetAvailableProviders(c *gin.Context) {
	writeResult(c, http.StatusOK, h.surface.GetAvailableProviders())
}
