// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/scholarforge/scholarforge/internal/config"
	"github.com/scholarforge/scholarforge/internal/llm"
	"github.com/scholarforge/scholarforge/internal/utils"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrLLMNotReady = errors.New("llm service not ready")

	// ErrMalformedResponse wraps unmarshal failures on model output that
	// survived cleaning but still is not the requested JSON shape.
	ErrMalformedResponse = errors.New("malformed model response")
)

var providerDefaultModels = map[string]string{
	"google": "gemini-2.5-flash",
	"openai": "gpt-4o-mini",
}

// Completer is the slice of LLMService the generation services depend
// on; test doubles implement it.
type Completer interface {
	CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (ChatCompletionResponse, error)
	CreateStructuredCompletion(ctx context.Context, prompt string, systemPrompt string, outputSchema interface{}) error
}

// LLMService wraps a single active provider behind a uniform
// completion API, with an in-memory response cache.
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	cache              *LLMCache
	isReady            bool
	readyState         string
	activeDefaultModel string
}

type LLMCache struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
}

type CacheEntry struct {
	Response  interface{}
	CreatedAt time.Time
}

type ChatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []ChatCompletionMessage `json:"messages"`
	Temperature float64                 `json:"temperature"`
	MaxTokens   int                     `json:"max_tokens"`
	ExtraParams map[string]interface{}  `json:"extra_params,omitempty"`
}

type ChatCompletionMessage struct {
	Role    string
	Content string
}

type ChatCompletionResponse struct {
	ID      string
	Choices []ChatCompletionChoice
	Usage   Usage
}

type ChatCompletionChoice struct {
	Message      ChatCompletionMessage
	FinishReason string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// NewLLMService builds a service from the current configuration. A
// missing or broken provider config yields a not-ready service rather
// than an error, so the rest of the app can start.
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil
	}

	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = extractDefaultModel(cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewEmptyLLMService returns a standby instance used when no provider
// has been configured yet.
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "Standby mode, configure an API key in settings"
	return service
}

func createBaseLLMService() *LLMService {
	return &LLMService{
		provider:           nil,
		providerName:       "",
		isReady:            false,
		readyState:         "Uninitialized",
		activeDefaultModel: "",
		cache: &LLMCache{
			cache:      make(map[string]*CacheEntry),
			mutex:      sync.RWMutex{},
			expiration: 30 * time.Minute,
		},
	}
}

func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider != nil && s.isReady {
		return true
	}

	// Fall back to the live config so a key saved after startup counts.
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return false
	}
	if cfg.LLMProvider == "" {
		return false
	}
	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return false
	}

	return true
}

func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return "Cannot get configuration"
	}

	if cfg.LLMProvider == "" {
		return "LLM provider not configured"
	}

	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return "API key not configured"
	}

	if s.provider != nil && s.isReady {
		return "Ready"
	}

	return "Waiting for initialization"
}

// GetProviderStatus returns readiness plus a readable description.
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM service instance not initialized"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

// UpdateProvider swaps the active provider and clears the cache.
func (s *LLMService) UpdateProvider(providerName string, config map[string]string) error {
	provider, err := llm.GetProvider(providerName, config)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(config)
	s.isReady = true
	s.readyState = "Ready"

	s.cache = &LLMCache{
		cache:      make(map[string]*CacheEntry),
		mutex:      sync.RWMutex{},
		expiration: 30 * time.Minute,
	}

	return nil
}

func (s *LLMService) GetProvider() llm.Provider {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider
}

func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

func (s *LLMService) generateCacheKey(prompt, systemPrompt, model string) string {
	s.providerMutex.RLock()
	providerName := s.providerName
	s.providerMutex.RUnlock()

	hashInput := fmt.Sprintf("%s:::%s:::%s:::%s",
		prompt, systemPrompt, model, providerName)
	h := md5.New()
	h.Write([]byte(hashInput))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *LLMCache) getFromCache(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists {
		return nil, false
	}

	if time.Since(entry.CreatedAt) > c.expiration {
		return nil, false
	}

	return entry.Response, true
}

func (c *LLMCache) saveToCache(key string, response interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = &CacheEntry{
		Response:  response,
		CreatedAt: time.Now(),
	}

	if len(c.cache) > 1000 {
		c.cleanupOldest(100)
	}
}

func (c *LLMCache) cleanupOldest(count int) {
	type keyAge struct {
		key string
		age time.Time
	}

	entries := make([]keyAge, 0, len(c.cache))
	for k, v := range c.cache {
		entries = append(entries, keyAge{k, v.CreatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].age.Before(entries[j].age)
	})

	maxToDelete := min(count, len(entries))
	for i := 0; i < maxToDelete; i++ {
		delete(c.cache, entries[i].key)
	}
}

// CreateChatCompletion folds the message list into a single prompt and
// calls the active provider.
func (s *LLMService) CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (ChatCompletionResponse, error) {
	s.providerMutex.RLock()
	provider := s.provider
	ready := s.isReady
	s.providerMutex.RUnlock()

	if !ready || provider == nil {
		return ChatCompletionResponse{}, fmt.Errorf("%w: %s", ErrLLMNotReady, s.GetReadyState())
	}

	var systemContent, userContent string
	var priorTurns []string
	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleSystem:
			systemContent = msg.Content
		case RoleUser:
			if userContent != "" {
				priorTurns = append(priorTurns, "User: "+userContent)
			}
			userContent = msg.Content
		case RoleAssistant:
			priorTurns = append(priorTurns, "Assistant: "+msg.Content)
		default:
			utils.GetLogger().Warn("Unknown message role type", map[string]interface{}{"role": msg.Role})
		}
	}

	// Providers here take one prompt, so earlier turns ride along as a
	// transcript above the current input.
	if len(priorTurns) > 0 {
		conversationHistory := strings.Join(priorTurns, "\n\n")
		userContent = fmt.Sprintf("Conversation history:\n%s\n\nCurrent user input: %s",
			conversationHistory, userContent)
	}

	resolvedModel := s.resolveModel(request.Model)

	cacheKey := s.generateCacheKey(userContent, systemContent, resolvedModel)

	if s.cache != nil {
		var cachedResult ChatCompletionResponse
		if s.checkAndUseCache(cacheKey, &cachedResult) {
			utils.GetLogger().Debug("LLM chat cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
			return cachedResult, nil
		}
	}

	req := llm.CompletionRequest{
		Model:        resolvedModel,
		Temperature:  float32(request.Temperature),
		MaxTokens:    request.MaxTokens,
		ExtraParams:  request.ExtraParams,
		SystemPrompt: systemContent,
		Prompt:       userContent,
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		utils.NewAPIMetrics().RecordError("llm_request", "llm_service")
		return ChatCompletionResponse{}, err
	}
	utils.NewAPIMetrics().RecordLLMRequest(resp.ProviderName, resp.ModelName, resp.TokensUsed, time.Since(start))

	result := ChatCompletionResponse{
		ID: resp.ModelName + "-" + s.GetProviderName(),
		Choices: []ChatCompletionChoice{
			{
				Message: ChatCompletionMessage{
					Role:    RoleAssistant,
					Content: resp.Text,
				},
				FinishReason: resp.FinishReason,
			},
		},
		Usage: Usage{
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.OutputTokens,
			TotalTokens:      resp.TokensUsed,
		},
	}

	if s.cache != nil {
		s.saveToCache(cacheKey, result)
	}

	return result, nil
}

// CreateStructuredCompletion asks the model for JSON and unmarshals the
// cleaned reply into outputSchema.
func (s *LLMService) CreateStructuredCompletion(ctx context.Context, prompt string, systemPrompt string, outputSchema interface{}) error {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		s.providerMutex.RUnlock()
		return fmt.Errorf("%w: %s", ErrLLMNotReady, s.readyState)
	}
	provider := s.provider
	s.providerMutex.RUnlock()

	model := s.resolveModel("")

	cacheKey := s.generateCacheKey(prompt, systemPrompt, model)

	if s.checkAndUseCache(cacheKey, outputSchema) {
		return nil
	}

	structuredSystemPrompt := systemPrompt
	if systemPrompt != "" {
		structuredSystemPrompt += "\n\n"
	}
	structuredSystemPrompt += "Return your response in valid JSON format, following the provided output schema, without adding explanations or preambles."

	req := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: structuredSystemPrompt,
		Temperature:  0.3,
		Model:        model,
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		utils.NewAPIMetrics().RecordError("llm_request", "llm_service")
		return err
	}
	utils.NewAPIMetrics().RecordLLMRequest(resp.ProviderName, resp.ModelName, resp.TokensUsed, time.Since(start))

	text := cleanJSONString(resp.Text)

	if err := json.Unmarshal([]byte(text), outputSchema); err != nil {
		return fmt.Errorf("%w: %v\nmodel returned: %s", ErrMalformedResponse, err, text)
	}

	s.saveToCache(cacheKey, outputSchema)

	return nil
}

// StreamChatCompletion streams the reply token by token; used by the
// websocket coach channel. Streamed replies bypass the cache.
func (s *LLMService) StreamChatCompletion(ctx context.Context, request ChatCompletionRequest) (<-chan llm.StreamResponse, error) {
	s.providerMutex.RLock()
	provider := s.provider
	ready := s.isReady
	s.providerMutex.RUnlock()

	if !ready || provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrLLMNotReady, s.GetReadyState())
	}

	var systemContent, userContent string
	var priorTurns []string
	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleSystem:
			systemContent = msg.Content
		case RoleUser:
			if userContent != "" {
				priorTurns = append(priorTurns, "User: "+userContent)
			}
			userContent = msg.Content
		case RoleAssistant:
			priorTurns = append(priorTurns, "Assistant: "+msg.Content)
		}
	}

	if len(priorTurns) > 0 {
		userContent = fmt.Sprintf("Conversation history:\n%s\n\nCurrent user input: %s",
			strings.Join(priorTurns, "\n\n"), userContent)
	}

	req := llm.CompletionRequest{
		Model:        s.resolveModel(request.Model),
		Temperature:  float32(request.Temperature),
		MaxTokens:    request.MaxTokens,
		SystemPrompt: systemContent,
		Prompt:       userContent,
		Stream:       true,
	}

	return provider.StreamCompletion(ctx, req)
}

var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\uFEFF", "",
	"\u00A0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

// cleanJSONString strips markdown fences, stray prose and control
// characters around the first JSON value and returns the balanced
// object or array.
func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// zero-width chars and controls other than newline/tab
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	isArray := s[0] == '['

	// bracket counting, string-aware
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// unbalanced, fall back to the last closing bracket
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}

func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

// resolveModel picks the model for a request: explicit request, then
// the configured default, then the provider's first supported model.
func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	activeDefault := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}

	if provider != nil {
		if models := provider.GetSupportedModels(); len(models) > 0 {
			if model := strings.TrimSpace(models[0]); model != "" {
				return model
			}
		}
	}

	if cfg := config.GetCurrentConfig(); cfg != nil && cfg.LLMProvider == providerName {
		if cfg.LLMConfig != nil {
			if model := strings.TrimSpace(cfg.LLMConfig["default_model"]); model != "" {
				return model
			}
			if model := strings.TrimSpace(cfg.LLMConfig["model"]); model != "" {
				return model
			}
		}
	}

	if model, exists := providerDefaultModels[providerName]; exists {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			return trimmed
		}
	}

	return "gemini-2.5-flash"
}

func extractDefaultModel(cfg map[string]string) string {
	if cfg == nil {
		return ""
	}
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	if model := strings.TrimSpace(cfg["model"]); model != "" {
		return model
	}
	return ""
}

func (s *LLMService) checkAndUseCache(cacheKey string, outputSchema interface{}) bool {
	if s.cache == nil {
		return false
	}

	cachedResponse, found := s.cache.getFromCache(cacheKey)
	if !found {
		return false
	}

	// Cache entries are stored as JSON bytes.
	if responseBytes, ok := cachedResponse.([]byte); ok && outputSchema != nil {
		if err := json.Unmarshal(responseBytes, outputSchema); err == nil {
			return true
		}
	}

	return false
}

func (s *LLMService) saveToCache(cacheKey string, response interface{}) {
	if s.cache == nil {
		return
	}

	responseBytes, err := json.Marshal(response)
	if err != nil {
		utils.GetLogger().Error("Failed to serialize cached response", map[string]interface{}{"err": err})
		return
	}
	s.cache.saveToCache(cacheKey, responseBytes)
}
