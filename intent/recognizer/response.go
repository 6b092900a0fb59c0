package recognizer

import (
	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/intent/matcher"
)

// Failure taxonomy.
const (
	FailureNoMatch       = "no_match"
	FailureLowConfidence = "low_confidence"
	FailureSystemError   = "system_error"
	FailureConfigMissing = "config_missing"
)

// chain entry names outside the four matcher types
const (
	recognizerCache       = "cache"
	recognizerFallback    = "fallback"
	recognizerLLMFallback = "llm_fallback"
)

// Response is the public recognition result. Failure is in-band: the HTTP
// layer returns 200 with success=false.
type Response struct {
	Intent           string                `json:"intent,omitempty"`
	Confidence       float64               `json:"confidence"`
	Entities         map[string]string     `json:"entities"`
	MatchedRules     []matcher.MatchedRule `json:"matched_rules"`
	RecognitionChain []matcher.ChainEntry  `json:"recognition_chain"`
	ProcessingTimeMs float64               `json:"processing_time_ms"`
	Cached           bool                  `json:"cached"`
	Success          bool                  `json:"success"`

	FallbackUsed    bool   `json:"fallback_used"`
	FallbackReason  string `json:"fallback_reason,omitempty"`
	FinalRecognizer string `json:"final_recognizer,omitempty"`

	FailureType    string   `json:"failure_type,omitempty"`
	FailureReason  string   `json:"failure_reason,omitempty"`
	Threshold      *float64 `json:"threshold,omitempty"`
	Suggestion     string   `json:"suggestion,omitempty"`
	LLMError       string   `json:"llm_error,omitempty"`
	LLMErrorReason string   `json:"llm_error_reason,omitempty"`
}

// BatchResponse aggregates one recognition per input text.
type BatchResponse struct {
	Results     []*Response `json:"results"`
	TotalCount  int         `json:"total_count"`
	CachedCount int         `json:"cached_count"`
}

var failureSuggestions = map[string]string{
	FailureNoMatch:       "建议：1) 添加更多规则 2) 启用LLM兜底 3) 配置fallback意图",
	FailureLowConfidence: "建议：1) 降低置信度阈值 2) 优化规则权重 3) 启用LLM兜底",
	FailureSystemError:   "建议：检查系统日志，联系管理员",
	FailureConfigMissing: "建议：确保应用配置已正确设置",
}

var llmSuggestions = map[string]string{
	llm.ReasonMissingConfig: "请检查LLM API密钥和基础URL配置",
	llm.ReasonConnection:    "请检查LLM API连接和网络状态",
	llm.ReasonUnknown:       "请检查LLM配置和日志",
}

func buildSuccessResponse(result *matcher.Result, chain []matcher.ChainEntry, processingTimeMs float64, fallbackUsed bool, fallbackReason string) *Response {
	// An LLM sentinel travels through the success path but is a failure.
	success := result.Intent != matcher.Sentinel

	entities := result.Entities
	if entities == nil {
		entities = map[string]string{}
	}
	matchedRules := result.MatchedRules
	if matchedRules == nil {
		matchedRules = []matcher.MatchedRule{}
	}

	resp := &Response{
		Intent:           result.Intent,
		Confidence:       result.Confidence,
		Entities:         entities,
		MatchedRules:     matchedRules,
		RecognitionChain: chain,
		ProcessingTimeMs: processingTimeMs,
		Success:          success,
		FallbackUsed:     fallbackUsed,
		FallbackReason:   fallbackReason,
		FinalRecognizer:  result.RecognizerType,
	}
	if !success {
		resp.FailureType = FailureNoMatch
		resp.FailureReason = matcher.Sentinel
		resp.Suggestion = failureSuggestions[FailureNoMatch]
	}
	return resp
}

type failureOpts struct {
	intent       string
	confidence   float64
	matchedRules []matcher.MatchedRule
	threshold    *float64
}

func buildFailureResponse(failureType, failureReason string, chain []matcher.ChainEntry, processingTimeMs float64, opts failureOpts) *Response {
	// Surface an LLM fallback error, if one is recorded in the chain.
	var llmError, llmErrorReason string
	for _, step := range chain {
		if step.Recognizer == recognizerLLMFallback && step.Status == matcher.StatusError {
			llmError = step.Error
			llmErrorReason = step.Reason
			break
		}
	}

	detailedReason := failureReason
	if llmError != "" {
		detailedReason += " (LLM错误: " + llmError + ")"
	}

	suggestion := failureSuggestions[failureType]
	if llmError != "" {
		llmSuggestion, ok := llmSuggestions[llmErrorReason]
		if !ok {
			llmSuggestion = "请检查LLM配置"
		}
		if suggestion != "" {
			suggestion += "\nLLM建议: " + llmSuggestion
		} else {
			suggestion = "LLM建议: " + llmSuggestion
		}
	}

	matchedRules := opts.matchedRules
	if matchedRules == nil {
		matchedRules = []matcher.MatchedRule{}
	}

	return &Response{
		Success:          false,
		Intent:           opts.intent,
		Confidence:       opts.confidence,
		Entities:         map[string]string{},
		MatchedRules:     matchedRules,
		RecognitionChain: chain,
		ProcessingTimeMs: processingTimeMs,
		FailureType:      failureType,
		FailureReason:    detailedReason,
		Threshold:        opts.threshold,
		Suggestion:       suggestion,
		LLMError:         llmError,
		LLMErrorReason:   llmErrorReason,
	}
}
