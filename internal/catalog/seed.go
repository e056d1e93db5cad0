package catalog

import "github.com/dnovak/llmrelay/internal/domain"

type seedDefault struct {
	provider  domain.Provider
	workload  domain.Workload
	model     string
	priority  int
	rationale string
}

// seedDefaults is the bundled catalog, reproduced in full from
// original_source/src/catalog.rs::seed_defaults (see SPEC_FULL.md
// supplement #1). Only inserted for a (provider, workload) pair that has
// no active entry yet.
var seedDefaults = []seedDefault{
	{domain.ProviderGroq, domain.WorkloadChat, "llama-3.3-70b-versatile", 10, "Fast, versatile Llama model"},
	{domain.ProviderGroq, domain.WorkloadCode, "llama-3.3-70b-versatile", 10, "Versatile model suitable for code"},
	{domain.ProviderGroq, domain.WorkloadSummarization, "llama-3.3-70b-versatile", 20, "Fast summarization"},
	{domain.ProviderGroq, domain.WorkloadCreative, "llama-3.3-70b-versatile", 15, "Creative and versatile"},

	{domain.ProviderDeepSeek, domain.WorkloadChat, "deepseek-chat", 20, "Powerful reasoning and chat"},
	{domain.ProviderDeepSeek, domain.WorkloadCode, "deepseek-chat", 15, "Strong coding capabilities"},
	{domain.ProviderDeepSeek, domain.WorkloadSummarization, "deepseek-chat", 25, "Effective summarization"},
	{domain.ProviderDeepSeek, domain.WorkloadExtraction, "deepseek-chat", 20, "Information extraction"},
	{domain.ProviderDeepSeek, domain.WorkloadCreative, "deepseek-chat", 25, "Creative writing"},
	{domain.ProviderDeepSeek, domain.WorkloadClassification, "deepseek-chat", 25, "Text classification"},

	{domain.ProviderTogether, domain.WorkloadChat, "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free", 30, "Free Llama model"},
	{domain.ProviderTogether, domain.WorkloadCode, "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free", 25, "Code-capable free model"},

	{domain.ProviderGoogle, domain.WorkloadChat, "gemini-2.0-flash", 40, "Fast multimodal Gemini"},
	{domain.ProviderGoogle, domain.WorkloadCode, "gemini-2.0-flash", 35, "Gemini with code capabilities"},
	{domain.ProviderGoogle, domain.WorkloadSummarization, "gemini-2.0-flash", 40, "Fast summarization"},

	{domain.ProviderCloudflare, domain.WorkloadChat, "@cf/meta/llama-3.3-70b-instruct", 18, "Serverless Llama 3.3 70B"},
	{domain.ProviderCloudflare, domain.WorkloadCode, "@cf/meta/llama-3.3-70b-instruct", 18, "Serverless code-capable model"},
	{domain.ProviderCloudflare, domain.WorkloadCreative, "@cf/openai/gpt-oss-120b", 20, "OpenAI open-source 120B model"},

	{domain.ProviderCerebras, domain.WorkloadChat, "llama-3.1-70b", 12, "Ultra-fast Llama 3.1 70B"},
	{domain.ProviderCerebras, domain.WorkloadCode, "llama-3.1-70b", 12, "Fast code-capable model"},
	{domain.ProviderCerebras, domain.WorkloadSummarization, "llama-3.1-8b", 15, "Fast summarization with 8B model"},

	{domain.ProviderMistral, domain.WorkloadChat, "mistral-small-latest", 22, "Mistral Small for chat"},
	{domain.ProviderMistral, domain.WorkloadCode, "mistral-small-latest", 22, "Mistral Small for code"},
	{domain.ProviderMistral, domain.WorkloadSummarization, "mistral-small-latest", 25, "Mistral Small for summarization"},

	{domain.ProviderClarifai, domain.WorkloadChat, "gpt-4", 45, "GPT-4 via Clarifai"},
	{domain.ProviderClarifai, domain.WorkloadCode, "gpt-4", 45, "GPT-4 code via Clarifai"},

	{domain.ProviderGitHubModels, domain.WorkloadChat, "gpt-4o", 35, "GPT-4o via GitHub"},
	{domain.ProviderGitHubModels, domain.WorkloadCode, "gpt-4o", 35, "GPT-4o code via GitHub"},

	{domain.ProviderOpenRouter, domain.WorkloadChat, "deepseek/deepseek-r1:free", 50, "DeepSeek R1 free via OpenRouter"},
	{domain.ProviderOpenRouter, domain.WorkloadCode, "deepseek/deepseek-r1:free", 50, "DeepSeek R1 code via OpenRouter"},
}
