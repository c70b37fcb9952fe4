package factory

import (
	"fmt"

	"chat-handoff-be/pkg/llm"
	"chat-handoff-be/pkg/llm/huggingface"
	"chat-handoff-be/pkg/llm/ollama"
)

func NewLLMProvider(providerType, modelName, baseURL, hfApiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface":
		if hfApiKey == "" {
			return nil, fmt.Errorf("huggingface provider requires HF_API_KEY")
		}
		return huggingface.NewHuggingFaceProvider(hfApiKey, "", modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
