package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	LLMProvider    string            `json:"llm_provider"`
	LLMModel       string            `json:"llm_model"`
	Temperature    float64           `json:"temperature"`
	Streaming      bool              `json:"streaming"`
	ArchiveMode    string            `json:"archive_mode"`
	UploadMaxBytes int               `json:"upload_max_bytes"`
	PaperMaxChars  int               `json:"paper_max_chars"`
	PaperWarnChars int               `json:"paper_warn_chars"`
	Checks         []onboardingCheck `json:"checks"`
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.LLMProvider))
	checks := make([]onboardingCheck, 0, 4)
	checks = append(checks, s.providerChecks(provider)...)

	switch s.archiveMode {
	case "postgres":
		checks = append(checks, onboardingCheck{
			ID:     "archive",
			Status: "ok",
			Label:  "Transcript archive",
			Detail: "postgres",
		})
	default:
		checks = append(checks, onboardingCheck{
			ID:     "archive",
			Status: "warn",
			Label:  "Transcript archive",
			Detail: "in-memory only",
			Fix:    "Set DATABASE_URL to keep archived turns across restarts.",
		})
	}

	respondJSON(w, http.StatusOK, onboardingStatusResponse{
		LLMProvider:    provider,
		LLMModel:       s.cfg.LLMModel,
		Temperature:    s.cfg.LLMTemperature,
		Streaming:      s.cfg.LLMStreaming,
		ArchiveMode:    s.archiveMode,
		UploadMaxBytes: s.cfg.UploadMaxBytes,
		PaperMaxChars:  s.cfg.PaperMaxChars,
		PaperWarnChars: s.cfg.PaperWarnChars,
		Checks:         checks,
	})
}

func (s *Server) providerChecks(provider string) []onboardingCheck {
	keyCheck := func(id, label, envKey, value string) onboardingCheck {
		if strings.TrimSpace(value) == "" {
			return onboardingCheck{
				ID:     id,
				Status: "error",
				Label:  label,
				Detail: envKey + " is not set",
				Fix:    "Set " + envKey + " or switch to LLM_PROVIDER=mock for a dry run.",
			}
		}
		return onboardingCheck{ID: id, Status: "ok", Label: label, Detail: "present"}
	}

	switch provider {
	case "openai":
		checks := []onboardingCheck{keyCheck("openai_key", "OpenAI API key", "OPENAI_API_KEY", s.cfg.OpenAIAPIKey)}
		if base := strings.TrimSpace(s.cfg.OpenAIBaseURL); base != "" {
			checks = append(checks, onboardingCheck{ID: "openai_base_url", Status: "ok", Label: "OpenAI-compatible endpoint", Detail: base})
		}
		return checks
	case "anthropic":
		return []onboardingCheck{keyCheck("anthropic_key", "Anthropic API key", "ANTHROPIC_API_KEY", s.cfg.AnthropicAPIKey)}
	case "ollama":
		host := strings.TrimSpace(s.cfg.OllamaHost)
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		if err := probeTCP(host); err != nil {
			return []onboardingCheck{{
				ID:     "ollama",
				Status: "error",
				Label:  "Ollama server",
				Detail: fmt.Sprintf("not reachable (%s)", host),
				Fix:    "Start it with `ollama serve` or set OLLAMA_HOST.",
			}}
		}
		return []onboardingCheck{{ID: "ollama", Status: "ok", Label: "Ollama server", Detail: host}}
	case "mock":
		return []onboardingCheck{{
			ID:     "mock_llm",
			Status: "warn",
			Label:  "Tutor model is mock",
			Detail: "Replies are canned and ignore the paper.",
			Fix:    "Set LLM_PROVIDER=openai and OPENAI_API_KEY.",
		}}
	default:
		return []onboardingCheck{{
			ID:     "llm_provider_unknown",
			Status: "error",
			Label:  "Tutor model",
			Detail: "unknown provider; expected openai|anthropic|ollama|mock",
		}}
	}
}

func probeTCP(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	host := strings.TrimSpace(u.Host)
	if host == "" {
		return fmt.Errorf("host missing")
	}
	addr := host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}
	c, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err != nil {
		return err
	}
	_ = c.Close()
	return nil
}
