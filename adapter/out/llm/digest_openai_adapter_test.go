package llm

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
)

func TestBuildRequest(t *testing.T) {
	client := NewClient(ClientConfig{
		APIKey:      "test",
		Model:       "gpt-4o-mini",
		MaxTokens:   2048,
		Temperature: 0.7,
	})

	tests := []struct {
		name     string
		opts     out.GenerateOptions
		wantTemp float32
		wantMax  int
		wantJSON bool
	}{
		{
			name:     "defaults when unset",
			opts:     out.GenerateOptions{},
			wantTemp: 0.7,
			wantMax:  2048,
		},
		{
			name:     "explicit zero temperature is honored",
			opts:     out.GenerateOptions{Temperature: out.Temp(0), MaxTokens: 512, JSONMode: true},
			wantTemp: 0,
			wantMax:  512,
			wantJSON: true,
		},
		{
			name:     "explicit non-zero temperature overrides the default",
			opts:     out.GenerateOptions{Temperature: out.Temp(0.2)},
			wantTemp: 0.2,
			wantMax:  2048,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := client.buildRequest("prompt", tt.opts)
			if req.Temperature != tt.wantTemp {
				t.Errorf("Temperature = %v, want %v", req.Temperature, tt.wantTemp)
			}
			if req.MaxTokens != tt.wantMax {
				t.Errorf("MaxTokens = %d, want %d", req.MaxTokens, tt.wantMax)
			}
			gotJSON := req.ResponseFormat != nil &&
				req.ResponseFormat.Type == openai.ChatCompletionResponseFormatTypeJSONObject
			if gotJSON != tt.wantJSON {
				t.Errorf("JSON response format = %v, want %v", gotJSON, tt.wantJSON)
			}
			if req.Model != "gpt-4o-mini" || len(req.Messages) != 1 || req.Messages[0].Content != "prompt" {
				t.Errorf("request shape wrong: %+v", req)
			}
		})
	}
}
