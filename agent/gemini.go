package agent

import (
	"context"
	"log"

	"google.golang.org/genai"
)

// Gemini generates through the Google genai SDK. Credentials come from the
// environment (GEMINI_API_KEY or application default credentials).
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, messages []Message) (string, error) {
	chat, err := g.client.Chats.Create(ctx, g.model, nil, nil)
	if err != nil {
		log.Printf("agent: gemini chat create: %v", err)
		return "", ErrUnavailable
	}

	resp, err := chat.Send(ctx, &genai.Part{Text: flatten(messages)})
	if err != nil {
		log.Printf("agent: gemini send: %v", err)
		return "", ErrUnavailable
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrUnavailable
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
