package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

const translateSystemPrompt = "You are a precise translation engine. " +
	"Translate the user's text faithfully into the target language, preserving names, numbers, and proper nouns. " +
	"Do not add commentary. Output ONLY the translation."

// OpenAI translates and summarizes through chat completions.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates the OpenAI provider. An empty model selects the default.
func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	prompt := fmt.Sprintf("Target language: %s\n", targetLang)
	if sourceLang != "" {
		prompt += fmt.Sprintf("Source language: %s\n", sourceLang)
	}
	prompt += "\nText:\n" + text
	return o.complete(ctx, translateSystemPrompt, prompt)
}

func (o *OpenAI) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	system := fmt.Sprintf("You summarize articles. Produce a faithful summary of the user's text "+
		"in the text's own language, at most %d characters. State the contents directly, "+
		"without introductions like \"The article says\".", maxLen)
	out, err := o.complete(ctx, system, text)
	if err != nil {
		return "", err
	}
	if len(out) > maxLen {
		out = Truncate(out, maxLen)
	}
	return out, nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", o.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindTransient, Provider: o.Name(), Err: errors.New("empty response")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	kind := KindTransient
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = KindAuth
		case http.StatusTooManyRequests:
			kind = KindRateLimited
		}
	}
	return &Error{Kind: kind, Provider: o.Name(), Err: err}
}
