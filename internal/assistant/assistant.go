// Package assistant answers veterinary questions: it retrieves the closest
// passages from the corpus, forwards them with the question to a chat model,
// and cleans the model's answer for display.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/vetrag-go/internal/budget"
	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/rag"
	"github.com/54b3r/vetrag-go/internal/store"
)

// SystemPrompt instructs the model to answer in Persian from the retrieved
// passages.
const SystemPrompt = "You are a Persian assistant to answer veterinary questions." +
	" Answer the question based on the retrieved information."

// userTemplate frames the question and the joined passages.
const userTemplate = "Question: %s\n\n Retrieved Information:\n%s\n\n Answer:"

// DefaultTopK is the number of passages retrieved when the caller does not
// ask for a specific count.
const DefaultTopK = 1

var (
	// ErrCompletion reports that the chat model call failed. The provider
	// error is wrapped alongside it. The call is not retried.
	ErrCompletion = errors.New("completion failed")

	// ErrEmptyAnswer reports that the model returned no usable text.
	ErrEmptyAnswer = errors.New("model returned an empty answer")
)

// Config holds the dependencies required to construct an Assistant.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.BaseChatModel

	// Searcher retrieves passages for a question.
	Searcher rag.Searcher

	// ModelName is recorded in history entries.
	ModelName string

	// TopK is the default number of passages per question. Defaults to
	// DefaultTopK if zero.
	TopK int

	// History is the optional store of answered questions. If nil, turns are
	// not persisted.
	History store.HistoryStore

	// MaxContextTokens is the estimated input budget. Lower-ranked passages
	// are dropped to fit. Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// SystemPrompt overrides the default instruction when non-empty.
	SystemPrompt string
}

// Assistant composes retrieval and generation. It is safe for concurrent use.
type Assistant struct {
	chat             model.BaseChatModel
	searcher         rag.Searcher
	modelName        string
	topK             int
	history          store.HistoryStore
	maxContextTokens int
	systemPrompt     string
}

// Request is a single question.
type Request struct {
	// Question is the user's question.
	Question string
	// TopK overrides the configured passage count when positive.
	TopK int
	// Surface names the caller (cli, http, mcp) for history entries.
	Surface string
}

// Answer is the outcome of a successful Ask or Stream.
type Answer struct {
	// Text is the cleaned answer.
	Text string `json:"answer"`
	// Sources are the passages that were sent to the model, in rank order.
	Sources []rag.Result `json:"sources"`
	// Dropped counts retrieved passages left out to fit the context budget.
	Dropped int `json:"dropped,omitempty"`
	// TurnID is the history id of this answer, empty when history is off.
	TurnID string `json:"turn_id,omitempty"`
}

// New constructs an Assistant from the provided Config.
func New(cfg *Config) (*Assistant, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("assistant: ChatModel must not be nil")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("assistant: Searcher must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt
	}

	return &Assistant{
		chat:             cfg.ChatModel,
		searcher:         cfg.Searcher,
		modelName:        cfg.ModelName,
		topK:             topK,
		history:          cfg.History,
		maxContextTokens: maxCtx,
		systemPrompt:     prompt,
	}, nil
}

// Ask retrieves context for req and returns the model's complete answer.
func (a *Assistant) Ask(ctx context.Context, req Request) (*Answer, error) {
	messages, sources, dropped, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	msg, err := a.chat.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w: %w", ErrCompletion, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("assistant: %w", ErrEmptyAnswer)
	}

	text := Clean(msg.Content)
	if text == "" {
		return nil, fmt.Errorf("assistant: %w", ErrEmptyAnswer)
	}

	ans := &Answer{Text: text, Sources: sources, Dropped: dropped}
	a.record(ctx, req, ans)
	return ans, nil
}

// Stream retrieves context for req and writes the cleaned answer to w as the
// model produces it. The returned Answer holds exactly what was written.
func (a *Assistant) Stream(ctx context.Context, req Request, w io.Writer) (*Answer, error) {
	messages, sources, dropped, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	sr, err := a.chat.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w: %w", ErrCompletion, err)
	}
	defer sr.Close()

	cw := newCleanWriter(w)
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("assistant: %w: stream receive: %w", ErrCompletion, err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		if err := cw.WriteString(msg.Content); err != nil {
			return nil, fmt.Errorf("assistant: write answer: %w", err)
		}
	}
	if err := cw.Flush(); err != nil {
		return nil, fmt.Errorf("assistant: write answer: %w", err)
	}

	text := cw.Text()
	if text == "" {
		return nil, fmt.Errorf("assistant: %w", ErrEmptyAnswer)
	}

	ans := &Answer{Text: text, Sources: sources, Dropped: dropped}
	a.record(ctx, req, ans)
	return ans, nil
}

// prepare retrieves passages and builds the model input.
func (a *Assistant) prepare(ctx context.Context, req Request) ([]*schema.Message, []rag.Result, int, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, nil, 0, fmt.Errorf("assistant: question is empty: %w", rag.ErrEncoding)
	}
	k := req.TopK
	if k <= 0 {
		k = a.topK
	}

	results, err := a.searcher.Search(ctx, question, k)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("assistant: retrieval: %w", err)
	}

	fixed := []*schema.Message{
		schema.SystemMessage(a.systemPrompt),
		schema.UserMessage(fmt.Sprintf(userTemplate, question, "")),
	}
	kept, dropped := budget.FitResults(fixed, results, a.maxContextTokens)
	if dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped passages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	messages := []*schema.Message{
		schema.SystemMessage(a.systemPrompt),
		schema.UserMessage(fmt.Sprintf(userTemplate, question, rag.JoinContents(kept))),
	}
	return messages, kept, dropped, nil
}

// record persists the turn when history is enabled. Failures are logged and
// otherwise ignored.
func (a *Assistant) record(ctx context.Context, req Request, ans *Answer) {
	if a.history == nil {
		return
	}
	turn := &store.Turn{
		Surface:  req.Surface,
		Question: strings.TrimSpace(req.Question),
		Answer:   ans.Text,
		Model:    a.modelName,
		Sources:  ans.Sources,
	}
	if err := a.history.Append(ctx, turn); err != nil {
		logging.FromContext(ctx).Warn("history: failed to persist turn", slog.Any("error", err))
		return
	}
	ans.TurnID = turn.ID
}
