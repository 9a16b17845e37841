package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/llm"
	"github.com/raphaelgruber/spoilerguard/internal/metrics"
	"github.com/raphaelgruber/spoilerguard/internal/models"
	"github.com/raphaelgruber/spoilerguard/internal/prompts"
	"github.com/raphaelgruber/spoilerguard/internal/rag"
	"github.com/raphaelgruber/spoilerguard/internal/store"
)

// History limits.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 300
)

// Status messages sent while a streamed answer is produced.
const (
	StatusAnalyzing  = "analyzing question"
	StatusSearching  = "searching evidence"
	StatusGenerating = "generating answer"
)

// QAService answers viewer questions with evidence bounded by the playback
// position.
type QAService struct {
	store     store.Store
	retriever *rag.Retriever
	resolver  *rag.Resolver
	sanitizer *rag.Sanitizer
	generator llm.Generator
	opts      options
}

// NewQAService creates a QA service. A nil generator answers rule-based.
func NewQAService(st store.Store, retriever *rag.Retriever, gen llm.Generator, opts ...Option) *QAService {
	return &QAService{
		store:     st,
		retriever: retriever,
		resolver:  rag.NewResolver(st),
		sanitizer: rag.NewSanitizer(st),
		generator: gen,
		opts:      newOptions(opts),
	}
}

// ModelName is reported in response meta.
func (s *QAService) ModelName() string {
	return modelName(s.generator)
}

// hooks receive progress while a streamed answer is produced. A nil *hooks
// is valid and ignores everything.
type hooks struct {
	status func(string)
	token  func(string) error
}

func (h *hooks) onStatus(msg string) {
	if h != nil && h.status != nil {
		h.status(msg)
	}
}

func (h *hooks) streaming() bool {
	return h != nil && h.token != nil
}

func (h *hooks) onToken(tok string) error {
	if !h.streaming() || tok == "" {
		return nil
	}
	return h.token(tok)
}

// Ask runs the guarded QA pipeline.
func (s *QAService) Ask(ctx context.Context, req models.QARequest) (*models.QAResponse, error) {
	return s.ask(ctx, req, nil)
}

func (s *QAService) ask(ctx context.Context, req models.QARequest, h *hooks) (*models.QAResponse, error) {
	if err := ValidateQA(req); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.opts.metrics.Since(metrics.OpQA, start)

	lang := models.ParseLanguage(string(req.Language))
	style := models.ParseResponseStyle(string(req.ResponseStyle))
	model := s.ModelName()
	cat := s.opts.catalog
	logger := s.opts.logger.With("episode_id", req.EpisodeID, "current_time_ms", req.CurrentTimeMs)

	h.onStatus(StatusAnalyzing)

	var (
		session      *models.ChatSession
		historyBlock string
		err          error
	)
	if req.UserID != "" {
		session, err = s.store.GetOrCreateSession(ctx, req.TitleID, req.EpisodeID, req.UserID, req.CurrentTimeMs)
		if err != nil {
			return nil, fmt.Errorf("chat session: %w", err)
		}
		recent, err := s.store.RecentMessages(ctx, session.ID, s.opts.historyWindow)
		if err != nil {
			return nil, fmt.Errorf("chat history: %w", err)
		}
		slices.Reverse(recent)
		historyBlock = s.renderHistory(recent)
	}

	intent := rag.ClassifyIntent(req.Question)
	logger.Debug("question classified", "intent", intent.Intent, "confidence", intent.Confidence, "reason", intent.Reason)

	if intent.Intent == models.IntentCasual {
		answer := s.casualAnswer(ctx, req, historyBlock, lang, style)
		if err := h.onToken(answer.Conclusion); err != nil {
			return nil, err
		}
		resp := &models.QAResponse{
			Meta:      guardedMeta(req.TitleID, req.EpisodeID, req.CurrentTimeMs, model),
			Answer:    answer,
			Evidences: []models.Evidence{},
			Warnings:  []models.Warning{{Code: models.WarnQuestionIntentCasual, Message: cat.Casual.Warning}},
		}
		if err := s.persistTurn(ctx, session, req, resp.Answer.Conclusion, model, ""); err != nil {
			return nil, err
		}
		return resp, nil
	}

	h.onStatus(StatusSearching)

	query := intent.NormalizedQuestion
	if query == "" {
		query = req.Question
	}
	chunks, err := s.retriever.Retrieve(ctx, req.EpisodeID, req.CurrentTimeMs, query, 0)
	if err != nil {
		return nil, err
	}
	lines, err := s.resolver.ResolveOrRecent(ctx, req.EpisodeID, req.CurrentTimeMs, chunks, rag.DefaultMaxLines)
	if err != nil {
		return nil, err
	}
	evidences, warnings, err := s.sanitizer.Sanitize(ctx, rag.BuildEvidence(lines, models.MaxEvidenceLines), req.EpisodeID, req.CurrentTimeMs)
	if err != nil {
		return nil, err
	}

	var (
		answer   *models.Answer
		streamed bool
	)
	if s.generator != nil && len(lines) > 0 {
		h.onStatus(StatusGenerating)
		// tokens are forwarded only when evidence survived, so nothing streamed
		// can be replaced by the degrade template afterwards
		answer, streamed = s.generateAnswer(ctx, req, lines, historyBlock, lang, style, h, len(evidences) > 0)
	}
	if answer == nil {
		fallback := s.fallbackAnswer(lines, lang, style)
		answer = &fallback
	}

	final, degradeWarnings := rag.Enforce(*answer, evidences, style, lang)
	warnings = append(warnings, degradeWarnings...)
	if !streamed {
		if err := h.onToken(final.Conclusion); err != nil {
			return nil, err
		}
	}

	relationID, err := s.relatedRelation(ctx, req)
	if err != nil {
		return nil, err
	}
	var focus *models.GraphFocus
	if relationID != "" {
		focus = &models.GraphFocus{
			RelationID: relationID,
			Highlight:  models.Highlight{Type: "RELATION", IDs: []string{relationID}},
		}
	}

	resp := &models.QAResponse{
		Meta:              guardedMeta(req.TitleID, req.EpisodeID, req.CurrentTimeMs, model),
		Answer:            final,
		Evidences:         nonNil(evidences),
		RelatedGraphFocus: focus,
		Warnings:          rag.DedupeWarnings(warnings),
	}
	if err := s.persistTurn(ctx, session, req, resp.Answer.Conclusion, model, relationID); err != nil {
		return nil, err
	}
	logger.Info("question answered",
		"evidences", len(resp.Evidences),
		"warnings", len(resp.Warnings),
		"model", model,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (s *QAService) renderHistory(messages []models.ChatMessage) string {
	cat := s.opts.catalog
	out := []string{cat.History.Header}
	for _, m := range messages {
		content := strings.TrimSpace(strings.ReplaceAll(m.Content, "\n", " "))
		if content == "" {
			continue
		}
		role := cat.History.Assistant
		if m.Role == models.RoleUser {
			role = cat.History.User
		}
		out = append(out, role+": "+models.TruncateRunes(content, historyMaxRunes))
	}
	if len(out) == 1 {
		return ""
	}
	out = append(out, cat.History.Footer)
	return strings.Join(out, "\n")
}

func (s *QAService) outputRequirements(lang models.Language, style models.ResponseStyle, styleInstruction string) string {
	return fmt.Sprintf("language=%s\nresponse_style=%s\n", lang, style) +
		fmt.Sprintf("Output requirement: All natural-language fields in JSON must be written in %s. Do not mix languages.\n", s.opts.catalog.LanguageName(lang)) +
		fmt.Sprintf("Style requirement: %s\n", styleInstruction)
}

func (s *QAService) casualAnswer(ctx context.Context, req models.QARequest, historyBlock string, lang models.Language, style models.ResponseStyle) models.Answer {
	cat := s.opts.catalog
	if s.generator != nil {
		user := historyBlock + "\n" +
			"question=" + req.Question + "\n" +
			s.outputRequirements(lang, style, cat.StyleInstruction(style))
		result, err := s.generator.CompleteJSON(ctx, cat.System.Casual, user)
		if err != nil {
			s.opts.logger.Warn("casual generation failed, using rule-based reply", "error", err)
		} else if answer, ok := coerceCasual(result, lang, cat); ok {
			return answer
		}
	}
	return ruleCasualAnswer(req.Question, lang, style, cat)
}

func (s *QAService) generateAnswer(ctx context.Context, req models.QARequest, lines []models.DialogueLine, historyBlock string, lang models.Language, style models.ResponseStyle, h *hooks, streamTokens bool) (*models.Answer, bool) {
	cat := s.opts.catalog
	user := fmt.Sprintf("title_id=%s\nepisode_id=%s\ncurrent_time_ms=%d\n%s\n", req.TitleID, req.EpisodeID, req.CurrentTimeMs, historyBlock) +
		s.outputRequirements(lang, style, cat.StyleInstruction(style)) +
		"question=" + req.Question + "\n" +
		"context:\n" + contextBlock(lines)

	var (
		result   map[string]any
		err      error
		streamed bool
	)
	if h.streaming() && streamTokens {
		var text string
		text, err = s.generator.Stream(ctx, cat.System.QA, user, h.onToken)
		streamed = text != ""
		if err == nil {
			result, err = llm.ExtractJSON(text)
		}
	} else {
		result, err = s.generator.CompleteJSON(ctx, cat.System.QA, user)
	}
	if err != nil {
		s.opts.logger.Warn("answer generation failed, using rule-based answer", "error", err, "episode_id", req.EpisodeID)
		return nil, streamed
	}
	answer := coerceAnswer(result, cat)
	return &answer, streamed
}

func (s *QAService) fallbackAnswer(lines []models.DialogueLine, lang models.Language, style models.ResponseStyle) models.Answer {
	if len(lines) == 0 {
		return rag.HedgedAnswer(style, lang)
	}
	cat := s.opts.catalog
	context := make([]string, 0, 3)
	for _, l := range lines[:min(3, len(lines))] {
		context = append(context, keyEvent(l))
	}
	interp := cat.FallbackInterpretations(lang)
	return models.Answer{
		Conclusion: cat.FallbackConclusion(lang, style, lines[0].SpeakerText),
		Context:    context,
		Interpretations: []models.Interpretation{
			{Label: "A", Text: interp[0], Confidence: 0.62},
			{Label: "B", Text: interp[1], Confidence: 0.46},
		},
		OverallConfidence: 0.61,
	}
}

// relatedRelation picks the relation a question is about: an explicit
// focus relation, else the relation between the first two focus characters
// in either direction that began at or before the cutoff.
func (s *QAService) relatedRelation(ctx context.Context, req models.QARequest) (string, error) {
	if req.Focus == nil {
		return "", nil
	}
	if req.Focus.RelationID != "" {
		return req.Focus.RelationID, nil
	}
	if len(req.Focus.CharacterIDs) < 2 {
		return "", nil
	}
	a, b := req.Focus.CharacterIDs[0], req.Focus.CharacterIDs[1]
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		rel, err := s.store.RelationBetween(ctx, req.TitleID, pair[0], pair[1], req.CurrentTimeMs)
		if err != nil {
			return "", fmt.Errorf("related relation: %w", err)
		}
		if rel != nil {
			return rel.ID, nil
		}
	}
	return "", nil
}

func (s *QAService) persistTurn(ctx context.Context, session *models.ChatSession, req models.QARequest, answer, model, relationID string) error {
	if session == nil {
		return nil
	}
	turn := []models.ChatMessage{
		{SessionID: session.ID, Role: models.RoleUser, Content: req.Question, CurrentTimeMs: req.CurrentTimeMs, Model: model},
		{SessionID: session.ID, Role: models.RoleAssistant, Content: answer, CurrentTimeMs: req.CurrentTimeMs, Model: model, RelatedRelationID: relationID},
	}
	for _, m := range turn {
		if _, err := s.store.AppendMessage(ctx, m); err != nil {
			return fmt.Errorf("persist chat turn: %w", err)
		}
	}
	return nil
}

// History lists the persisted turns of the newest session for the key,
// oldest first. Anonymous callers have no history.
func (s *QAService) History(ctx context.Context, titleID, episodeID, userID string, limit int) (*models.ChatHistoryResponse, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, invalidf("limit must be between 1 and %d, got %d", MaxHistoryLimit, limit)
	}
	resp := &models.ChatHistoryResponse{Messages: []models.ChatMessage{}}
	if userID == "" {
		return resp, nil
	}

	session, err := s.store.FindSession(ctx, titleID, episodeID, userID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return resp, nil
	}
	msgs, err := s.store.ListMessages(ctx, session.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	resp.SessionID = session.ID
	resp.Messages = nonNil(msgs)
	return resp, nil
}

// ClearHistory deletes every session for the key with its messages.
func (s *QAService) ClearHistory(ctx context.Context, titleID, episodeID, userID string) (*models.ChatHistoryClearResponse, error) {
	if userID == "" {
		return &models.ChatHistoryClearResponse{}, nil
	}
	msgs, sessions, err := s.store.DeleteHistory(ctx, titleID, episodeID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete history: %w", err)
	}
	return &models.ChatHistoryClearResponse{DeletedMessages: msgs, DeletedSessions: sessions}, nil
}

func ruleCasualAnswer(question string, lang models.Language, style models.ResponseStyle, cat *prompts.Catalog) models.Answer {
	conf := cat.Casual.Confidence
	intent := []models.Interpretation{{Label: "INTENT", Text: cat.CasualIntentLabel(lang), Confidence: conf}}

	normalized := strings.ToLower(strings.TrimSpace(question))
	for _, marker := range cat.Casual.MenuMarkers {
		if strings.Contains(normalized, marker) {
			return models.Answer{
				Conclusion:        cat.MenuReply(lang, style),
				Context:           []string{cat.CasualSkippedContext(lang)},
				Interpretations:   intent,
				OverallConfidence: conf,
			}
		}
	}

	reply := cat.CasualReply(lang, style)
	return models.Answer{
		Conclusion:        reply.Conclusion,
		Context:           []string{reply.Context},
		Interpretations:   intent,
		OverallConfidence: conf,
	}
}
