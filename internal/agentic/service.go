// Package agentic implements the conversational revision loop for generated
// manuals: the turn-taking protocol, its session-scoped state machine, and
// the regeneration that follows an accepted proposal.
package agentic

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kuri-sun/bous-ai/internal/apperr"
	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/generate"
	"github.com/kuri-sun/bous-ai/internal/japandate"
	"github.com/kuri-sun/bous-ai/internal/search"
	"github.com/kuri-sun/bous-ai/internal/store"
)

// Fixed acknowledgment messages appended when the user decides on a proposal.
const (
	decisionYesMessage = "はい"
	decisionNoMessage  = "いいえ"
)

// Regenerator runs the regeneration pipeline for an accepted proposal.
type Regenerator interface {
	RegenerateWithProposal(ctx context.Context, in generate.ProposalInput) (*generate.Result, error)
}

// Service is the agentic state machine. State is reloaded from the session
// store on every call and rewritten at the end; no conversation state is
// held in memory between requests.
type Service struct {
	repo     store.Repository
	searcher search.ManualSearcher
	turns    *TurnGenerator
	pipeline Regenerator
}

// NewService wires the state machine from its collaborators.
func NewService(repo store.Repository, searcher search.ManualSearcher, turns *TurnGenerator, pipeline Regenerator) *Service {
	return &Service{
		repo:     repo,
		searcher: searcher,
		turns:    turns,
		pipeline: pipeline,
	}
}

// Start opens the conversation for a session: performs the one-time
// official-manual search, produces the first turn (always a question, since
// history is empty) and persists the resulting state.
func (s *Service) Start(ctx context.Context, sessionID string) (*domain.AgenticState, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Place == nil {
		return nil, apperr.Invalid("Place is required")
	}

	searchResult, err := s.searcher.SearchOfficialManual(ctx, session.Place.City, session.Place.Prefecture, session.Place)
	if err != nil {
		return nil, apperr.Unavailable("official manual search failed", err)
	}

	turnContext := buildTurnContext(session)
	turnContext.Search = searchResult
	if searchResult != nil {
		turnContext.SearchReferenceText = searchResult.ReferenceText
	}

	var history []domain.Message
	turn := s.turns.ProduceTurn(ctx, turnContext, history)
	history = append(history, domain.Message{Role: domain.RoleAssistant, Content: turn.Content})

	state := conversationState(turn, history, searchResult, turnContext.SearchReferenceText)
	if err := s.persistState(ctx, sessionID, state); err != nil {
		return nil, err
	}
	slog.Info("agentic conversation started", "session_id", sessionID, "status", state.Status)
	return state, nil
}

// Respond appends the user's answer and produces the next turn. The cached
// search from Start is reused, never re-fetched. Responding is allowed even
// after a decision: a new answer reopens the conversation without resetting
// its history.
func (s *Service) Respond(ctx context.Context, sessionID, answer string) (*domain.AgenticState, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	prior := session.Agentic
	if prior == nil || !domain.ValidStatus(prior.Status) {
		return nil, apperr.Invalid("Agent is not waiting for input")
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, apperr.Invalid("Answer is required")
	}

	turnContext := buildTurnContext(session)
	turnContext.Search = prior.Search
	if prior.Search != nil {
		turnContext.SearchReferenceText = prior.Search.ReferenceText
	}

	history := coerceHistory(prior.History)
	history = append(history, domain.Message{Role: domain.RoleUser, Content: answer})
	turn := s.turns.ProduceTurn(ctx, turnContext, history)
	history = append(history, domain.Message{Role: domain.RoleAssistant, Content: turn.Content})

	state := conversationState(turn, history, prior.Search, turnContext.SearchReferenceText)
	if err := s.persistState(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Decide accepts or rejects the pending proposal. Rejecting only records the
// decision; accepting validates the session's upstream inputs, runs the
// regeneration pipeline and persists the finished manual in a single session
// update.
func (s *Service) Decide(ctx context.Context, sessionID, decision string) (*domain.AgenticState, error) {
	if decision != "yes" && decision != "no" {
		return nil, apperr.Invalid("decision must be yes or no")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := session.Agentic
	if state == nil || state.Status != domain.AgenticStatusProposal {
		return nil, apperr.Invalid("No proposal to decide on")
	}
	history := coerceHistory(state.History)

	if decision == "no" {
		state.History = append(history, domain.Message{Role: domain.RoleUser, Content: decisionNoMessage})
		state.Status = domain.AgenticStatusRejected
		if err := s.persistState(ctx, sessionID, state); err != nil {
			return nil, err
		}
		slog.Info("proposal rejected", "session_id", sessionID)
		return state, nil
	}

	if state.Proposal == nil || strings.TrimSpace(*state.Proposal) == "" {
		return nil, apperr.Invalid("Proposal is missing")
	}
	proposal := strings.TrimSpace(*state.Proposal)

	step2, markdown, html, err := validateRegenerationInputs(session)
	if err != nil {
		return nil, err
	}

	name, author := manualAttribution(session, step2)
	issuedOn := strings.TrimSpace(step2.IssuedOn)
	if issuedOn == "" {
		issuedOn = japandate.Now()
	}
	manualTitle := "防災マニュアル"
	if name != "" {
		manualTitle = name + " 防災マニュアル"
	}

	result, err := s.pipeline.RegenerateWithProposal(ctx, generate.ProposalInput{
		SessionID:        sessionID,
		PreviousMarkdown: markdown,
		PreviousHTML:     html,
		Proposal:         proposal,
	})
	if err != nil {
		return nil, apperr.Unavailable("manual regeneration failed", err)
	}

	state.History = append(history, domain.Message{Role: domain.RoleUser, Content: decisionYesMessage})
	state.Status = domain.AgenticStatusAccepted

	updatedStep2 := *step2
	updatedStep2.ManualTitle = manualTitle
	updatedStep2.Name = name
	updatedStep2.Author = author
	updatedStep2.IssuedOn = issuedOn

	patch := store.SessionPatch{
		Status:      store.String(domain.SessionStatusDone),
		PDFBlobName: store.String(result.PDFBlobName),
		PDFURL:      store.String(result.PDFURL),
		Agentic:     state,
		Inputs: &store.InputsPatch{
			Step2:    &updatedStep2,
			Markdown: store.String(result.Markdown),
			HTML:     store.String(result.HTML),
			Agentic:  &domain.AcceptedProposal{Proposal: proposal},
		},
	}
	if err := s.repo.UpdateSession(ctx, sessionID, patch); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, apperr.NotFound("Session not found")
		}
		return nil, apperr.Unavailable("persist session", err)
	}
	slog.Info("proposal accepted", "session_id", sessionID, "pdf_blob", result.PDFBlobName)
	return state, nil
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Unavailable("load session", err)
	}
	if session == nil {
		return nil, apperr.NotFound("Session not found")
	}
	return session, nil
}

func (s *Service) persistState(ctx context.Context, sessionID string, state *domain.AgenticState) error {
	err := s.repo.UpdateSession(ctx, sessionID, store.SessionPatch{Agentic: state})
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrSessionNotFound) {
		return apperr.NotFound("Session not found")
	}
	return apperr.Unavailable("persist session", err)
}

// buildTurnContext assembles the factual grounding fed to the turn
// generator from the session's prior inputs.
func buildTurnContext(session *domain.Session) domain.TurnContext {
	tc := domain.TurnContext{Place: session.Place}
	if session.Inputs != nil {
		tc.GeneratedHTML = session.Inputs.HTML
		tc.GeneratedMarkdown = session.Inputs.Markdown
		if session.Inputs.Step2 != nil {
			tc.Answers = turnAnswers(session.Inputs.Step2)
		}
	}
	return tc
}

// turnAnswers folds the step2 memo into the answer map so the generator
// keeps the user's free-form notes as grounding.
func turnAnswers(step2 *domain.Step2Input) map[string]string {
	if step2.Memo == "" {
		return step2.Answers
	}
	answers := make(map[string]string, len(step2.Answers)+1)
	for key, value := range step2.Answers {
		answers[key] = value
	}
	answers["memo"] = step2.Memo
	return answers
}

// conversationState derives the persisted aggregate from the produced turn,
// maintaining the invariant status=="proposal" iff proposal is set iff
// turn.kind=="proposal".
func conversationState(turn domain.Turn, history []domain.Message, searchResult *domain.SearchContext, referenceText string) *domain.AgenticState {
	status := domain.AgenticStatusQuestion
	var proposal *string
	if turn.Kind == domain.TurnKindProposal {
		status = domain.AgenticStatusProposal
		content := turn.Content
		proposal = &content
	}
	return &domain.AgenticState{
		Status:              status,
		Turn:                &domain.Turn{Kind: turn.Kind, Content: turn.Content},
		Proposal:            proposal,
		History:             history,
		Search:              searchResult,
		SearchReferenceText: referenceText,
	}
}

// coerceHistory drops malformed persisted entries and normalizes content,
// preserving order.
func coerceHistory(raw []domain.Message) []domain.Message {
	var history []domain.Message
	for _, message := range raw {
		if message.Role != domain.RoleAssistant && message.Role != domain.RoleUser {
			continue
		}
		content := strings.TrimSpace(message.Content)
		if content == "" {
			continue
		}
		history = append(history, domain.Message{Role: message.Role, Content: content})
	}
	return history
}

// validateRegenerationInputs checks the upstream step data the pipeline
// needs, naming the missing field on failure.
func validateRegenerationInputs(session *domain.Session) (*domain.Step2Input, string, string, error) {
	if session.Inputs == nil || session.Inputs.Step2 == nil {
		return nil, "", "", apperr.Invalid("Step2 data is missing")
	}
	step2 := session.Inputs.Step2

	var validImages []domain.InputImage
	for _, image := range step2.UploadedImages {
		if image.Description == "" || image.PublicURL == "" {
			continue
		}
		validImages = append(validImages, image)
	}
	if len(validImages) == 0 && len(step2.UploadedImages) > 0 {
		return nil, "", "", apperr.Invalid("Step2 images are invalid")
	}
	normalized := *step2
	normalized.UploadedImages = validImages

	markdown := strings.TrimSpace(session.Inputs.Markdown)
	if markdown == "" {
		return nil, "", "", apperr.Invalid("Step2 markdown is missing")
	}
	html := strings.TrimSpace(session.Inputs.HTML)
	if html == "" {
		return nil, "", "", apperr.Invalid("Step2 html is missing")
	}
	return &normalized, markdown, html, nil
}

// manualAttribution resolves the manual's name and author, preferring the
// step1 form and falling back to step2 answers.
func manualAttribution(session *domain.Session, step2 *domain.Step2Input) (string, string) {
	var name, author string
	if session.Inputs != nil && session.Inputs.Step1 != nil {
		name = strings.TrimSpace(session.Inputs.Step1.Name)
		author = strings.TrimSpace(session.Inputs.Step1.Author)
	}
	if name == "" {
		name = strings.TrimSpace(step2.Name)
	}
	if author == "" {
		author = strings.TrimSpace(step2.Author)
	}
	return name, author
}
