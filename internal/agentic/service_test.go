package agentic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuri-sun/bous-ai/internal/apperr"
	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/generate"
	"github.com/kuri-sun/bous-ai/internal/store"
)

type fakeRepo struct {
	sessions  map[string]*domain.Session
	patches   []store.SessionPatch
	updateErr error
}

func newFakeRepo(sessions ...*domain.Session) *fakeRepo {
	repo := &fakeRepo{sessions: map[string]*domain.Session{}}
	for _, session := range sessions {
		repo.sessions[session.ID] = session
	}
	return repo
}

func (f *fakeRepo) CreateSession(_ context.Context, session *domain.Session) (string, error) {
	f.sessions[session.ID] = session
	return session.ID, nil
}

func (f *fakeRepo) GetSession(_ context.Context, id string) (*domain.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeRepo) UpdateSession(_ context.Context, id string, patch store.SessionPatch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	session, ok := f.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	f.patches = append(f.patches, patch)
	if patch.Status != nil {
		session.Status = *patch.Status
	}
	if patch.Agentic != nil {
		session.Agentic = patch.Agentic
	}
	if patch.PDFBlobName != nil {
		session.PDFBlobName = *patch.PDFBlobName
	}
	if patch.PDFURL != nil {
		session.PDFURL = *patch.PDFURL
	}
	return nil
}

func (f *fakeRepo) ListSessions(_ context.Context, _ int) ([]*domain.Session, error) {
	return nil, nil
}

func (f *fakeRepo) GetSessionPDFBlobName(_ context.Context, id string) (string, error) {
	if session, ok := f.sessions[id]; ok {
		return session.PDFBlobName, nil
	}
	return "", nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

type fakeSearcher struct {
	result *domain.SearchContext
	err    error
	calls  int
}

func (f *fakeSearcher) SearchOfficialManual(_ context.Context, _, _ string, _ *domain.Place) (*domain.SearchContext, error) {
	f.calls++
	return f.result, f.err
}

type fakeRegenerator struct {
	result *generate.Result
	err    error
	inputs []generate.ProposalInput
}

func (f *fakeRegenerator) RegenerateWithProposal(_ context.Context, in generate.ProposalInput) (*generate.Result, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func questionService(repo *fakeRepo, searcher *fakeSearcher, pipeline *fakeRegenerator) *Service {
	gen := &fakeTextGenerator{response: `{"kind": "question", "content": "備蓄品の数量を教えてください。"}`}
	return NewService(repo, searcher, NewTurnGenerator(gen), pipeline)
}

func shibuyaSession(id string) *domain.Session {
	return &domain.Session{
		ID:     id,
		Status: domain.SessionStatusStep2,
		Place:  &domain.Place{City: "渋谷区", Prefecture: "東京都"},
	}
}

func TestStartProducesQuestionFromEmptyHistory(t *testing.T) {
	repo := newFakeRepo(shibuyaSession("s1"))
	searcher := &fakeSearcher{result: &domain.SearchContext{
		Query:         "渋谷区 防災マニュアル",
		Scope:         "city",
		Result:        &domain.SearchResult{Title: "渋谷区防災マニュアル", Link: "https://city.shibuya.tokyo.jp/manual.pdf"},
		ReferenceText: "参照テキスト",
	}}
	service := questionService(repo, searcher, &fakeRegenerator{})

	state, err := service.Start(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, domain.AgenticStatusQuestion, state.Status)
	require.Len(t, state.History, 1)
	assert.Equal(t, domain.RoleAssistant, state.History[0].Role)
	assert.Nil(t, state.Proposal)
	require.NotNil(t, state.Turn)
	assert.Equal(t, domain.TurnKindQuestion, state.Turn.Kind)
	assert.Equal(t, searcher.result, state.Search)
	assert.Equal(t, "参照テキスト", state.SearchReferenceText)
	assert.Equal(t, 1, searcher.calls)

	// State was written back to the session.
	assert.Equal(t, state, repo.sessions["s1"].Agentic)
}

func TestStartRequiresPlace(t *testing.T) {
	repo := newFakeRepo(&domain.Session{ID: "s1", Status: domain.SessionStatusStep2})
	service := questionService(repo, &fakeSearcher{}, &fakeRegenerator{})

	_, err := service.Start(context.Background(), "s1")

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	assert.Empty(t, repo.patches)
}

func TestStartUnknownSessionIsNotFound(t *testing.T) {
	service := questionService(newFakeRepo(), &fakeSearcher{}, &fakeRegenerator{})

	_, err := service.Start(context.Background(), "missing")

	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestStartSearchFailurePropagates(t *testing.T) {
	repo := newFakeRepo(shibuyaSession("s1"))
	searcher := &fakeSearcher{err: errors.New("search quota exceeded")}
	service := questionService(repo, searcher, &fakeRegenerator{})

	_, err := service.Start(context.Background(), "s1")

	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
	assert.Empty(t, repo.patches)
}

func TestRespondAppendsAnswerAndReusesSearch(t *testing.T) {
	session := shibuyaSession("s1")
	cached := &domain.SearchContext{Query: "渋谷区 防災マニュアル", Scope: "city", ReferenceText: "キャッシュ"}
	session.Agentic = &domain.AgenticState{
		Status:  domain.AgenticStatusQuestion,
		History: []domain.Message{{Role: domain.RoleAssistant, Content: "備蓄品は？"}},
		Search:  cached,
	}
	repo := newFakeRepo(session)
	searcher := &fakeSearcher{}
	service := questionService(repo, searcher, &fakeRegenerator{})

	state, err := service.Respond(context.Background(), "s1", "  水を30本備蓄しています  ")
	require.NoError(t, err)

	require.Len(t, state.History, 3)
	assert.Equal(t, domain.RoleUser, state.History[1].Role)
	assert.Equal(t, "水を30本備蓄しています", state.History[1].Content)
	assert.Equal(t, domain.RoleAssistant, state.History[2].Role)
	assert.Equal(t, cached, state.Search)
	assert.Zero(t, searcher.calls, "search must not be re-fetched")
}

func TestRespondFeedsMemoAndAnswersToGenerator(t *testing.T) {
	session := shibuyaSession("s1")
	session.Agentic = &domain.AgenticState{
		Status:  domain.AgenticStatusQuestion,
		History: []domain.Message{{Role: domain.RoleAssistant, Content: "備蓄品は？"}},
	}
	session.Inputs = &domain.Inputs{
		Step2: &domain.Step2Input{
			Memo:    "管理組合の自由記述メモ",
			Answers: map[string]string{"evacuation": "屋上"},
		},
	}
	repo := newFakeRepo(session)
	gen := &fakeTextGenerator{response: `{"kind": "question", "content": "次の質問です。"}`}
	service := NewService(repo, &fakeSearcher{}, NewTurnGenerator(gen), &fakeRegenerator{})

	_, err := service.Respond(context.Background(), "s1", "回答です")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "管理組合の自由記述メモ")
	assert.Contains(t, gen.prompts[0], "屋上")
	// The stored answer map itself is left untouched.
	_, ok := session.Inputs.Step2.Answers["memo"]
	assert.False(t, ok)
}

func TestTurnAnswersWithoutMemoPassesMapThrough(t *testing.T) {
	answers := map[string]string{"evacuation": "屋上"}
	step2 := &domain.Step2Input{Answers: answers}

	assert.Equal(t, answers, turnAnswers(step2))

	step2.Memo = "メモ"
	merged := turnAnswers(step2)
	assert.Equal(t, "メモ", merged["memo"])
	assert.Equal(t, "屋上", merged["evacuation"])
}

func TestRespondRejectsWhitespaceAnswer(t *testing.T) {
	session := shibuyaSession("s1")
	session.Agentic = &domain.AgenticState{Status: domain.AgenticStatusQuestion}
	repo := newFakeRepo(session)
	service := questionService(repo, &fakeSearcher{}, &fakeRegenerator{})

	_, err := service.Respond(context.Background(), "s1", "   ")

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	assert.Empty(t, repo.patches)
}

func TestRespondWithoutConversationFails(t *testing.T) {
	repo := newFakeRepo(shibuyaSession("s1"))
	service := questionService(repo, &fakeSearcher{}, &fakeRegenerator{})

	_, err := service.Respond(context.Background(), "s1", "回答")

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestRespondReopensAfterRejection(t *testing.T) {
	session := shibuyaSession("s1")
	session.Agentic = &domain.AgenticState{
		Status: domain.AgenticStatusRejected,
		History: []domain.Message{
			{Role: domain.RoleAssistant, Content: "提案です"},
			{Role: domain.RoleUser, Content: "いいえ"},
		},
	}
	repo := newFakeRepo(session)
	service := questionService(repo, &fakeSearcher{}, &fakeRegenerator{})

	state, err := service.Respond(context.Background(), "s1", "やはり追記したいです")
	require.NoError(t, err)

	assert.Equal(t, domain.AgenticStatusQuestion, state.Status)
	assert.Len(t, state.History, 4)
}

func proposalSession(id string) *domain.Session {
	proposal := "照明を追加してください。"
	session := shibuyaSession(id)
	session.Agentic = &domain.AgenticState{
		Status:   domain.AgenticStatusProposal,
		Turn:     &domain.Turn{Kind: domain.TurnKindProposal, Content: proposal},
		Proposal: &proposal,
		History: []domain.Message{
			{Role: domain.RoleAssistant, Content: "備蓄品は？"},
			{Role: domain.RoleUser, Content: "水のみです"},
			{Role: domain.RoleAssistant, Content: proposal},
		},
	}
	session.Inputs = &domain.Inputs{
		Step1: &domain.Step1Input{Name: "グランメゾン渋谷", Author: "管理組合"},
		Step2: &domain.Step2Input{
			Memo:    "管理組合のメモ",
			Answers: map[string]string{"evacuation": "屋上"},
		},
		Markdown: "# マニュアル本文",
		HTML:     "<html><body>manual</body></html>",
	}
	return session
}

func TestDecideNoRecordsRejection(t *testing.T) {
	repo := newFakeRepo(proposalSession("s1"))
	pipeline := &fakeRegenerator{}
	service := questionService(repo, &fakeSearcher{}, pipeline)

	state, err := service.Decide(context.Background(), "s1", "no")
	require.NoError(t, err)

	assert.Equal(t, domain.AgenticStatusRejected, state.Status)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "いいえ"}, state.History[len(state.History)-1])
	assert.Empty(t, pipeline.inputs, "rejection must not regenerate")
	// Session-level status is untouched on rejection.
	assert.Equal(t, domain.SessionStatusStep2, repo.sessions["s1"].Status)
}

func TestDecideYesRegeneratesAndCompletesSession(t *testing.T) {
	repo := newFakeRepo(proposalSession("s1"))
	pipeline := &fakeRegenerator{result: &generate.Result{
		Markdown:    "# マニュアル本文",
		HTML:        "<html><body>updated</body></html>",
		PDFBlobName: "sessions/s1/output/manual.pdf",
		PDFURL:      "https://storage.googleapis.com/bucket/sessions/s1/output/manual.pdf",
	}}
	service := questionService(repo, &fakeSearcher{}, pipeline)

	state, err := service.Decide(context.Background(), "s1", "yes")
	require.NoError(t, err)

	assert.Equal(t, domain.AgenticStatusAccepted, state.Status)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "はい"}, state.History[len(state.History)-1])

	require.Len(t, pipeline.inputs, 1)
	assert.Equal(t, "照明を追加してください。", pipeline.inputs[0].Proposal)
	assert.Equal(t, "# マニュアル本文", pipeline.inputs[0].PreviousMarkdown)

	session := repo.sessions["s1"]
	assert.Equal(t, domain.SessionStatusDone, session.Status)
	assert.Equal(t, "sessions/s1/output/manual.pdf", session.PDFBlobName)

	require.Len(t, repo.patches, 1, "accept must persist in a single update")
	patch := repo.patches[0]
	require.NotNil(t, patch.Inputs)
	require.NotNil(t, patch.Inputs.Step2)
	assert.Equal(t, "グランメゾン渋谷 防災マニュアル", patch.Inputs.Step2.ManualTitle)
	assert.Equal(t, "グランメゾン渋谷", patch.Inputs.Step2.Name)
	assert.Equal(t, "管理組合", patch.Inputs.Step2.Author)
	assert.NotEmpty(t, patch.Inputs.Step2.IssuedOn)
	require.NotNil(t, patch.Inputs.Agentic)
	assert.Equal(t, "照明を追加してください。", patch.Inputs.Agentic.Proposal)
}

func TestDecideFromQuestionFailsWithoutMutation(t *testing.T) {
	session := shibuyaSession("s1")
	session.Agentic = &domain.AgenticState{
		Status:  domain.AgenticStatusQuestion,
		Turn:    &domain.Turn{Kind: domain.TurnKindQuestion, Content: "備蓄品は？"},
		History: []domain.Message{{Role: domain.RoleAssistant, Content: "備蓄品は？"}},
	}
	repo := newFakeRepo(session)
	pipeline := &fakeRegenerator{}
	service := questionService(repo, &fakeSearcher{}, pipeline)

	_, err := service.Decide(context.Background(), "s1", "yes")

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	assert.Empty(t, repo.patches)
	assert.Empty(t, pipeline.inputs)
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	service := questionService(newFakeRepo(), &fakeSearcher{}, &fakeRegenerator{})

	_, err := service.Decide(context.Background(), "s1", "maybe")

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestDecideYesRequiresStep2(t *testing.T) {
	session := proposalSession("s1")
	session.Inputs.Step2 = nil
	repo := newFakeRepo(session)
	pipeline := &fakeRegenerator{}
	service := questionService(repo, &fakeSearcher{}, pipeline)

	_, err := service.Decide(context.Background(), "s1", "yes")

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	assert.Empty(t, pipeline.inputs)
}

func TestDecideYesRejectsAllInvalidImages(t *testing.T) {
	session := proposalSession("s1")
	session.Inputs.Step2.UploadedImages = []domain.InputImage{
		{Description: "説明のみ"},
		{PublicURL: "https://example.com/only-url.png"},
	}
	repo := newFakeRepo(session)
	service := questionService(repo, &fakeSearcher{}, &fakeRegenerator{})

	_, err := service.Decide(context.Background(), "s1", "yes")

	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

func TestDecideYesPipelineFailureLeavesProposalPending(t *testing.T) {
	repo := newFakeRepo(proposalSession("s1"))
	pipeline := &fakeRegenerator{err: errors.New("render crashed")}
	service := questionService(repo, &fakeSearcher{}, pipeline)

	_, err := service.Decide(context.Background(), "s1", "yes")

	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
	assert.Empty(t, repo.patches)
	assert.Equal(t, domain.AgenticStatusProposal, repo.sessions["s1"].Agentic.Status)
}

func TestCoerceHistoryDropsMalformedEntries(t *testing.T) {
	history := coerceHistory([]domain.Message{
		{Role: domain.RoleAssistant, Content: "  質問です  "},
		{Role: "system", Content: "無視される"},
		{Role: domain.RoleUser, Content: "   "},
		{Role: domain.RoleUser, Content: "回答です"},
	})

	require.Len(t, history, 2)
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: "質問です"}, history[0])
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "回答です"}, history[1])
}
