package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuri-sun/bous-ai/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, repo.Close())
	})
	return repo
}

func TestCreateAndGetSession(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	id, err := repo.CreateSession(ctx, &domain.Session{
		Status: domain.SessionStatusStep1,
		Place:  &domain.Place{City: "渋谷区", Prefecture: "東京都"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session, err := repo.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, id, session.ID)
	assert.Equal(t, domain.SessionStatusStep1, session.Status)
	require.NotNil(t, session.Place)
	assert.Equal(t, "渋谷区", session.Place.City)
	assert.False(t, session.CreatedAt.IsZero())
}

func TestGetSessionMissingReturnsNilNil(t *testing.T) {
	repo := newTestStore(t)

	session, err := repo.GetSession(context.Background(), "does-not-exist")

	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestUpdateSessionMissingReturnsNotFound(t *testing.T) {
	repo := newTestStore(t)

	err := repo.UpdateSession(context.Background(), "does-not-exist", SessionPatch{
		Status: String(domain.SessionStatusDone),
	})

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateSessionPartialMergePreservesFields(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	id, err := repo.CreateSession(ctx, &domain.Session{
		Status: domain.SessionStatusStep2,
		Place:  &domain.Place{City: "渋谷区", Prefecture: "東京都"},
		Inputs: &domain.Inputs{
			Step1:    &domain.Step1Input{Memo: "最初のメモ"},
			Markdown: "# 本文",
		},
		Msg: "入力してください",
	})
	require.NoError(t, err)

	// Patch only agentic state and html; everything else must survive.
	proposal := "提案です"
	err = repo.UpdateSession(ctx, id, SessionPatch{
		Agentic: &domain.AgenticState{
			Status:   domain.AgenticStatusProposal,
			Proposal: &proposal,
			History:  []domain.Message{{Role: domain.RoleAssistant, Content: proposal}},
		},
		Inputs: &InputsPatch{HTML: String("<html></html>")},
	})
	require.NoError(t, err)

	session, err := repo.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, domain.SessionStatusStep2, session.Status)
	require.NotNil(t, session.Place)
	assert.Equal(t, "東京都", session.Place.Prefecture)
	require.NotNil(t, session.Inputs)
	require.NotNil(t, session.Inputs.Step1)
	assert.Equal(t, "最初のメモ", session.Inputs.Step1.Memo)
	assert.Equal(t, "# 本文", session.Inputs.Markdown)
	assert.Equal(t, "<html></html>", session.Inputs.HTML)
	assert.Equal(t, "入力してください", session.Msg)
	require.NotNil(t, session.Agentic)
	assert.Equal(t, domain.AgenticStatusProposal, session.Agentic.Status)
	require.NotNil(t, session.Agentic.Proposal)
	assert.Equal(t, proposal, *session.Agentic.Proposal)
}

func TestUpdateSessionCompletesManual(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	id, err := repo.CreateSession(ctx, &domain.Session{Status: domain.SessionStatusStep2})
	require.NoError(t, err)

	blobName := "sessions/" + id + "/output/manual.pdf"
	err = repo.UpdateSession(ctx, id, SessionPatch{
		Status:      String(domain.SessionStatusDone),
		PDFBlobName: String(blobName),
		PDFURL:      String("https://storage.googleapis.com/bucket/" + blobName),
		Inputs: &InputsPatch{
			Step2:    &domain.Step2Input{Memo: "メモ", Answers: map[string]string{"k": "v"}},
			Markdown: String("# 完成版"),
			HTML:     String("<html>done</html>"),
			Agentic:  &domain.AcceptedProposal{Proposal: "提案"},
		},
	})
	require.NoError(t, err)

	session, err := repo.GetSession(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, domain.SessionStatusDone, session.Status)
	assert.Equal(t, blobName, session.PDFBlobName)
	require.NotNil(t, session.Inputs.Step2)
	assert.Equal(t, "v", session.Inputs.Step2.Answers["k"])
	require.NotNil(t, session.Inputs.Agentic)
	assert.Equal(t, "提案", session.Inputs.Agentic.Proposal)

	stored, err := repo.GetSessionPDFBlobName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, blobName, stored)
}

func TestGetSessionPDFBlobNameUnsetIsEmpty(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	id, err := repo.CreateSession(ctx, &domain.Session{Status: domain.SessionStatusStep1})
	require.NoError(t, err)

	blobName, err := repo.GetSessionPDFBlobName(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, blobName)

	blobName, err = repo.GetSessionPDFBlobName(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, blobName)
}

func TestListSessionsNewestFirst(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for range 3 {
		id, err := repo.CreateSession(ctx, &domain.Session{Status: domain.SessionStatusStep1})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	sessions, err := repo.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	all, err := repo.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, len(ids))
}
