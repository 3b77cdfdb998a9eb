package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store/memory"
)

type fixture struct {
	t       *testing.T
	store   *memory.Store
	manager *Manager
	convID  string
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	convID := uuid.NewString()
	now := time.Now()
	require.NoError(t, st.CreateConversation(context.Background(), &model.Conversation{
		ID:        convID,
		Title:     "test",
		CreatedAt: now,
		UpdatedAt: now,
	}))
	return &fixture{
		t:       t,
		store:   st,
		manager: NewManager(st),
		convID:  convID,
		clock:   now,
	}
}

// addMessage inserts a message with a strictly increasing timestamp so
// creation order is unambiguous.
func (f *fixture) addMessage(role model.Role, content string, parentID *string) string {
	f.t.Helper()
	f.clock = f.clock.Add(time.Second)
	id := uuid.NewString()
	require.NoError(f.t, f.store.InsertMessage(context.Background(), &model.Message{
		ID:             id,
		ConversationID: f.convID,
		Role:           role,
		Content:        content,
		ParentID:       parentID,
		CreatedAt:      f.clock,
	}))
	return id
}

func contents(thread []model.ThreadMessage) []string {
	out := make([]string, len(thread))
	for i, tm := range thread {
		out[i] = tm.Content
	}
	return out
}

func TestActiveThreadLinear(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	a1 := f.addMessage(model.RoleAssistant, "A1", &u1)
	u2 := f.addMessage(model.RoleUser, "U2", &a1)
	f.addMessage(model.RoleAssistant, "A2", &u2)

	thread, err := f.manager.ActiveThread(context.Background(), f.convID)
	require.NoError(t, err)

	assert.Equal(t, []string{"U1", "A1", "U2", "A2"}, contents(thread))
	for _, tm := range thread {
		assert.Equal(t, 1, tm.SiblingCount)
		assert.Equal(t, 1, tm.SiblingIndex)
	}
}

func TestActiveThreadEmptyConversation(t *testing.T) {
	f := newFixture(t)

	thread, err := f.manager.ActiveThread(context.Background(), f.convID)
	require.NoError(t, err)
	assert.Empty(t, thread)
}

func TestActiveThreadFollowsLatestBranch(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	a1 := f.addMessage(model.RoleAssistant, "A1", &u1)
	u2 := f.addMessage(model.RoleUser, "U2", &a1)
	f.addMessage(model.RoleAssistant, "A2", &u2)
	// Editing U2 creates a sibling under A1; the newer branch wins.
	u2b := f.addMessage(model.RoleUser, "U2'", &a1)
	f.addMessage(model.RoleAssistant, "A2'", &u2b)

	thread, err := f.manager.ActiveThread(context.Background(), f.convID)
	require.NoError(t, err)

	assert.Equal(t, []string{"U1", "A1", "U2'", "A2'"}, contents(thread))

	// The edited question is the second of two siblings.
	edited := thread[2]
	assert.Equal(t, 2, edited.SiblingCount)
	assert.Equal(t, 2, edited.SiblingIndex)
}

func TestThreadFromRestoresOldBranch(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	a1 := f.addMessage(model.RoleAssistant, "A1", &u1)
	u2 := f.addMessage(model.RoleUser, "U2", &a1)
	f.addMessage(model.RoleAssistant, "A2", &u2)
	u2b := f.addMessage(model.RoleUser, "U2'", &a1)
	f.addMessage(model.RoleAssistant, "A2'", &u2b)

	// The walk starts at the selected sibling, not at the root.
	thread, err := f.manager.ThreadFrom(context.Background(), f.convID, u2)
	require.NoError(t, err)

	assert.Equal(t, []string{"U2", "A2"}, contents(thread))

	original := thread[0]
	assert.Equal(t, 2, original.SiblingCount)
	assert.Equal(t, 1, original.SiblingIndex)
}

func TestThreadFromMidThreadDescendsOnly(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	a1 := f.addMessage(model.RoleAssistant, "A1", &u1)
	u2 := f.addMessage(model.RoleUser, "U2", &a1)
	f.addMessage(model.RoleAssistant, "A2", &u2)

	thread, err := f.manager.ThreadFrom(context.Background(), f.convID, a1)
	require.NoError(t, err)

	assert.Equal(t, []string{"A1", "U2", "A2"}, contents(thread))
}

func TestThreadFromUnknownMessage(t *testing.T) {
	f := newFixture(t)
	f.addMessage(model.RoleUser, "U1", nil)

	_, err := f.manager.ThreadFrom(context.Background(), f.convID, uuid.NewString())
	assert.Error(t, err)
}

func TestSiblingsOrderedByCreation(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	a1 := f.addMessage(model.RoleAssistant, "A1", &u1)
	u2 := f.addMessage(model.RoleUser, "U2", &a1)
	u2b := f.addMessage(model.RoleUser, "U2'", &a1)
	u2c := f.addMessage(model.RoleUser, "U2''", &a1)

	siblings, err := f.manager.Siblings(context.Background(), f.convID, u2b)
	require.NoError(t, err)

	require.Len(t, siblings, 3)
	assert.Equal(t, u2, siblings[0].ID)
	assert.Equal(t, u2b, siblings[1].ID)
	assert.Equal(t, u2c, siblings[2].ID)
	for i, sib := range siblings {
		assert.Equal(t, 3, sib.SiblingCount)
		assert.Equal(t, i+1, sib.SiblingIndex)
	}
}

func TestSiblingsExcludeOtherRole(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	a1 := f.addMessage(model.RoleAssistant, "A1", &u1)
	// A regenerated answer is an assistant sibling under the same parent.
	a1b := f.addMessage(model.RoleAssistant, "A1'", &u1)
	f.addMessage(model.RoleUser, "U2", &a1)

	siblings, err := f.manager.Siblings(context.Background(), f.convID, a1b)
	require.NoError(t, err)

	require.Len(t, siblings, 2)
	for _, sib := range siblings {
		assert.Equal(t, model.RoleAssistant, sib.Role)
	}
}

func TestActiveTail(t *testing.T) {
	f := newFixture(t)

	tail, err := f.manager.ActiveTail(context.Background(), f.convID)
	require.NoError(t, err)
	assert.Nil(t, tail)

	u1 := f.addMessage(model.RoleUser, "U1", nil)
	f.addMessage(model.RoleAssistant, "A1", &u1)

	tail, err = f.manager.ActiveTail(context.Background(), f.convID)
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, "A1", tail.Content)
}

func TestAncestorsNearestFirst(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	a1 := f.addMessage(model.RoleAssistant, "A1", &u1)
	u2 := f.addMessage(model.RoleUser, "U2", &a1)
	a2 := f.addMessage(model.RoleAssistant, "A2", &u2)

	ancestors, err := f.manager.Ancestors(context.Background(), f.convID, &a2, 3)
	require.NoError(t, err)

	require.Len(t, ancestors, 3)
	assert.Equal(t, "A2", ancestors[0].Content)
	assert.Equal(t, "U2", ancestors[1].Content)
	assert.Equal(t, "A1", ancestors[2].Content)
}

func TestDeleteRemovesTree(t *testing.T) {
	f := newFixture(t)
	u1 := f.addMessage(model.RoleUser, "U1", nil)
	f.addMessage(model.RoleAssistant, "A1", &u1)

	require.NoError(t, f.manager.Delete(context.Background(), f.convID))

	_, err := f.manager.ActiveThread(context.Background(), f.convID)
	assert.Error(t, err)
}
