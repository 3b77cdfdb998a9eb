// Package conversation manages branching message trees. Messages form a
// forest under each conversation: editing a question creates a sibling
// branch instead of overwriting history.
package conversation

import (
	"context"
	"fmt"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
)

// Store is the persistence surface the manager needs.
type Store interface {
	store.ConversationStore
	store.MessageStore
}

// Manager walks and annotates conversation trees.
type Manager struct {
	store Store
}

// NewManager creates a conversation manager.
func NewManager(s Store) *Manager {
	return &Manager{store: s}
}

// siblingCache memoizes sibling lookups during a single tree walk, keyed by
// (parent, role). Every message on a thread shares its sibling set with any
// other message of the same parent and role, so one query serves them all.
type siblingCache struct {
	store store.MessageStore
	data  map[string][]model.Message
}

func newSiblingCache(s store.MessageStore) *siblingCache {
	return &siblingCache{store: s, data: make(map[string][]model.Message)}
}

func (c *siblingCache) get(ctx context.Context, conversationID string, parentID *string, role model.Role) ([]model.Message, error) {
	key := "root"
	if parentID != nil {
		key = *parentID
	}
	key += "|" + string(role)

	if msgs, ok := c.data[key]; ok {
		return msgs, nil
	}
	msgs, err := c.store.Siblings(ctx, conversationID, parentID, role)
	if err != nil {
		return nil, err
	}
	c.data[key] = msgs
	return msgs, nil
}

// annotate wraps msg with its 1-based position among siblings.
func (c *siblingCache) annotate(ctx context.Context, msg model.Message) (model.ThreadMessage, error) {
	siblings, err := c.get(ctx, msg.ConversationID, msg.ParentID, msg.Role)
	if err != nil {
		return model.ThreadMessage{}, err
	}

	tm := model.ThreadMessage{Message: msg, SiblingCount: len(siblings)}
	for i, sib := range siblings {
		if sib.ID == msg.ID {
			tm.SiblingIndex = i + 1
			break
		}
	}
	return tm, nil
}

// ActiveThread returns the most recent linear path through the tree: the
// latest root message, then at each step the most recently created child of
// the opposite role.
func (m *Manager) ActiveThread(ctx context.Context, conversationID string) ([]model.ThreadMessage, error) {
	if _, err := m.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	cache := newSiblingCache(m.store)

	roots, err := cache.get(ctx, conversationID, nil, model.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("load roots: %w", err)
	}
	if len(roots) == 0 {
		return nil, nil
	}

	var thread []model.ThreadMessage
	current := roots[len(roots)-1]
	for {
		tm, err := cache.annotate(ctx, current)
		if err != nil {
			return nil, err
		}
		thread = append(thread, tm)

		children, err := cache.get(ctx, conversationID, &current.ID, current.Role.Opposite())
		if err != nil {
			return nil, fmt.Errorf("load children: %w", err)
		}
		if len(children) == 0 {
			return thread, nil
		}
		current = children[len(children)-1]
	}
}

// ThreadFrom returns the forward walk starting at the given message: the
// message itself, then at each step the most recently created opposite-role
// child. Switching branches in a UI is a ThreadFrom on the selected sibling.
func (m *Manager) ThreadFrom(ctx context.Context, conversationID, messageID string) ([]model.ThreadMessage, error) {
	target, err := m.store.GetMessage(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}

	cache := newSiblingCache(m.store)

	tm, err := cache.annotate(ctx, *target)
	if err != nil {
		return nil, err
	}
	thread := []model.ThreadMessage{tm}

	// Descend along the most recent opposite-role children.
	tail := *target
	for {
		children, err := cache.get(ctx, conversationID, &tail.ID, tail.Role.Opposite())
		if err != nil {
			return nil, fmt.Errorf("load children: %w", err)
		}
		if len(children) == 0 {
			return thread, nil
		}
		tail = children[len(children)-1]
		tm, err := cache.annotate(ctx, tail)
		if err != nil {
			return nil, err
		}
		thread = append(thread, tm)
	}
}

// Siblings returns the alternative versions of a message, annotated with
// their positions.
func (m *Manager) Siblings(ctx context.Context, conversationID, messageID string) ([]model.ThreadMessage, error) {
	target, err := m.store.GetMessage(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}

	siblings, err := m.store.Siblings(ctx, conversationID, target.ParentID, target.Role)
	if err != nil {
		return nil, err
	}

	out := make([]model.ThreadMessage, len(siblings))
	for i, sib := range siblings {
		out[i] = model.ThreadMessage{
			Message:      sib,
			SiblingCount: len(siblings),
			SiblingIndex: i + 1,
		}
	}
	return out, nil
}

// SiblingRef resolves the annotated position of a single message without
// walking the whole tree.
func (m *Manager) SiblingRef(ctx context.Context, msg model.Message) (model.SavedMessageRef, error) {
	cache := newSiblingCache(m.store)
	tm, err := cache.annotate(ctx, msg)
	if err != nil {
		return model.SavedMessageRef{}, err
	}
	return model.SavedMessageRef{
		ID:           msg.ID,
		ParentID:     msg.ParentID,
		SiblingCount: tm.SiblingCount,
		SiblingIndex: tm.SiblingIndex,
	}, nil
}

// ActiveTail returns the last message of the active thread, or nil for an
// empty conversation.
func (m *Manager) ActiveTail(ctx context.Context, conversationID string) (*model.Message, error) {
	thread, err := m.ActiveThread(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(thread) == 0 {
		return nil, nil
	}
	tail := thread[len(thread)-1].Message
	return &tail, nil
}

// Ancestors returns up to limit ancestors of the message with the given
// parent pointer, nearest first.
func (m *Manager) Ancestors(ctx context.Context, conversationID string, parentID *string, limit int) ([]model.Message, error) {
	var out []model.Message
	for parentID != nil && len(out) < limit {
		msg, err := m.store.GetMessage(ctx, conversationID, *parentID)
		if err != nil {
			return nil, fmt.Errorf("load ancestor: %w", err)
		}
		out = append(out, *msg)
		parentID = msg.ParentID
	}
	return out, nil
}

// Delete removes a conversation with its entire message tree.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	return m.store.DeleteConversation(ctx, conversationID)
}

// List returns all conversations, most recently active first.
func (m *Manager) List(ctx context.Context) ([]model.Conversation, error) {
	return m.store.ListConversations(ctx)
}
