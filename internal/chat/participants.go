// ABOUTME: Resolves the two participant ids of a conversation
// ABOUTME: Tries each known API shape in order; the first extractor that yields a pair wins

package chat

import (
	"encoding/json"
	"sort"
	"strings"
)

// idExtractor pulls a participant pair out of one conversation shape.
type idExtractor struct {
	name    string
	extract func(c *Conversation) (ID, ID, bool)
}

// participantExtractors is ordered by how current the API shape is.
var participantExtractors = []idExtractor{
	{"user objects", fromUserObjects},
	{"flat ids", fromFlatIDs},
	{"participants", fromParticipants},
	{"key scan", fromKeyScan},
}

// ResolveParticipantIDs returns the ids of both participants.
func ResolveParticipantIDs(c *Conversation) (ID, ID, error) {
	id1, id2, _, err := resolveParticipantIDs(c)
	return id1, id2, err
}

// resolveParticipantIDs also reports which extractor matched.
func resolveParticipantIDs(c *Conversation) (ID, ID, string, error) {
	if c == nil {
		return "", "", "", &ValidationError{Reason: "no conversation"}
	}
	for _, ex := range participantExtractors {
		if id1, id2, ok := ex.extract(c); ok {
			return id1, id2, ex.name, nil
		}
	}
	return "", "", "", &ValidationError{
		ConversationID: c.ID,
		Reason:         "cannot determine user identifiers",
	}
}

func pair(a, b ID) (ID, ID, bool) {
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

func fromUserObjects(c *Conversation) (ID, ID, bool) {
	if c.User1 == nil || c.User2 == nil {
		return "", "", false
	}
	return pair(c.User1.ID, c.User2.ID)
}

func fromFlatIDs(c *Conversation) (ID, ID, bool) {
	return pair(c.User1ID, c.User2ID)
}

func fromParticipants(c *Conversation) (ID, ID, bool) {
	var ids []ID
	for _, p := range c.Participants {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
		if len(ids) == 2 {
			return pair(ids[0], ids[1])
		}
	}
	return "", "", false
}

// ownIDKeys name the conversation itself, not a participant.
var ownIDKeys = map[string]bool{
	"id":              true,
	"_id":             true,
	"conversationid":  true,
	"conversation_id": true,
	"chatid":          true,
}

// fromKeyScan is the best-effort fallback: any top-level key containing
// "id" (case-insensitive) with a scalar value, in key order, skipping the
// conversation's own id and message ids.
func fromKeyScan(c *Conversation) (ID, ID, bool) {
	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		lower := strings.ToLower(k)
		if !strings.Contains(lower, "id") || ownIDKeys[lower] || strings.Contains(lower, "message") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var ids []ID
	seen := make(map[ID]bool)
	for _, k := range keys {
		v := ID(scalarString(c.fields[k]))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		ids = append(ids, v)
		if len(ids) == 2 {
			return pair(ids[0], ids[1])
		}
	}
	return "", "", false
}

// participantRefs returns the two participant records, from user objects
// when present and otherwise from the participants array.
func participantRefs(c *Conversation) (*UserRef, *UserRef) {
	if c == nil {
		return nil, nil
	}
	u1, u2 := c.User1, c.User2
	if u1 == nil && len(c.Participants) > 0 {
		u1 = &c.Participants[0]
	}
	if u2 == nil && len(c.Participants) > 1 {
		u2 = &c.Participants[1]
	}
	return u1, u2
}

// NewConversation decodes a single conversation object.
func NewConversation(data []byte) (*Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
