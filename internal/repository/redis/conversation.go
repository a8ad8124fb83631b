package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"eventsponsor.messaging/internal/model"
)

// createScript writes a conversation only if its hash does not exist yet and
// registers it in every index in the same step.
//
// KEYS: chat, index, pair, user A, user B
// ARGV: createdAt, updatedAt, id, field, value, ...
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 4))
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[3])
redis.call('ZADD', KEYS[3], ARGV[1], ARGV[3])
redis.call('ZADD', KEYS[4], ARGV[2], ARGV[3])
redis.call('ZADD', KEYS[5], ARGV[2], ARGV[3])
return 1
`)

// deleteScript removes a conversation hash and its entries in every index.
//
// KEYS: chat, messages, index, pair, user A, user B
// ARGV: id
var deleteScript = redis.NewScript(`
redis.call('DEL', KEYS[1], KEYS[2])
for i = 3, #KEYS do
	redis.call('ZREM', KEYS[i], ARGV[1])
end
return 1
`)

// hsetIfExistsScript is a partial update that never creates a stray hash.
var hsetIfExistsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// incrUnreadScript increments a counter and stamps the activity field.
// ARGV: unread field, activity field, at
var incrUnreadScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
return 1
`)

// ConversationRepo stores conversations as Redis hashes with sorted-set indexes.
type ConversationRepo struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewConversationRepo creates a Redis-backed conversation repository.
func NewConversationRepo(client redis.UniversalClient) *ConversationRepo {
	return &ConversationRepo{
		client: client,
		logger: slog.Default(),
	}
}

func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) (bool, error) {
	ids := conv.ParticipantIDs()
	if len(ids) != 2 {
		return false, fmt.Errorf("conversation %s has %d participants, want 2", conv.ID, len(ids))
	}

	fields, err := encodeConversation(conv)
	if err != nil {
		return false, err
	}

	keys := []string{
		BuildChatKey(conv.ID),
		ChatIndexKey,
		BuildPairKey(ids[0], ids[1]),
		BuildUserChatsKey(ids[0]),
		BuildUserChatsKey(ids[1]),
	}
	args := append([]interface{}{conv.CreatedAt, conv.UpdatedAt, conv.ID}, fields...)

	written, err := createScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	conv, err := r.GetByID(ctx, id)
	if err != nil || conv == nil {
		return err
	}

	keys := []string{BuildChatKey(id), BuildChatMessagesKey(id), ChatIndexKey}
	if ids := conv.ParticipantIDs(); len(ids) == 2 {
		keys = append(keys,
			BuildPairKey(ids[0], ids[1]),
			BuildUserChatsKey(ids[0]),
			BuildUserChatsKey(ids[1]),
		)
	}
	return deleteScript.Run(ctx, r.client, keys, id).Err()
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	data, err := r.client.HGetAll(ctx, BuildChatKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeConversation(data)
}

func (r *ConversationRepo) ListAll(ctx context.Context) ([]model.Conversation, error) {
	return r.listFromIndex(ctx, ChatIndexKey)
}

func (r *ConversationRepo) ListByPair(ctx context.Context, a, b string) ([]model.Conversation, error) {
	return r.listFromIndex(ctx, BuildPairKey(a, b))
}

func (r *ConversationRepo) ListByParticipant(ctx context.Context, userID string) ([]model.Conversation, error) {
	return r.listFromIndex(ctx, BuildUserChatsKey(userID))
}

// listFromIndex loads every conversation named in a sorted-set index, ascending by
// score, with one pipelined round trip for the hashes.
func (r *ConversationRepo) listFromIndex(ctx context.Context, indexKey string) ([]model.Conversation, error) {
	ids, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Conversation{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, BuildChatKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	conversations := make([]model.Conversation, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		conv, err := decodeConversation(data)
		if err != nil {
			r.logger.Warn("Skipping undecodable conversation", "id", ids[i], "error", err)
			continue
		}
		conversations = append(conversations, *conv)
	}
	return conversations, nil
}

func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, id string, last model.LastMessage, updatedAt int64) error {
	data, err := json.Marshal(last)
	if err != nil {
		return err
	}

	ok, err := hsetIfExistsScript.Run(ctx, r.client, []string{BuildChatKey(id)},
		fieldLastMessage, string(data), fieldUpdatedAt, updatedAt).Int()
	if err != nil || ok == 0 {
		return err
	}

	// keep the per-user recency indexes in step with updatedAt
	conv, err := r.GetByID(ctx, id)
	if err != nil || conv == nil {
		return err
	}
	pipe := r.client.Pipeline()
	for _, uid := range conv.ParticipantIDs() {
		pipe.ZAdd(ctx, BuildUserChatsKey(uid), redis.Z{Score: float64(updatedAt), Member: id})
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *ConversationRepo) IncrementUnread(ctx context.Context, id, userID string, at int64) error {
	return incrUnreadScript.Run(ctx, r.client, []string{BuildChatKey(id)},
		unreadField(userID), activityField(userID), at).Err()
}

func (r *ConversationRepo) SetUnread(ctx context.Context, id, userID string, n int) error {
	return hsetIfExistsScript.Run(ctx, r.client, []string{BuildChatKey(id)},
		unreadField(userID), n).Err()
}

func (r *ConversationRepo) SetArchived(ctx context.Context, id, userID string, archived bool) error {
	return hsetIfExistsScript.Run(ctx, r.client, []string{BuildChatKey(id)},
		archivedField(userID), boolString(archived)).Err()
}

func (r *ConversationRepo) UpdateParticipant(ctx context.Context, id string, p model.Participant) error {
	exists, err := r.client.HExists(ctx, BuildChatKey(id), participantField(p.ID)).Result()
	if err != nil || !exists {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, BuildChatKey(id), participantField(p.ID), string(data)).Err()
}

// encodeConversation flattens conv into HSET field/value pairs. Empty optional
// fields are left out.
func encodeConversation(conv *model.Conversation) ([]interface{}, error) {
	tags, err := json.Marshal(conv.Tags)
	if err != nil {
		return nil, err
	}

	fields := []interface{}{
		fieldID, conv.ID,
		fieldPriority, string(conv.Priority),
		fieldTags, string(tags),
		fieldCreatedAt, conv.CreatedAt,
		fieldUpdatedAt, conv.UpdatedAt,
	}
	if conv.CorrelationID != "" {
		fields = append(fields, fieldCorrelationID, conv.CorrelationID)
	}
	if conv.SubjectTitle != "" {
		fields = append(fields, fieldSubjectTitle, conv.SubjectTitle)
	}
	if conv.SubjectID != "" {
		fields = append(fields, fieldSubjectID, conv.SubjectID)
	}
	if conv.LastMessage != nil {
		last, err := json.Marshal(conv.LastMessage)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fieldLastMessage, string(last))
	}

	for uid, p := range conv.Participants {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		fields = append(fields,
			participantField(uid), string(data),
			unreadField(uid), conv.UnreadCount[uid],
			archivedField(uid), boolString(conv.Archived[uid]),
		)
		if at, ok := conv.LastActivityAt[uid]; ok {
			fields = append(fields, activityField(uid), at)
		}
	}
	return fields, nil
}

func decodeConversation(data map[string]string) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:            data[fieldID],
		CorrelationID: data[fieldCorrelationID],
		SubjectTitle:  data[fieldSubjectTitle],
		SubjectID:     data[fieldSubjectID],
		Priority:      model.Priority(data[fieldPriority]),
		CreatedAt:     parseInt64(data[fieldCreatedAt]),
		UpdatedAt:     parseInt64(data[fieldUpdatedAt]),
		Participants:  make(map[string]model.Participant),
		UnreadCount:   make(map[string]int),
		Archived:      make(map[string]bool),
	}

	if raw := data[fieldTags]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &conv.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if raw := data[fieldLastMessage]; raw != "" {
		var last model.LastMessage
		if err := json.Unmarshal([]byte(raw), &last); err != nil {
			return nil, fmt.Errorf("decode last message: %w", err)
		}
		conv.LastMessage = &last
	}

	for field, value := range data {
		if uid, ok := splitField(field, prefixParticipant); ok {
			var p model.Participant
			if err := json.Unmarshal([]byte(value), &p); err != nil {
				return nil, fmt.Errorf("decode participant %s: %w", uid, err)
			}
			conv.Participants[uid] = p
		} else if uid, ok := splitField(field, prefixUnread); ok {
			conv.UnreadCount[uid] = int(parseInt64(value))
		} else if uid, ok := splitField(field, prefixArchived); ok {
			conv.Archived[uid] = value == "1"
		} else if uid, ok := splitField(field, prefixActivity); ok {
			if conv.LastActivityAt == nil {
				conv.LastActivityAt = make(map[string]int64)
			}
			conv.LastActivityAt[uid] = parseInt64(value)
		}
	}
	return conv, nil
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
