package telegram

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bot API update types, trimmed to the fields needed for routing. The full
// payload is preserved in Update.Raw and forwarded to consumers verbatim.

// Update is one inbound occurrence from the Bot API. Exactly one of the kind
// pointers is set per update.
type Update struct {
	ID int64 `json:"update_id"`

	Message                 *Message                     `json:"message,omitempty"`
	EditedMessage           *Message                     `json:"edited_message,omitempty"`
	ChannelPost             *Message                     `json:"channel_post,omitempty"`
	EditedChannelPost       *Message                     `json:"edited_channel_post,omitempty"`
	BusinessConnection      *BusinessConnection          `json:"business_connection,omitempty"`
	BusinessMessage         *Message                     `json:"business_message,omitempty"`
	EditedBusinessMessage   *Message                     `json:"edited_business_message,omitempty"`
	DeletedBusinessMessages *BusinessMessagesDeleted     `json:"deleted_business_messages,omitempty"`
	MessageReaction         *MessageReactionUpdated      `json:"message_reaction,omitempty"`
	MessageReactionCount    *MessageReactionCountUpdated `json:"message_reaction_count,omitempty"`
	InlineQuery             *InlineQuery                 `json:"inline_query,omitempty"`
	ChosenInlineResult      *ChosenInlineResult          `json:"chosen_inline_result,omitempty"`
	CallbackQuery           *CallbackQuery               `json:"callback_query,omitempty"`
	ShippingQuery           *ShippingQuery               `json:"shipping_query,omitempty"`
	PreCheckoutQuery        *PreCheckoutQuery            `json:"pre_checkout_query,omitempty"`
	PurchasedPaidMedia      *PaidMediaPurchased          `json:"purchased_paid_media,omitempty"`
	Poll                    *Poll                        `json:"poll,omitempty"`
	PollAnswer              *PollAnswer                  `json:"poll_answer,omitempty"`
	MyChatMember            *ChatMemberUpdated           `json:"my_chat_member,omitempty"`
	ChatMember              *ChatMemberUpdated           `json:"chat_member,omitempty"`
	ChatJoinRequest         *ChatJoinRequest             `json:"chat_join_request,omitempty"`
	ChatBoost               *ChatBoostUpdated            `json:"chat_boost,omitempty"`
	RemovedChatBoost        *ChatBoostRemoved            `json:"removed_chat_boost,omitempty"`

	// Raw is the update exactly as received from the Bot API. Set by
	// Client.GetUpdates; forwarded unmodified in the dispatch envelope.
	Raw json.RawMessage `json:"-"`
}

// Chat is a Telegram conversation.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"` // "private", "group", "supergroup", "channel"
	Title string `json:"title,omitempty"`
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Message is a message in any kind of chat.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date,omitempty"`
	Text      string `json:"text,omitempty"`
}

// BusinessConnection is a bot's connection to a business account.
type BusinessConnection struct {
	ID         string `json:"id"`
	User       User   `json:"user"`
	UserChatID int64  `json:"user_chat_id"`
}

// BusinessMessagesDeleted notifies about deleted business-account messages.
type BusinessMessagesDeleted struct {
	BusinessConnectionID string  `json:"business_connection_id"`
	Chat                 Chat    `json:"chat"`
	MessageIDs           []int64 `json:"message_ids,omitempty"`
}

// MessageReactionUpdated is a reaction change on a message.
type MessageReactionUpdated struct {
	Chat      Chat  `json:"chat"`
	MessageID int64 `json:"message_id"`
	User      *User `json:"user,omitempty"`
	Date      int64 `json:"date,omitempty"`
}

// MessageReactionCountUpdated is an anonymous reaction-count change.
type MessageReactionCountUpdated struct {
	Chat      Chat  `json:"chat"`
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date,omitempty"`
}

// InlineQuery is an incoming inline query.
type InlineQuery struct {
	ID    string `json:"id"`
	From  User   `json:"from"`
	Query string `json:"query,omitempty"`
}

// ChosenInlineResult is an inline result the user picked.
type ChosenInlineResult struct {
	ResultID string `json:"result_id"`
	From     User   `json:"from"`
}

// CallbackQuery is a callback from an inline keyboard button. Message may be
// absent when the originating message is too old.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// ShippingQuery is an incoming shipping query.
type ShippingQuery struct {
	ID   string `json:"id"`
	From User   `json:"from"`
}

// PreCheckoutQuery is an incoming pre-checkout query.
type PreCheckoutQuery struct {
	ID   string `json:"id"`
	From User   `json:"from"`
}

// PaidMediaPurchased notifies about a paid media purchase.
type PaidMediaPurchased struct {
	From User `json:"from"`
}

// Poll contains information about a poll.
type Poll struct {
	ID       string `json:"id"`
	Question string `json:"question,omitempty"`
}

// PollAnswer is a changed answer in a non-anonymous poll.
type PollAnswer struct {
	PollID string `json:"poll_id"`
	User   *User  `json:"user,omitempty"`
}

// ChatMemberUpdated is a change in a chat member's status.
type ChatMemberUpdated struct {
	Chat Chat `json:"chat"`
	From User `json:"from"`
}

// ChatJoinRequest is a request to join a chat.
type ChatJoinRequest struct {
	Chat Chat `json:"chat"`
	From User `json:"from"`
}

// ChatBoostUpdated is an added or changed chat boost.
type ChatBoostUpdated struct {
	Chat Chat `json:"chat"`
}

// ChatBoostRemoved is a removed chat boost.
type ChatBoostRemoved struct {
	Chat Chat `json:"chat"`
}

// UpdateType identifies which kind of payload an update carries. Values are
// PascalCase; this is also the spelling used in the dispatch envelope.
type UpdateType string

// Known update types.
const (
	TypeMessage                 UpdateType = "Message"
	TypeEditedMessage           UpdateType = "EditedMessage"
	TypeChannelPost             UpdateType = "ChannelPost"
	TypeEditedChannelPost       UpdateType = "EditedChannelPost"
	TypeBusinessConnection      UpdateType = "BusinessConnection"
	TypeBusinessMessage         UpdateType = "BusinessMessage"
	TypeEditedBusinessMessage   UpdateType = "EditedBusinessMessage"
	TypeDeletedBusinessMessages UpdateType = "DeletedBusinessMessages"
	TypeMessageReaction         UpdateType = "MessageReaction"
	TypeMessageReactionCount    UpdateType = "MessageReactionCount"
	TypeInlineQuery             UpdateType = "InlineQuery"
	TypeChosenInlineResult      UpdateType = "ChosenInlineResult"
	TypeCallbackQuery           UpdateType = "CallbackQuery"
	TypeShippingQuery           UpdateType = "ShippingQuery"
	TypePreCheckoutQuery        UpdateType = "PreCheckoutQuery"
	TypePurchasedPaidMedia      UpdateType = "PurchasedPaidMedia"
	TypePoll                    UpdateType = "Poll"
	TypePollAnswer              UpdateType = "PollAnswer"
	TypeMyChatMember            UpdateType = "MyChatMember"
	TypeChatMember              UpdateType = "ChatMember"
	TypeChatJoinRequest         UpdateType = "ChatJoinRequest"
	TypeChatBoost               UpdateType = "ChatBoost"
	TypeRemovedChatBoost        UpdateType = "RemovedChatBoost"
	TypeUnknown                 UpdateType = "Unknown"
)

// Kind reports which payload the update carries, TypeUnknown if none is set.
func (u *Update) Kind() UpdateType {
	switch {
	case u.Message != nil:
		return TypeMessage
	case u.EditedMessage != nil:
		return TypeEditedMessage
	case u.ChannelPost != nil:
		return TypeChannelPost
	case u.EditedChannelPost != nil:
		return TypeEditedChannelPost
	case u.BusinessConnection != nil:
		return TypeBusinessConnection
	case u.BusinessMessage != nil:
		return TypeBusinessMessage
	case u.EditedBusinessMessage != nil:
		return TypeEditedBusinessMessage
	case u.DeletedBusinessMessages != nil:
		return TypeDeletedBusinessMessages
	case u.MessageReaction != nil:
		return TypeMessageReaction
	case u.MessageReactionCount != nil:
		return TypeMessageReactionCount
	case u.InlineQuery != nil:
		return TypeInlineQuery
	case u.ChosenInlineResult != nil:
		return TypeChosenInlineResult
	case u.CallbackQuery != nil:
		return TypeCallbackQuery
	case u.ShippingQuery != nil:
		return TypeShippingQuery
	case u.PreCheckoutQuery != nil:
		return TypePreCheckoutQuery
	case u.PurchasedPaidMedia != nil:
		return TypePurchasedPaidMedia
	case u.Poll != nil:
		return TypePoll
	case u.PollAnswer != nil:
		return TypePollAnswer
	case u.MyChatMember != nil:
		return TypeMyChatMember
	case u.ChatMember != nil:
		return TypeChatMember
	case u.ChatJoinRequest != nil:
		return TypeChatJoinRequest
	case u.ChatBoost != nil:
		return TypeChatBoost
	case u.RemovedChatBoost != nil:
		return TypeRemovedChatBoost
	default:
		return TypeUnknown
	}
}

// apiName is the Bot API wire spelling used in the allowed_updates parameter.
func (t UpdateType) apiName() string {
	return toSnake(string(t))
}

// ParseUpdateType resolves an update type name. Both PascalCase and
// snake_case spellings are accepted, case-insensitively.
func ParseUpdateType(s string) (UpdateType, error) {
	key := normalizeName(s)
	for _, t := range allTypes {
		if normalizeName(string(t)) == key {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown update type %q", s)
}

var allTypes = []UpdateType{
	TypeMessage, TypeEditedMessage, TypeChannelPost, TypeEditedChannelPost,
	TypeBusinessConnection, TypeBusinessMessage, TypeEditedBusinessMessage,
	TypeDeletedBusinessMessages, TypeMessageReaction, TypeMessageReactionCount,
	TypeInlineQuery, TypeChosenInlineResult, TypeCallbackQuery,
	TypeShippingQuery, TypePreCheckoutQuery, TypePurchasedPaidMedia,
	TypePoll, TypePollAnswer, TypeMyChatMember, TypeChatMember,
	TypeChatJoinRequest, TypeChatBoost, TypeRemovedChatBoost, TypeUnknown,
}

// normalizeName strips underscores and lowercases so that "callback_query",
// "CallbackQuery" and "callbackquery" all compare equal.
func normalizeName(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
}

// toSnake converts PascalCase to snake_case ("CallbackQuery" → "callback_query").
func toSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
