package routing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hybridz/telegram-fanout/internal/telegram"
)

// Source is the normalized category an update originates from.
type Source string

// Known origin sources.
const (
	SourcePrivateChat     Source = "PrivateChat"
	SourceChannel         Source = "Channel"
	SourceGroup           Source = "Group"
	SourceSuperGroup      Source = "SuperGroup"
	SourceBusinessAccount Source = "BusinessAccount"
	SourceInlineMode      Source = "InlineMode"
	SourcePayment         Source = "Payment"
	SourcePoll            Source = "Poll"
	SourceUnknown         Source = "Unknown"
)

var allSources = []Source{
	SourcePrivateChat, SourceChannel, SourceGroup, SourceSuperGroup,
	SourceBusinessAccount, SourceInlineMode, SourcePayment, SourcePoll,
	SourceUnknown,
}

// ParseSource resolves a source name from configuration. PascalCase and
// snake_case spellings are accepted, case-insensitively.
func ParseSource(s string) (Source, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for _, src := range allSources {
		if strings.ToLower(string(src)) == key {
			return src, nil
		}
	}
	return SourceUnknown, fmt.Errorf("unknown source %q", s)
}

// Origin anchors an update for routing: where it came from and which entity
// it belongs to. FromID is 0 when the update has no meaningful anchor.
type Origin struct {
	Source Source
	FromID int64
}

func (o Origin) String() string {
	return fmt.Sprintf("%s FROM %d", o.Source, o.FromID)
}

// Classify derives the routing origin for an update. It never fails: kinds
// without a recognised anchor classify as (Unknown, 0) and simply match no
// module downstream.
func Classify(u *telegram.Update) Origin {
	switch {
	case u.Message != nil:
		return chatOrigin(u.Message.Chat)
	case u.EditedMessage != nil:
		return chatOrigin(u.EditedMessage.Chat)

	case u.ChannelPost != nil:
		return Origin{SourceChannel, u.ChannelPost.Chat.ID}
	case u.EditedChannelPost != nil:
		return Origin{SourceChannel, u.EditedChannelPost.Chat.ID}

	case u.BusinessConnection != nil:
		return Origin{SourceBusinessAccount, u.BusinessConnection.UserChatID}
	case u.BusinessMessage != nil:
		return Origin{SourceBusinessAccount, u.BusinessMessage.Chat.ID}
	case u.EditedBusinessMessage != nil:
		return Origin{SourceBusinessAccount, u.EditedBusinessMessage.Chat.ID}
	case u.DeletedBusinessMessages != nil:
		return Origin{SourceBusinessAccount, u.DeletedBusinessMessages.Chat.ID}

	case u.MessageReaction != nil:
		return chatOrigin(u.MessageReaction.Chat)
	case u.MessageReactionCount != nil:
		return chatOrigin(u.MessageReactionCount.Chat)

	case u.InlineQuery != nil:
		return Origin{SourceInlineMode, u.InlineQuery.From.ID}
	case u.ChosenInlineResult != nil:
		return Origin{SourceInlineMode, u.ChosenInlineResult.From.ID}

	case u.CallbackQuery != nil:
		// The originating message can be missing (expired or inaccessible);
		// without it there is no chat to anchor on.
		if u.CallbackQuery.Message == nil {
			return Origin{SourceUnknown, 0}
		}
		return chatOrigin(u.CallbackQuery.Message.Chat)

	case u.ShippingQuery != nil:
		return Origin{SourcePayment, u.ShippingQuery.From.ID}
	case u.PreCheckoutQuery != nil:
		return Origin{SourcePayment, u.PreCheckoutQuery.From.ID}
	case u.PurchasedPaidMedia != nil:
		return Origin{SourcePayment, u.PurchasedPaidMedia.From.ID}

	case u.Poll != nil:
		return Origin{SourcePoll, parsePollID(u.Poll.ID)}
	case u.PollAnswer != nil:
		return Origin{SourcePoll, parsePollID(u.PollAnswer.PollID)}

	case u.MyChatMember != nil:
		return chatOrigin(u.MyChatMember.Chat)
	case u.ChatMember != nil:
		return chatOrigin(u.ChatMember.Chat)
	case u.ChatJoinRequest != nil:
		return chatOrigin(u.ChatJoinRequest.Chat)
	case u.ChatBoost != nil:
		return chatOrigin(u.ChatBoost.Chat)
	case u.RemovedChatBoost != nil:
		return chatOrigin(u.RemovedChatBoost.Chat)

	default:
		return Origin{SourceUnknown, 0}
	}
}

// chatOrigin maps a conversation's own sub-type to a source.
func chatOrigin(chat telegram.Chat) Origin {
	var src Source
	switch chat.Type {
	case "private":
		src = SourcePrivateChat
	case "group":
		src = SourceGroup
	case "supergroup":
		src = SourceSuperGroup
	case "channel":
		src = SourceChannel
	default:
		src = SourceUnknown
	}
	return Origin{src, chat.ID}
}

// parsePollID converts the Bot API's string poll id; ids that do not parse
// degrade to the 0 sentinel.
func parsePollID(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
