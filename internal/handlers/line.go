package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/models"
)

// LineBot is the part of the Messaging API client the bridge calls.
type LineBot interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
	GetProfile(userID string) (*messaging_api.UserProfileResponse, error)
}

// SharedList is the server-wide list the bridge reads.
type SharedList interface {
	gateway.Snapshot
	Active() []models.ShoppingItem
}

type LineHandler struct {
	bot      LineBot
	secret   string
	list     SharedList
	gateway  *gateway.Gateway
	fallback string
	log      logging.Logger
}

func NewLineHandler(bot LineBot, secret string, list SharedList, gw *gateway.Gateway, fallbackName string, log logging.Logger) *LineHandler {
	return &LineHandler{
		bot:      bot,
		secret:   secret,
		list:     list,
		gateway:  gw,
		fallback: fallbackName,
		log:      log,
	}
}

func getUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

func (h *LineHandler) HandleWebhook(c echo.Context) error {
	cb, err := webhook.ParseRequest(h.secret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.log.Warn(c.Request().Context(), "invalid LINE signature")
			return c.NoContent(http.StatusBadRequest)
		}
		h.log.Error(c.Request().Context(), "failed to parse LINE request", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			switch message := e.Message.(type) {
			case webhook.TextMessageContent:
				userID := getUserID(e.Source)
				if err := h.handleTextMessage(ctx, e.ReplyToken, userID, message.Text); err != nil {
					h.log.Error(ctx, "failed to handle LINE message", "error", err)
				}
			}
		case webhook.PostbackEvent:
			if err := h.handlePostback(ctx, e.ReplyToken, e.Postback.Data); err != nil {
				h.log.Error(ctx, "failed to handle LINE postback", "error", err)
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type lineCommand int

const (
	cmdNone lineCommand = iota
	cmdAdd
	cmdList
	cmdBuy
	cmdDelete
	cmdHelp
)

var (
	addPattern    = regexp.MustCompile(`^追加[\s　]+["“]?([^"”]+)["”]?$`)
	buyPattern    = regexp.MustCompile(`^購入[\s　]+["“]?([^"”]+)["”]?$`)
	deletePattern = regexp.MustCompile(`^削除[\s　]+["“]?([^"”]+)["”]?$`)
)

// parseCommand maps a chat message to a command and its item name.
// Unrecognised text yields cmdNone and is not answered.
func parseCommand(text string) (lineCommand, string) {
	text = strings.TrimSpace(text)
	switch text {
	case "一覧", "リスト":
		return cmdList, ""
	case "ヘルプ":
		return cmdHelp, ""
	}
	if m := addPattern.FindStringSubmatch(text); m != nil {
		return cmdAdd, strings.TrimSpace(m[1])
	}
	if m := buyPattern.FindStringSubmatch(text); m != nil {
		return cmdBuy, strings.TrimSpace(m[1])
	}
	if m := deletePattern.FindStringSubmatch(text); m != nil {
		return cmdDelete, strings.TrimSpace(m[1])
	}
	return cmdNone, ""
}

func (h *LineHandler) handleTextMessage(ctx context.Context, replyToken, userID, text string) error {
	h.log.Debug(ctx, "received LINE text", "text", text)

	cmd, name := parseCommand(text)
	switch cmd {
	case cmdAdd:
		return h.addItem(ctx, replyToken, userID, name)
	case cmdList:
		return h.showList(replyToken)
	case cmdBuy:
		return h.buyItem(ctx, replyToken, name)
	case cmdDelete:
		return h.askDeleteConfirmation(replyToken, name)
	case cmdHelp:
		return h.showHelp(replyToken)
	}
	return nil
}

func (h *LineHandler) handlePostback(ctx context.Context, replyToken, data string) error {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != "delete" {
		return nil
	}
	if parts[1] != "yes" {
		return h.replyMessage(replyToken, "削除をキャンセルしました。")
	}

	id := parts[2]
	item, ok := h.list.Find(id)
	if !ok {
		return h.replyMessage(replyToken, "そのアイテムは既にリストにありません。")
	}
	if err := h.gateway.Delete(ctx, id, gateway.Confirmed); err != nil {
		h.log.Error(ctx, "failed to delete item", "id", id, "error", err)
		return h.replyMessage(replyToken, gateway.Notice(err))
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🗑️「%s」を削除しました。", item.Text))
}

// creator resolves the LINE display name used as created_by_name.
func (h *LineHandler) creator(userID string) *models.User {
	u := &models.User{ID: "line:" + userID, Name: h.fallback}
	if userID == "" {
		return u
	}
	profile, err := h.bot.GetProfile(userID)
	if err != nil {
		h.log.Warn(context.Background(), "failed to get LINE profile", "error", err)
		return u
	}
	if profile.DisplayName != "" {
		u.Name = profile.DisplayName
	}
	return u
}

func (h *LineHandler) addItem(ctx context.Context, replyToken, userID, name string) error {
	if err := h.gateway.CreateFromPreset(ctx, h.creator(userID), name); err != nil {
		var listed *gateway.AlreadyListedError
		if !errors.As(err, &listed) {
			h.log.Error(ctx, "failed to add item", "error", err)
		}
		return h.replyMessage(replyToken, gateway.Notice(err))
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🛒「%s」を追加しました。", name))
}

func (h *LineHandler) showList(replyToken string) error {
	active := h.list.Active()
	if len(active) == 0 {
		return h.replyMessage(replyToken, "買うものはありません 🎉")
	}

	lines := make([]string, len(active))
	for i, it := range active {
		line := fmt.Sprintf("%d. %s", i+1, it.Text)
		if it.Memo != "" {
			line += fmt.Sprintf("（%s）", it.Memo)
		}
		lines[i] = line
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🛒 買うもの (%d件)\n\n%s", len(active), strings.Join(lines, "\n")))
}

// findActive returns the newest unbought item named name.
func (h *LineHandler) findActive(name string) (models.ShoppingItem, bool) {
	for _, it := range h.list.MatchText(name) {
		if !it.IsCompleted {
			return it, true
		}
	}
	return models.ShoppingItem{}, false
}

func (h *LineHandler) buyItem(ctx context.Context, replyToken, name string) error {
	item, ok := h.findActive(name)
	if !ok {
		return h.replyMessage(replyToken, fmt.Sprintf("「%s」はリストにありません。", name))
	}
	if err := h.gateway.ToggleCompletion(ctx, item.ID); err != nil {
		h.log.Error(ctx, "failed to complete item", "id", item.ID, "error", err)
		return h.replyMessage(replyToken, gateway.Notice(err))
	}
	return h.replyMessage(replyToken, fmt.Sprintf("✅「%s」を購入済みにしました。", name))
}

func (h *LineHandler) askDeleteConfirmation(replyToken, name string) error {
	matches := h.list.MatchText(name)
	if len(matches) == 0 {
		return h.replyMessage(replyToken, fmt.Sprintf("「%s」はリストにありません。", name))
	}
	id := matches[0].ID

	quickReply := &messaging_api.QuickReply{
		Items: []messaging_api.QuickReplyItem{
			{
				Action: &messaging_api.PostbackAction{
					Label:       "はい",
					Data:        fmt.Sprintf("delete:yes:%s", id),
					DisplayText: "はい",
				},
			},
			{
				Action: &messaging_api.PostbackAction{
					Label:       "いいえ",
					Data:        fmt.Sprintf("delete:no:%s", id),
					DisplayText: "いいえ",
				},
			},
		},
	}

	message := &messaging_api.TextMessage{
		Text:       fmt.Sprintf("「%s」%s", name, gateway.DeletePrompt),
		QuickReply: quickReply,
	}

	_, err := h.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{message},
		},
	)
	return err
}

func (h *LineHandler) showHelp(replyToken string) error {
	helpText := `🛒 QuickList 使い方

🆕 追加:
・追加 <品名>
・例: 追加 牛乳

📋 一覧:
・一覧

✅ 購入済みにする:
・購入 <品名>

🗑️ 削除:
・削除 <品名>

❓ ヘルプ:
・ヘルプ`

	return h.replyMessage(replyToken, helpText)
}

func (h *LineHandler) replyMessage(replyToken, text string) error {
	message := &messaging_api.TextMessage{
		Text: text,
	}

	_, err := h.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{message},
		},
	)
	if err != nil {
		h.log.Error(context.Background(), "failed to send LINE reply", "error", err)
	}
	return err
}
