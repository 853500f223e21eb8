package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/ovoronin/pairline/internal/domain"
	"github.com/ovoronin/pairline/internal/gateway"
)

// Callback data values carried by inline buttons.
const (
	cbPublish    = "publish"
	cbBrowse     = "browse"
	cbDeletePost = "delpost"
	cbOpenChat   = "chat:"   // chat:<owner id>
	cbReport     = "report:" // report:<owner id>
	cbEndChat    = "end"
)

// Button labels that double as plain-text commands.
const (
	labelBrowse     = "Browse posts 🔍"
	labelDeletePost = "Delete post 🗑"
	labelEndChat    = "End chat ❌"
)

const welcomeText = `Hi! This is an anonymous chat service.

Press "` + labelBrowse + `" to find someone to talk to.
To publish your own post, just send its text here.

Rules:
1. No harassment or abuse.
2. Do not share personal information.
3. You confirm you are 18 or older.

Use /stop or the button to leave a conversation.`

const helpText = `Commands:
/start - start over
/help - this message
/stop - end the current conversation

How it works:
1. Send any text - it becomes your draft post.
2. Press "Publish" - the post stays up for 5 hours.
3. Other users see it and can open an anonymous chat with you.`

const genericApology = "Something went wrong. Please try again later."

// Router is the chat-facing surface: it maps inbound gateway events to the
// domain operations and sends user-facing replies. Every internal failure
// turns into a detailed log entry plus a generic apology; no event can take
// the processing loop down.
type Router struct {
	users       domain.UserRepository
	posts       domain.PostRepository
	sessions    *domain.SessionManager
	matchmaker  *domain.Matchmaker
	relay       *domain.Relay
	broadcaster *domain.Broadcaster
	stats       *domain.StatsService
	sender      domain.Sender
	oversightID int64
	logger      *slog.Logger

	// drafts are unpublished post texts, by author. Kept in memory only: a
	// draft is a sub-minute UI state, not data.
	mu     sync.Mutex
	drafts map[int64]string
}

// NewRouter creates a Router.
func NewRouter(
	users domain.UserRepository,
	posts domain.PostRepository,
	sessions *domain.SessionManager,
	matchmaker *domain.Matchmaker,
	relay *domain.Relay,
	broadcaster *domain.Broadcaster,
	stats *domain.StatsService,
	sender domain.Sender,
	oversightID int64,
	logger *slog.Logger,
) *Router {
	return &Router{
		users:       users,
		posts:       posts,
		sessions:    sessions,
		matchmaker:  matchmaker,
		relay:       relay,
		broadcaster: broadcaster,
		stats:       stats,
		sender:      sender,
		oversightID: oversightID,
		logger:      logger,
		drafts:      make(map[int64]string),
	}
}

// HandleEvent implements gateway.Handler.
func (r *Router) HandleEvent(ctx context.Context, event *gateway.Event) {
	user := &domain.User{
		ID:          event.SenderID,
		Handle:      event.Handle,
		DisplayName: event.DisplayName,
	}
	if err := r.users.UpsertUser(ctx, user); err != nil {
		// Known-user bookkeeping must not block the interaction itself.
		r.logger.Error("user upsert failed", "user_id", user.ID, "error", err)
	}

	if event.IsCallback() {
		r.handleCallback(ctx, user, event.Callback)
		return
	}
	r.handleMessage(ctx, user, event)
}

func (r *Router) handleCallback(ctx context.Context, user *domain.User, data string) {
	switch {
	case data == cbPublish:
		r.publishDraft(ctx, user)
	case data == cbBrowse:
		r.browse(ctx, user)
	case data == cbDeletePost:
		r.deletePost(ctx, user)
	case data == cbEndChat:
		r.endChat(ctx, user)
	case strings.HasPrefix(data, cbOpenChat):
		ownerID, err := strconv.ParseInt(strings.TrimPrefix(data, cbOpenChat), 10, 64)
		if err != nil {
			r.logger.Warn("malformed chat callback", "user_id", user.ID, "data", data)
			return
		}
		r.openChat(ctx, user, ownerID)
	case strings.HasPrefix(data, cbReport):
		ownerID, err := strconv.ParseInt(strings.TrimPrefix(data, cbReport), 10, 64)
		if err != nil {
			r.logger.Warn("malformed report callback", "user_id", user.ID, "data", data)
			return
		}
		r.reportPost(ctx, user, ownerID)
	default:
		r.logger.Warn("unknown callback", "user_id", user.ID, "data", data)
	}
}

func (r *Router) handleMessage(ctx context.Context, user *domain.User, event *gateway.Event) {
	payload := event.Payload

	if payload.Kind == domain.KindText {
		switch {
		case strings.HasPrefix(payload.Text, "/"):
			r.handleCommand(ctx, user, payload.Text)
			return
		case payload.Text == labelBrowse:
			r.browse(ctx, user)
			return
		case payload.Text == labelDeletePost:
			r.deletePost(ctx, user)
			return
		case payload.Text == labelEndChat:
			r.confirmEnd(ctx, user)
			return
		}
	}

	// An admin in awaiting-payload mode submits the broadcast body as their
	// next message, whatever its kind.
	if r.broadcaster.TakeAwaiting(user.ID) {
		r.runBroadcast(ctx, user, payload)
		return
	}

	if r.relayIfInChat(ctx, user, event.MessageID, payload) {
		return
	}

	if payload.Kind == domain.KindText {
		r.saveDraft(ctx, user, payload.Text)
		return
	}

	r.reply(ctx, user.ID, "Send a text message to create your post.")
}

func (r *Router) handleCommand(ctx context.Context, user *domain.User, text string) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/start":
		r.send(ctx, user.ID, domain.Payload{
			Kind:    domain.KindText,
			Text:    welcomeText,
			Buttons: []domain.Button{{Label: labelBrowse, Data: cbBrowse}},
		})
		r.logger.Info("user started", "user_id", user.ID)
	case "/help":
		r.reply(ctx, user.ID, helpText)
	case "/stop":
		r.confirmEnd(ctx, user)
	case "/cancel":
		if r.broadcaster.Cancel(user.ID) {
			r.reply(ctx, user.ID, "Broadcast cancelled.")
		} else {
			r.reply(ctx, user.ID, "Nothing to cancel.")
		}
	case "/stats":
		r.showStats(ctx, user, fields)
	case "/broadcast":
		r.enterBroadcast(ctx, user, fields)
	default:
		r.reply(ctx, user.ID, "Unknown command. Try /help.")
	}
}

// saveDraft stores the text as the user's draft and offers a publish button.
func (r *Router) saveDraft(ctx context.Context, user *domain.User, text string) {
	r.mu.Lock()
	r.drafts[user.ID] = text
	r.mu.Unlock()

	r.send(ctx, user.ID, domain.Payload{
		Kind:    domain.KindText,
		Text:    text,
		Buttons: []domain.Button{{Label: "✉️ Publish", Data: cbPublish}},
	})
	r.logger.Info("draft created", "user_id", user.ID)
}

func (r *Router) publishDraft(ctx context.Context, user *domain.User) {
	r.mu.Lock()
	text, ok := r.drafts[user.ID]
	delete(r.drafts, user.ID)
	r.mu.Unlock()

	if !ok {
		r.reply(ctx, user.ID, "No draft to publish. Send a text message first.")
		return
	}

	if err := r.posts.PublishPost(ctx, user.ID, text); err != nil {
		r.fail(ctx, user.ID, "publish post", err)
		return
	}
	r.reply(ctx, user.ID, "Your post is live! It will be removed automatically in 5 hours.")
	r.logger.Info("post published", "user_id", user.ID)
}

func (r *Router) deletePost(ctx context.Context, user *domain.User) {
	deleted, err := r.posts.DeletePost(ctx, user.ID)
	if err != nil {
		r.fail(ctx, user.ID, "delete post", err)
		return
	}
	if deleted {
		r.reply(ctx, user.ID, "Your post has been deleted.")
	} else {
		r.reply(ctx, user.ID, "You have no post to delete.")
	}
}

func (r *Router) browse(ctx context.Context, user *domain.User) {
	post, err := r.matchmaker.SelectCandidate(ctx, user.ID)
	if errors.Is(err, domain.ErrNoCandidate) {
		r.reply(ctx, user.ID, "No new posts for you right now. Check back later.")
		return
	}
	if err != nil {
		r.fail(ctx, user.ID, "select candidate", err)
		return
	}

	owner := strconv.FormatInt(post.OwnerID, 10)
	r.send(ctx, user.ID, domain.Payload{
		Kind: domain.KindText,
		Text: post.Text,
		Buttons: []domain.Button{
			{Label: "💬 Chat", Data: cbOpenChat + owner},
			{Label: "⚠️ Report", Data: cbReport + owner},
		},
	})
	r.logger.Info("post shown", "viewer_id", user.ID, "owner_id", post.OwnerID)
}

func (r *Router) openChat(ctx context.Context, user *domain.User, ownerID int64) {
	_, err := r.sessions.Create(ctx, ownerID, user.ID)
	if errors.Is(err, domain.ErrAlreadyInSession) {
		r.reply(ctx, user.ID, "That person is no longer available.")
		return
	}
	if err != nil {
		r.fail(ctx, user.ID, "create session", err)
		return
	}

	notice := "You are connected! Messages are relayed anonymously.\nUse /stop to end the conversation."
	for _, memberID := range [2]int64{ownerID, user.ID} {
		r.send(ctx, memberID, domain.Payload{
			Kind:    domain.KindText,
			Text:    notice,
			Buttons: []domain.Button{{Label: labelEndChat, Data: cbEndChat}},
		})
	}
}

// confirmEnd asks before ending, since ending has a recency cost for both.
func (r *Router) confirmEnd(ctx context.Context, user *domain.User) {
	_, inChat, err := r.sessions.Partner(ctx, user.ID)
	if err != nil {
		r.fail(ctx, user.ID, "check session", err)
		return
	}
	if !inChat {
		r.reply(ctx, user.ID, "You are not in a conversation.")
		return
	}
	r.send(ctx, user.ID, domain.Payload{
		Kind:    domain.KindText,
		Text:    "End this conversation? You will not be matched with this person again for a few hours.",
		Buttons: []domain.Button{{Label: "Yes, end it", Data: cbEndChat}},
	})
}

func (r *Router) endChat(ctx context.Context, user *domain.User) {
	pair, err := r.sessions.End(ctx, user.ID)
	if errors.Is(err, domain.ErrNotInSession) {
		r.reply(ctx, user.ID, "You are not in a conversation.")
		return
	}
	if err != nil {
		r.fail(ctx, user.ID, "end session", err)
		return
	}

	notices := [2]string{"Conversation ended.", "Your partner left the conversation."}
	for i, memberID := range pair {
		r.send(ctx, memberID, domain.Payload{
			Kind:    domain.KindText,
			Text:    notices[i],
			Buttons: r.idleButtons(ctx, memberID),
		})
	}
}

// idleButtons returns the post-conversation actions for a user, including
// post deletion only when they still have one.
func (r *Router) idleButtons(ctx context.Context, userID int64) []domain.Button {
	buttons := []domain.Button{{Label: labelBrowse, Data: cbBrowse}}
	post, err := r.posts.GetPost(ctx, userID)
	if err != nil {
		r.logger.Error("post lookup failed", "user_id", userID, "error", err)
		return buttons
	}
	if post != nil {
		buttons = append(buttons, domain.Button{Label: labelDeletePost, Data: cbDeletePost})
	}
	return buttons
}

// relayIfInChat forwards the payload when the user has a live partner.
// Reports whether the event was consumed by the relay path.
func (r *Router) relayIfInChat(ctx context.Context, user *domain.User, messageID int64, payload domain.Payload) bool {
	if !payload.Supported() {
		_, inChat, err := r.sessions.Partner(ctx, user.ID)
		if err != nil || !inChat {
			return false
		}
		r.reply(ctx, user.ID, "This message type is not supported.")
		return true
	}

	err := r.relay.Forward(ctx, user, messageID, payload)
	if errors.Is(err, domain.ErrNoActivePartner) {
		return false
	}
	if err != nil {
		r.fail(ctx, user.ID, "relay message", err)
		return true
	}
	return true
}

func (r *Router) reportPost(ctx context.Context, user *domain.User, ownerID int64) {
	r.logger.Warn("post reported", "reporter_id", user.ID, "owner_id", ownerID)
	notice := fmt.Sprintf("Report: user %d flagged a post by user %d", user.ID, ownerID)
	if _, err := r.sender.Send(ctx, r.oversightID, domain.TextPayload(notice)); err != nil {
		r.logger.Error("report notice failed", "error", err)
	}
	r.reply(ctx, user.ID, "Thanks, the report has been recorded.")
}

func (r *Router) showStats(ctx context.Context, user *domain.User, fields []string) {
	if len(fields) < 2 || r.broadcaster.VerifyToken(fields[1]) != nil {
		r.reply(ctx, user.ID, "Invalid access token.")
		return
	}

	snapshot, err := r.stats.Snapshot(ctx)
	if err != nil {
		r.fail(ctx, user.ID, "stats snapshot", err)
		return
	}
	r.reply(ctx, user.ID, fmt.Sprintf(
		"Service stats:\n\nUsers: %d\nActive chats: %d\nActive posts: %d\nPosts in last 24h: %d",
		snapshot.UserCount,
		snapshot.ActiveSessionCount,
		snapshot.ActivePostCount,
		snapshot.PostsLast24h,
	))
}

func (r *Router) enterBroadcast(ctx context.Context, user *domain.User, fields []string) {
	if len(fields) < 2 {
		r.reply(ctx, user.ID, "Invalid access token.")
		return
	}
	if err := r.broadcaster.Enter(user.ID, fields[1]); err != nil {
		r.reply(ctx, user.ID, "Invalid access token.")
		return
	}
	r.reply(ctx, user.ID, "Broadcast mode active. Send the message to deliver to all users.\nSend /cancel to abort.")
}

func (r *Router) runBroadcast(ctx context.Context, admin *domain.User, payload domain.Payload) {
	if !payload.Supported() {
		r.reply(ctx, admin.ID, "This message type cannot be broadcast.")
		return
	}
	r.reply(ctx, admin.ID, "Starting broadcast, this may take a while...")

	// The fan-out paces itself and can outlive this event; it runs on its
	// own goroutine so the admin's shard keeps serving other events.
	go func() {
		report := r.broadcaster.Run(ctx, payload)
		r.reply(ctx, admin.ID, fmt.Sprintf(
			"Broadcast finished.\n\nRecipients: %d\nDelivered: %d\nFailed: %d\nDelivery rate: %.1f%%",
			report.Total,
			report.Success,
			report.Failure,
			report.SuccessPercentage(),
		))
	}()
}

// fail logs the detailed error and sends the generic apology.
func (r *Router) fail(ctx context.Context, userID int64, op string, err error) {
	r.logger.Error(op+" failed", "user_id", userID, "error", err)
	r.reply(ctx, userID, genericApology)
}

func (r *Router) reply(ctx context.Context, userID int64, text string) {
	r.send(ctx, userID, domain.TextPayload(text))
}

func (r *Router) send(ctx context.Context, userID int64, payload domain.Payload) {
	if _, err := r.sender.Send(ctx, userID, payload); err != nil {
		r.logger.Warn("send failed", "user_id", userID, "error", err)
	}
}
