package telegram

import "context"

// Notifier binds a client to the owner's chat so callers only need a message.
type Notifier struct {
	client *Client
	chatID int64
}

func NewNotifier(client *Client, chatID int64) *Notifier {
	return &Notifier{client: client, chatID: chatID}
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	return n.client.SendMessage(ctx, n.chatID, text)
}
