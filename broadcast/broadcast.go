// Package broadcast fans events out to live connections through the
// session registry. It implements room.Broadcaster.
package broadcast

import (
	"github.com/colorsprint/gameserver/logger"
	"github.com/colorsprint/gameserver/session"
)

type UserBroadcaster struct {
	sessions *session.Registry
}

func NewUserBroadcaster(sessions *session.Registry) *UserBroadcaster {
	return &UserBroadcaster{sessions: sessions}
}

// BroadcastToUsers delivers to every live connection of every listed user
// (a user with several tabs receives the event on each). Send failures are
// logged and skipped; the disconnect path cleans the session up.
func (b *UserBroadcaster) BroadcastToUsers(userIDs []string, event string, payload interface{}) error {
	for _, userID := range userIDs {
		for _, sess := range b.sessions.SessionsByUser(userID) {
			if err := sess.Send(event, payload); err != nil {
				logger.Log.Debugf("Send %s to session %s failed: %v", event, sess.ID, err)
				continue
			}
		}
	}
	return nil
}

func (b *UserBroadcaster) BroadcastToAll(event string, payload interface{}) error {
	for _, sess := range b.sessions.AllSessions() {
		if err := sess.Send(event, payload); err != nil {
			continue
		}
	}
	return nil
}

func (b *UserBroadcaster) SendToUser(userID string, event string, payload interface{}) error {
	for _, sess := range b.sessions.SessionsByUser(userID) {
		if err := sess.Send(event, payload); err != nil {
			continue
		}
	}
	return nil
}
