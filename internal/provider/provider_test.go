package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kivu-auth/kivu_auth/internal/identity"
	"github.com/kivu-auth/kivu_auth/internal/notification"
	"github.com/kivu-auth/kivu_auth/internal/storage"
)

// recordingNotifier captures messages so tests can read verification
// codes out of them.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, message notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordingNotifier) last() (notification.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return notification.Message{}, false
	}
	return n.messages[len(n.messages)-1], true
}

// lastCode extracts the 6-digit code from the most recent message.
func (n *recordingNotifier) lastCode() string {
	msg, ok := n.last()
	if !ok {
		return ""
	}
	i := strings.LastIndexByte(msg.Body, ' ')
	if i < 0 {
		return ""
	}
	return msg.Body[i+1:]
}

// testDeps builds isolated provider dependencies: seeded users, memory
// scopes and a recording notifier.
func testDeps(duration time.Duration) (Deps, *recordingNotifier) {
	notifier := &recordingNotifier{}
	deps := Deps{
		Repo: identity.NewSeededRepository(),
		Scopes: storage.Scopes{
			Durable:   storage.NewMemoryScope(),
			Ephemeral: storage.NewMemoryScope(),
		},
		Notifier:        notifier,
		SessionDuration: duration,
	}
	return deps, notifier
}

func scopeHas(scope storage.Scope, key string) bool {
	_, ok, _ := scope.Get(context.Background(), key)
	return ok
}
