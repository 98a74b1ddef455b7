package chatstore

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	conversationIDPrefix = "conv_"
	messageIDPrefix      = "msg_"
)

// IDGenerator issues conversation and message ids. Message ids are ULIDs so
// that ids created in the same millisecond still sort in creation order.
type IDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *IDGenerator) ConversationID() string {
	return conversationIDPrefix + uuid.NewString()
}

func (g *IDGenerator) MessageID(at time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), g.entropy)
	if err != nil {
		// monotonic entropy overflowed inside one millisecond
		id = ulid.MustNew(ulid.Timestamp(at), rand.Reader)
	}
	return messageIDPrefix + id.String()
}
