package serialmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// subscriberBuffer is the number of lines a slow subscriber may lag behind
// before lines are dropped for it.
const subscriberBuffer = 64

// randomID returns 8 random bytes, hex encoded.
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// subscriberSet tracks the channels lines are fanned out to. Once closed,
// new subscribers receive an already-closed channel.
type subscriberSet struct {
	mu     sync.Mutex
	chans  map[string]chan string
	buffer int
	closed bool
}

func newSubscriberSet(buffer int) *subscriberSet {
	return &subscriberSet{chans: make(map[string]chan string), buffer: buffer}
}

func (s *subscriberSet) add() (string, chan string) {
	id, ch := randomID(), make(chan string, s.buffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return id, ch
	}
	s.chans[id] = ch
	return id, ch
}

func (s *subscriberSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.chans[id]; ok {
		delete(s.chans, id)
		close(ch)
	}
}

// broadcast offers line to every subscriber without blocking and returns
// how many subscribers missed it. ok is false once the set is closed.
func (s *subscriberSet) broadcast(line string) (dropped int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}
	for _, ch := range s.chans {
		select {
		case ch <- line:
		default:
			dropped++
		}
	}
	return dropped, true
}

// closeAll closes every channel. It reports false if already closed.
func (s *subscriberSet) closeAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	for id, ch := range s.chans {
		delete(s.chans, id)
		close(ch)
	}
	return true
}

func (s *subscriberSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chans)
}
