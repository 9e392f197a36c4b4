// Package notify fans typed events out to subscriber channels.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const DefaultTimeout = 200 * time.Millisecond

type subscriber[E any] struct {
	ch      chan E
	comment string
}

// MultiplexerSender is the sending half of a Multiplexer; only the owner of the events holds it.
type MultiplexerSender[E any] struct {
	m *Multiplexer[E]
}

// Send delivers e to every subscriber in subscription order.
// A subscriber that does not receive within the timeout misses e.
func (ms *MultiplexerSender[E]) Send(e E) {
	ms.m.send(e)
}

func NewMultiplexerSender[E any](comment string) (*MultiplexerSender[E], *Multiplexer[E]) {
	m := &Multiplexer[E]{
		comment: comment,
		timeout: DefaultTimeout,
	}
	return &MultiplexerSender[E]{m: m}, m
}

type Multiplexer[E any] struct {
	comment         string
	timeout         time.Duration
	subscribersLock sync.Mutex
	subscribers     []subscriber[E]
}

// SetTimeout changes how long send waits for each subscriber.
func (m *Multiplexer[E]) SetTimeout(d time.Duration) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.timeout = d
}

func (m *Multiplexer[E]) Subscribe(comment string, c chan E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	m.subscribers = append(m.subscribers, subscriber[E]{
		ch:      c,
		comment: comment,
	})
}

// Unsubscribe removes c. It reports false if c was not subscribed.
func (m *Multiplexer[E]) Unsubscribe(c chan E) bool {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	i := slices.IndexFunc(m.subscribers, func(sub subscriber[E]) bool { return sub.ch == c })
	if i == -1 {
		return false
	}
	m.subscribers = slices.Delete(m.subscribers, i, i+1)
	return true
}

func (m *Multiplexer[E]) Len() int {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	return len(m.subscribers)
}

func (m *Multiplexer[E]) send(e E) {
	m.subscribersLock.Lock()
	defer m.subscribersLock.Unlock()
	for _, sub := range m.subscribers {
		select {
		case sub.ch <- e:
		default:
			timer := time.NewTimer(m.timeout)
			select {
			case sub.ch <- e:
				timer.Stop()
			case <-timer.C:
				zap.S().Warnw("subscriber timed out",
					"multiplexer", m.comment,
					"subscriber", sub.comment,
					"event", e)
			}
		}
	}
}
