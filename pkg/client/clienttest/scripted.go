// Package clienttest provides a scripted Generator for tests.
package clienttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/menta2k/meme-maker/pkg/client"
)

// Reply is one scripted answer.
type Reply struct {
	Text      string
	RequestID string
	Err       error
}

// Scripted replays replies in order per call kind and records every request.
type Scripted struct {
	mu       sync.Mutex
	replies  map[client.CallKind][]Reply
	Requests []client.Request
}

// New returns an empty Scripted generator.
func New() *Scripted {
	return &Scripted{replies: map[client.CallKind][]Reply{}}
}

// On queues replies for a call kind.
func (s *Scripted) On(kind client.CallKind, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[kind] = append(s.replies[kind], replies...)
	return s
}

// Generate pops the next reply for req.Kind.
func (s *Scripted) Generate(ctx context.Context, req client.Request) (client.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if err := ctx.Err(); err != nil {
		return client.Response{}, err
	}

	queue := s.replies[req.Kind]
	if len(queue) == 0 {
		return client.Response{}, fmt.Errorf("clienttest: no reply scripted for %s call %d", req.Kind, s.count(req.Kind))
	}
	reply := queue[0]
	s.replies[req.Kind] = queue[1:]
	if reply.Err != nil {
		return client.Response{}, reply.Err
	}
	return client.Response{Text: reply.Text, RequestID: reply.RequestID}, nil
}

// Calls returns how many requests of kind were made.
func (s *Scripted) Calls(kind client.CallKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(kind)
}

func (s *Scripted) count(kind client.CallKind) int {
	n := 0
	for _, r := range s.Requests {
		if r.Kind == kind {
			n++
		}
	}
	return n
}
