package http

import (
	"sync"

	"github.com/fyrsmithlabs/ragd/internal/rag"
	v1 "github.com/fyrsmithlabs/ragd/pkg/api/v1"
)

// chatCounters aggregates answered questions since process start. The
// status endpoint exposes a snapshot so the monitor dashboard can derive
// rates client-side without a metrics backend.
type chatCounters struct {
	mu        sync.Mutex
	answered  int64
	greetings int64
	rags      int64
	fallbacks int64
	rsqSum    float64
	rsqCount  int64
	lastRSQ   float64
}

func newChatCounters() *chatCounters {
	return &chatCounters{}
}

func (c *chatCounters) record(resp rag.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.answered++
	switch resp.Mode {
	case rag.ModeGreeting:
		c.greetings++
	case rag.ModeRAG:
		c.rags++
	case rag.ModeFallback:
		c.fallbacks++
	}

	// Greetings never computed a retrieval score; keep them out of the
	// RSQ average.
	if resp.Mode != rag.ModeGreeting {
		c.rsqSum += resp.RSQ
		c.rsqCount++
		c.lastRSQ = resp.RSQ
	}
}

func (c *chatCounters) snapshot() v1.ChatCounters {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := v1.ChatCounters{
		Answered:  c.answered,
		Greetings: c.greetings,
		RAG:       c.rags,
		Fallbacks: c.fallbacks,
		LastRSQ:   c.lastRSQ,
	}
	if c.rsqCount > 0 {
		snap.AvgRSQ = c.rsqSum / float64(c.rsqCount)
	}
	return snap
}
