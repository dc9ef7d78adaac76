package controllers

import (
	"context"
	"sync"
	"time"

	"walchat/walchat/sources/memstore"
	"walchat/walchat/utils/logging"

	"go.uber.org/zap"
)

// ArchiverFactory builds the archive hook for one wallet address. A nil
// factory (or a nil archiver from it) means volatile memory only.
type ArchiverFactory func(address string) memstore.Archiver

// Hub hands each connected wallet address its own session store and chat
// controller. No address, no store: unauthenticated requests never reach a
// session registry.
type Hub struct {
	generator Generator
	archivers ArchiverFactory

	mu          sync.Mutex
	controllers map[string]*ChatController
}

func NewHub(generator Generator, archivers ArchiverFactory) *Hub {
	return &Hub{
		generator:   generator,
		archivers:   archivers,
		controllers: make(map[string]*ChatController),
	}
}

// Controller returns the chat controller for an address, creating its store
// on first touch.
func (h *Hub) Controller(address string) *ChatController {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ctrl, ok := h.controllers[address]; ok {
		return ctrl
	}

	var archiver memstore.Archiver
	if h.archivers != nil {
		archiver = h.archivers(address)
	}
	ctrl := NewChatController(memstore.NewStore(archiver), h.generator)
	h.controllers[address] = ctrl

	if archiver != nil {
		// Archived history stays in the archive for now; memory is the
		// source of truth for the live session registry.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sessions, err := archiver.LoadSessions(ctx, address)
		if err != nil {
			logging.ErrorLogger.Error("archive load failed",
				zap.String("address", address),
				zap.Error(err),
			)
		} else {
			logging.AppLogger.Info("archive inspected",
				zap.String("address", address),
				zap.Int("archived_sessions", len(sessions)),
			)
		}
	}
	return ctrl
}
