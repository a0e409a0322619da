// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

// Stores log messages in memory so tests can verify diagnostics.

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type MemoryLogHook struct {
	messagesLock sync.Mutex
	messages     []MemoryLogMessage
}

type MemoryLogMessage struct {
	Message string
	Level   logrus.Level
}

func NewMemoryLogHook() *MemoryLogHook {
	return &MemoryLogHook{}
}

func (h *MemoryLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *MemoryLogHook) Fire(entry *logrus.Entry) error {
	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()

	h.messages = append(h.messages, MemoryLogMessage{
		Message: entry.Message,
		Level:   entry.Level,
	})
	return nil
}

func (h *MemoryLogHook) Messages() []MemoryLogMessage {
	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()

	return append([]MemoryLogMessage(nil), h.messages...)
}

// ContainsMessage reports whether any recorded message contains substr.
func (h *MemoryLogHook) ContainsMessage(substr string) bool {
	for _, message := range h.Messages() {
		if strings.Contains(message.Message, substr) {
			return true
		}
	}
	return false
}
