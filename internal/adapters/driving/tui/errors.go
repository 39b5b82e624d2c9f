package tui

import "errors"

// ErrMissingChatService is returned when the chat service is not provided.
var ErrMissingChatService = errors.New("tui: chat service is required")

// ErrMissingModelCatalog is returned when the model catalog is not provided.
var ErrMissingModelCatalog = errors.New("tui: model catalog is required")
