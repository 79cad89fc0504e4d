package bridge

import "context"

// NopBus is used in single-instance mode, when no bus is configured.
type NopBus struct{}

func (NopBus) Publish(context.Context, string, []byte) error { return nil }

func (NopBus) Subscribe(context.Context, string, func(string, []byte)) error { return nil }

func (NopBus) Close() error { return nil }
