package adapter

import (
	"context"
	"sync"
)

// Delivery is one message accepted by a NullAdapter.
type Delivery struct {
	Address string
	Text    string
}

// NullAdapter accepts every message and keeps it in memory. It backs the
// "null" channel and dry runs.
type NullAdapter struct {
	name string

	mu        sync.Mutex
	delivered []Delivery
	err       error
}

func NewNullAdapter(name string) *NullAdapter {
	if name == "" {
		name = "null"
	}
	return &NullAdapter{name: name}
}

func (a *NullAdapter) Name() string {
	return a.name
}

func (a *NullAdapter) Send(ctx context.Context, address string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.delivered = append(a.delivered, Delivery{Address: address, Text: text})
	return nil
}

// FailWith makes every later Send return err. A nil err restores success.
func (a *NullAdapter) FailWith(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

// Delivered returns a copy of every accepted message in order.
func (a *NullAdapter) Delivered() []Delivery {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Delivery(nil), a.delivered...)
}

func (a *NullAdapter) Health(ctx context.Context) error {
	return nil
}
