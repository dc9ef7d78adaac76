package wallet

import (
	"context"
	"errors"
	"sync"
)

// ErrNoWallet means no wallet capability is available to authorize against.
var ErrNoWallet = errors.New("no wallet available")

// Provider is the injected wallet capability: query the currently authorized
// addresses, request authorization, and subscribe to address changes. The
// rest of the system only ever treats the returned address as an opaque
// identity token.
type Provider interface {
	Accounts(ctx context.Context) ([]string, error)
	RequestAccounts(ctx context.Context) ([]string, error)
	OnAccountsChanged(fn func(accounts []string)) (unsubscribe func())
}

// StaticProvider is a headless Provider backed by one fixed address. The CLI
// runs on it; tests use it as the injected capability.
type StaticProvider struct {
	mu        sync.Mutex
	address   string
	connected bool
	nextSub   int
	subs      map[int]func([]string)
}

func NewStaticProvider(address string) *StaticProvider {
	return &StaticProvider{
		address: address,
		subs:    make(map[int]func([]string)),
	}
}

// Accounts reports the authorized addresses; empty until RequestAccounts
// succeeds.
func (p *StaticProvider) Accounts(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, nil
	}
	return []string{p.address}, nil
}

func (p *StaticProvider) RequestAccounts(_ context.Context) ([]string, error) {
	p.mu.Lock()
	if p.address == "" {
		p.mu.Unlock()
		return nil, ErrNoWallet
	}
	p.connected = true
	accounts := []string{p.address}
	subs := p.snapshotSubs()
	p.mu.Unlock()

	for _, fn := range subs {
		fn(accounts)
	}
	return accounts, nil
}

// Disconnect drops authorization and notifies subscribers with an empty
// account list, mirroring how injected providers report disconnects.
func (p *StaticProvider) Disconnect() {
	p.mu.Lock()
	p.connected = false
	subs := p.snapshotSubs()
	p.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

func (p *StaticProvider) OnAccountsChanged(fn func(accounts []string)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *StaticProvider) snapshotSubs() []func([]string) {
	out := make([]func([]string), 0, len(p.subs))
	for _, fn := range p.subs {
		out = append(out, fn)
	}
	return out
}
