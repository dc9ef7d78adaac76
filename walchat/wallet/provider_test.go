package wallet

import (
	"context"
	"errors"
	"testing"
)

func TestAccountsEmptyBeforeConnect(t *testing.T) {
	p := NewStaticProvider("0xabc")

	accounts, err := p.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("expected no accounts before connect, got %v", accounts)
	}
}

func TestRequestAccountsAuthorizes(t *testing.T) {
	p := NewStaticProvider("0xabc")

	accounts, err := p.RequestAccounts(context.Background())
	if err != nil {
		t.Fatalf("RequestAccounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != "0xabc" {
		t.Errorf("expected [0xabc], got %v", accounts)
	}

	accounts, err = p.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != "0xabc" {
		t.Errorf("expected authorization to stick, got %v", accounts)
	}
}

func TestRequestAccountsWithoutWallet(t *testing.T) {
	p := NewStaticProvider("")

	if _, err := p.RequestAccounts(context.Background()); !errors.Is(err, ErrNoWallet) {
		t.Errorf("expected ErrNoWallet, got %v", err)
	}
}

func TestAccountsChangedSubscription(t *testing.T) {
	p := NewStaticProvider("0xabc")

	var events [][]string
	unsubscribe := p.OnAccountsChanged(func(accounts []string) {
		events = append(events, accounts)
	})

	if _, err := p.RequestAccounts(context.Background()); err != nil {
		t.Fatalf("RequestAccounts: %v", err)
	}
	p.Disconnect()

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if len(events[0]) != 1 || events[0][0] != "0xabc" {
		t.Errorf("connect event: %v", events[0])
	}
	if len(events[1]) != 0 {
		t.Errorf("disconnect event should carry no accounts, got %v", events[1])
	}

	unsubscribe()
	if _, err := p.RequestAccounts(context.Background()); err != nil {
		t.Fatalf("RequestAccounts: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("unsubscribed listener still notified: %d events", len(events))
	}
}
