package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/etherwheel/custody-ledger/events"
	"github.com/etherwheel/custody-ledger/ledger"
	"github.com/etherwheel/custody-ledger/oracle"
	"github.com/etherwheel/custody-ledger/pool"
)

const owner = ledger.Address("0xaaaa")

func testFactory(t *testing.T, bus *events.Bus) *Factory {
	t.Helper()
	feed := oracle.NewMockFeed(ledger.Units(1000, 8), 8)
	p := pool.New(ledger.DefaultPair(), oracle.NewAdapter(feed), nil)
	return NewFactory(p, bus, nil)
}

func TestCreateAccount(t *testing.T) {
	f := testFactory(t, nil)

	w, err := f.CreateAccount(owner)
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if w.Owner() != owner {
		t.Fatalf("owner = %s, want %s", w.Owner(), owner)
	}

	ids := f.ListAccounts(owner)
	if len(ids) != 1 || ids[0] != w.ID() {
		t.Fatalf("ListAccounts() = %v", ids)
	}
}

func TestCreateAccountRejectsEmptyOwner(t *testing.T) {
	f := testFactory(t, nil)
	if _, err := f.CreateAccount(ledger.Address("  ")); err == nil {
		t.Fatal("expected error for blank owner")
	}
}

func TestListAccountsCreationOrder(t *testing.T) {
	f := testFactory(t, nil)

	var created []uuid.UUID
	for i := 0; i < 5; i++ {
		w, err := f.CreateAccount(owner)
		if err != nil {
			t.Fatalf("CreateAccount() error = %v", err)
		}
		created = append(created, w.ID())
	}

	ids := f.ListAccounts(owner)
	if len(ids) != len(created) {
		t.Fatalf("got %d accounts, want %d", len(ids), len(created))
	}
	for i := range created {
		if ids[i] != created[i] {
			t.Fatalf("position %d: %s, want %s (creation order)", i, ids[i], created[i])
		}
	}

	// Returned slice is a copy.
	ids[0] = uuid.New()
	if f.ListAccounts(owner)[0] != created[0] {
		t.Fatal("ListAccounts leaked internal slice")
	}
}

func TestListAccountsUnknownOwnerEmpty(t *testing.T) {
	f := testFactory(t, nil)
	if ids := f.ListAccounts(ledger.Address("0xnobody")); len(ids) != 0 {
		t.Fatalf("expected empty slice, got %v", ids)
	}
}

func TestAccountLookup(t *testing.T) {
	f := testFactory(t, nil)

	w, err := f.CreateAccount(owner)
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	got, err := f.Account(w.ID())
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if got != w {
		t.Fatal("Account() returned a different wallet")
	}

	if _, err := f.Account(uuid.New()); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestCreateAccountEmitsEvent(t *testing.T) {
	bus := events.NewBus(4, nil)
	defer bus.Close()
	f := testFactory(t, bus)

	ch, cancel := bus.Subscribe()
	defer cancel()

	w, err := f.CreateAccount(owner)
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	select {
	case got := <-ch:
		created, ok := got.(events.AccountCreated)
		if !ok {
			t.Fatalf("expected AccountCreated, got %T", got)
		}
		if created.Owner != owner || created.AccountID != w.ID() {
			t.Fatalf("unexpected event %+v", created)
		}
	case <-time.After(time.Second):
		t.Fatal("no AccountCreated event received")
	}
}

func TestSeparateOwnersSeparateLists(t *testing.T) {
	f := testFactory(t, nil)
	other := ledger.Address("0xbbbb")

	if _, err := f.CreateAccount(owner); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if _, err := f.CreateAccount(other); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if len(f.ListAccounts(owner)) != 1 || len(f.ListAccounts(other)) != 1 {
		t.Fatal("owner lists are not isolated")
	}
	if f.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", f.Size())
	}
}
