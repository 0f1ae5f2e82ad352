package app

import "testing"

func TestAdmitResolveRemove(t *testing.T) {
	r := NewRegistry()
	tr := newFakeTransport()

	if old := r.Admit("alice", tr); old != nil {
		t.Fatalf("first admit returned replaced transport")
	}
	got, ok := r.Resolve("alice")
	if !ok || got != tr {
		t.Fatalf("Resolve after Admit: got %v, %v", got, ok)
	}

	if !r.Remove("alice", tr) {
		t.Fatalf("Remove of current transport returned false")
	}
	if _, ok := r.Resolve("alice"); ok {
		t.Fatalf("mapping survived Remove")
	}
}

func TestStaleDisconnectGuard(t *testing.T) {
	r := NewRegistry()
	older := newFakeTransport()
	newer := newFakeTransport()

	r.Admit("alice", older)
	if old := r.Admit("alice", newer); old != older {
		t.Fatalf("second admit did not return the replaced transport")
	}

	// The older connection disconnecting must not evict the newer one.
	if r.Remove("alice", older) {
		t.Fatalf("stale disconnect removed the mapping")
	}
	got, ok := r.Resolve("alice")
	if !ok || got != newer {
		t.Fatalf("newer mapping lost: got %v, %v", got, ok)
	}
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	r := NewRegistry()
	a := newFakeTransport()
	b := newFakeTransport()
	r.Admit("alice", a)
	r.Admit("bob", b)

	r.Broadcast([]byte(`{"type":"user_status"}`))

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("broadcast counts: alice=%d bob=%d", a.count(), b.count())
	}
}

func TestSendToOfflineUser(t *testing.T) {
	r := NewRegistry()
	if r.Send("nobody", []byte(`{"type":"x"}`)) {
		t.Fatalf("Send to absent user reported success")
	}
}
