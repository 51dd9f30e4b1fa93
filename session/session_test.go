package session

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/colorsprint/gameserver/network"
)

// fakeConn satisfies network.Connection for registry tests.
type fakeConn struct {
	mutex  sync.Mutex
	sent   []string
	closed bool
}

func (c *fakeConn) Send(event string, payload interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sent = append(c.sent, event)
	return nil
}

func (c *fakeConn) ReadEnvelope() (*network.Envelope, error) { return nil, nil }
func (c *fakeConn) Close() error                             { c.closed = true; return nil }
func (c *fakeConn) RemoteAddr() net.Addr                     { return &net.TCPAddr{} }
func (c *fakeConn) SetHeartbeat(time.Duration)               {}

func TestAuthenticateMintsIdentity(t *testing.T) {
	r := NewRegistry()

	identity, err := r.Authenticate("", "alice")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.UserID == "" {
		t.Fatal("no user id minted")
	}
	if identity.Name != "alice" {
		t.Errorf("name = %q, want alice", identity.Name)
	}
}

func TestAuthenticateReusesKnownUser(t *testing.T) {
	r := NewRegistry()

	first, err := r.Authenticate("", "alice")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// Reconnecting with the same id keeps the identity, even with a junk name.
	second, err := r.Authenticate(first.UserID, "")
	if err != nil {
		t.Fatalf("re-authenticate failed: %v", err)
	}
	if second.UserID != first.UserID {
		t.Errorf("minted a new identity: %s != %s", second.UserID, first.UserID)
	}
	if second.Name != "alice" {
		t.Errorf("name = %q, want the original alice", second.Name)
	}
}

func TestAuthenticateRejectsBadNames(t *testing.T) {
	r := NewRegistry()

	cases := []string{"", "   ", strings.Repeat("x", MaxNameLength+1)}
	for _, name := range cases {
		if _, err := r.Authenticate("", name); err != ErrInvalidName {
			t.Errorf("Authenticate(%q) err = %v, want ErrInvalidName", name, err)
		}
	}

	// An unknown stale id with a bad name is still a bad name.
	if _, err := r.Authenticate("gone", ""); err != ErrInvalidName {
		t.Errorf("stale id with empty name: err = %v, want ErrInvalidName", err)
	}
}

func TestAuthenticateTrimsAndCountsRunes(t *testing.T) {
	r := NewRegistry()

	// Surrounding whitespace is not part of the name or its length.
	identity, err := r.Authenticate("", "  alice  ")
	if err != nil {
		t.Fatalf("padded name rejected: %v", err)
	}
	if identity.Name != "alice" {
		t.Errorf("name = %q, want trimmed alice", identity.Name)
	}

	padded := "   " + strings.Repeat("x", MaxNameLength) + "   "
	if _, err := r.Authenticate("", padded); err != nil {
		t.Errorf("padding pushed a legal name over the limit: %v", err)
	}

	// Multibyte names count runes, not bytes.
	cjk := strings.Repeat("赛", MaxNameLength)
	identity, err = r.Authenticate("", cjk)
	if err != nil {
		t.Fatalf("%d-rune multibyte name rejected: %v", MaxNameLength, err)
	}
	if identity.Name != cjk {
		t.Errorf("multibyte name mangled: %q", identity.Name)
	}
	if _, err := r.Authenticate("", cjk+"赛"); err != ErrInvalidName {
		t.Errorf("%d-rune name accepted: %v", MaxNameLength+1, err)
	}
}

func TestConcurrentSendsOnOneSession(t *testing.T) {
	sess := NewSession("s1", &fakeConn{})

	// Room and lobby broadcasts can hit the same session at once; the
	// activity stamp must not race.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sess.Send("updateRoomList", nil)
				sess.LastActive()
			}
		}()
	}
	wg.Wait()

	if sess.LastActive().IsZero() {
		t.Error("activity stamp never set")
	}
}

func TestMultiTabBinding(t *testing.T) {
	r := NewRegistry()
	identity, _ := r.Authenticate("", "alice")

	tab1 := NewSession("s1", &fakeConn{})
	tab2 := NewSession("s2", &fakeConn{})
	r.Add(tab1)
	r.Add(tab2)

	if _, err := r.Bind(tab1, identity.UserID); err != nil {
		t.Fatalf("Bind tab1: %v", err)
	}
	if _, err := r.Bind(tab2, identity.UserID); err != nil {
		t.Fatalf("Bind tab2: %v", err)
	}

	if got := len(r.SessionsByUser(identity.UserID)); got != 2 {
		t.Fatalf("sessions for user = %d, want 2", got)
	}
	if !r.Present(identity.UserID) {
		t.Fatal("user with two tabs not present")
	}

	// Closing one tab keeps the user present; closing the last does not.
	if userID, last := r.Unbind("s1"); userID != identity.UserID || last {
		t.Errorf("Unbind(s1) = %q, %v; want %q, false", userID, last, identity.UserID)
	}
	if !r.Present(identity.UserID) {
		t.Error("user absent with one tab still open")
	}
	if userID, last := r.Unbind("s2"); userID != identity.UserID || !last {
		t.Errorf("Unbind(s2) = %q, %v; want %q, true", userID, last, identity.UserID)
	}
	if r.Present(identity.UserID) {
		t.Error("user still present with no tabs")
	}

	// The identity itself survives the full disconnect.
	if _, exists := r.Identity(identity.UserID); !exists {
		t.Error("identity destroyed on disconnect")
	}
}

func TestBindUnknownUser(t *testing.T) {
	r := NewRegistry()
	sess := NewSession("s1", &fakeConn{})
	r.Add(sess)

	if _, err := r.Bind(sess, "nobody"); err != ErrUnknownUser {
		t.Errorf("Bind to unknown user: err = %v, want ErrUnknownUser", err)
	}
}

func TestRebindReleasesOldIdentity(t *testing.T) {
	r := NewRegistry()
	alice, _ := r.Authenticate("", "alice")
	bob, _ := r.Authenticate("", "bob")

	sess := NewSession("s1", &fakeConn{})
	r.Add(sess)
	if _, err := r.Bind(sess, alice.UserID); err != nil {
		t.Fatalf("Bind alice: %v", err)
	}

	// The same tab re-authenticates as someone else: alice must lose the
	// connection, and since it was her only one, be reported as released.
	released, err := r.Bind(sess, bob.UserID)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if released != alice.UserID {
		t.Errorf("released = %q, want alice", released)
	}
	if r.Present(alice.UserID) {
		t.Error("alice still present after her only tab switched identity")
	}
	if got := len(r.SessionsByUser(alice.UserID)); got != 0 {
		t.Errorf("alice still holds %d sessions", got)
	}
	if !r.Present(bob.UserID) {
		t.Error("bob not present after the rebind")
	}

	// Disconnect now belongs to bob, and it is his last connection.
	if userID, last := r.Unbind("s1"); userID != bob.UserID || !last {
		t.Errorf("Unbind = %q, %v; want %q, true", userID, last, bob.UserID)
	}
	if r.Present(alice.UserID) || r.Present(bob.UserID) {
		t.Error("someone still present after the tab closed")
	}
}

func TestRebindWithRemainingTabDoesNotRelease(t *testing.T) {
	r := NewRegistry()
	alice, _ := r.Authenticate("", "alice")
	bob, _ := r.Authenticate("", "bob")

	tab1 := NewSession("s1", &fakeConn{})
	tab2 := NewSession("s2", &fakeConn{})
	r.Add(tab1)
	r.Add(tab2)
	r.Bind(tab1, alice.UserID)
	r.Bind(tab2, alice.UserID)

	released, err := r.Bind(tab1, bob.UserID)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if released != "" {
		t.Errorf("released = %q with another alice tab still open", released)
	}
	if !r.Present(alice.UserID) {
		t.Error("alice absent while her second tab is still open")
	}
	if got := len(r.SessionsByUser(alice.UserID)); got != 1 {
		t.Errorf("alice holds %d sessions, want 1", got)
	}
}

func TestUnbindGuestSession(t *testing.T) {
	r := NewRegistry()
	sess := NewSession("s1", &fakeConn{})
	r.Add(sess)

	// A session that never authenticated unbinds without a user.
	if userID, last := r.Unbind("s1"); userID != "" || last {
		t.Errorf("Unbind(guest) = %q, %v; want empty, false", userID, last)
	}
	if _, exists := r.Get("s1"); exists {
		t.Error("unbound session still registered")
	}
	if userID, last := r.Unbind("s1"); userID != "" || last {
		t.Errorf("double Unbind = %q, %v; want empty, false", userID, last)
	}
}
