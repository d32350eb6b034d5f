package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
)

// fakeClient implements ClientInterface without a real connection.
type fakeClient struct {
	id        string
	principal domain.Principal
	mu        sync.Mutex
	received  [][]byte
	closed    bool
}

func newFakeClient(id string, role domain.Role) *fakeClient {
	return &fakeClient{id: id, principal: domain.Principal{UserID: id, Role: role}}
}

func (c *fakeClient) ID() string                  { return c.id }
func (c *fakeClient) Principal() domain.Principal { return c.principal }

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.received = append(c.received, data)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) receivedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestHub_BroadcastsByRole(t *testing.T) {
	hub := NewHub()
	fm1 := newFakeClient("fm-1", domain.RoleFinancialManager)
	fm2 := newFakeClient("fm-2", domain.RoleFinancialManager)
	pc := newFakeClient("pc-1", domain.RolePropertyConsultant)
	hub.Register(fm1)
	hub.Register(fm2)
	hub.Register(pc)

	hub.Broadcast(BlockReminder(1))

	require.Eventually(t, func() bool {
		return fm1.receivedCount() == 1 && fm2.receivedCount() == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, 0, pc.receivedCount())
}

func TestHub_BroadcastsByUserID(t *testing.T) {
	hub := NewHub()
	pc := newFakeClient("pc-1", domain.RolePropertyConsultant)
	other := newFakeClient("pc-2", domain.RolePropertyConsultant)
	hub.Register(pc)
	hub.Register(other)

	hub.Broadcast(PlanResolved(1, "pc-1", true, nil))

	require.Eventually(t, func() bool {
		return pc.receivedCount() == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, 0, other.receivedCount())
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	fm := newFakeClient("fm-1", domain.RoleFinancialManager)
	hub.Register(fm)
	require.Equal(t, 1, hub.ClientCount(domain.RoleFinancialManager))

	hub.Unregister(fm)
	require.Equal(t, 0, hub.TotalClientCount())

	hub.Broadcast(BlockReminder(1))
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 0, fm.receivedCount())
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	fm := newFakeClient("fm-1", domain.RoleFinancialManager)
	hub.Register(fm)

	hub.CloseAll()
	require.Equal(t, 0, hub.TotalClientCount())
	require.True(t, fm.closed)
}
