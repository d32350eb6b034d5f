package notify

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/uptownfs/dealflow/internal/domain"
)

var errFailed = errors.New("directory unavailable")

// fakeDirectory maps roles onto fixed active user ids.
type fakeDirectory struct {
	byRole map[domain.Role][]string
	err    error
}

func (d *fakeDirectory) ActiveUserIDs(role domain.Role) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.byRole[role], nil
}

func TestResolvingSink_ExpandsRolesToActiveUsers(t *testing.T) {
	directory := &fakeDirectory{byRole: map[domain.Role][]string{
		domain.RoleFinancialManager: {"fm-1", "fm-2"},
	}}

	var delivered []Event
	sink := NewResolvingSink(directory, sinkFunc(func(e Event) { delivered = append(delivered, e) }), zerolog.Nop())

	sink.Publish(BlockReminder(7))

	require.Len(t, delivered, 1)
	require.Equal(t, []domain.Role{domain.RoleFinancialManager}, delivered[0].Recipients.Roles)
	require.Equal(t, []string{"fm-1", "fm-2"}, delivered[0].Recipients.UserIDs)
}

func TestResolvingSink_KeepsExplicitUserIDs(t *testing.T) {
	directory := &fakeDirectory{byRole: map[domain.Role][]string{
		domain.RoleFinancialManager: {"fm-1"},
	}}

	var delivered []Event
	sink := NewResolvingSink(directory, sinkFunc(func(e Event) { delivered = append(delivered, e) }), zerolog.Nop())

	sink.Publish(BlockExpired(7, "pc-1"))

	require.Len(t, delivered, 1)
	require.Contains(t, delivered[0].Recipients.UserIDs, "pc-1")
	require.Contains(t, delivered[0].Recipients.UserIDs, "fm-1")
}

func TestResolvingSink_DeliversDespiteLookupFailure(t *testing.T) {
	directory := &fakeDirectory{err: errFailed}

	var delivered []Event
	sink := NewResolvingSink(directory, sinkFunc(func(e Event) { delivered = append(delivered, e) }), zerolog.Nop())

	sink.Publish(BlockReminder(7))

	// The event still goes out with its role criteria intact.
	require.Len(t, delivered, 1)
	require.Equal(t, []domain.Role{domain.RoleFinancialManager}, delivered[0].Recipients.Roles)
	require.Empty(t, delivered[0].Recipients.UserIDs)
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	var first, second []Event
	fanout := NewFanout(
		sinkFunc(func(e Event) { first = append(first, e) }),
		sinkFunc(func(e Event) { second = append(second, e) }),
	)

	fanout.Publish(BlockRequested(1))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
}

func TestLogSink_RecordsEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	ev := BlockReminder(7)
	ev.Recipients.UserIDs = []string{"fm-1"}
	sink.Publish(ev)

	out := buf.String()
	require.Contains(t, out, "block.reminder")
	require.Contains(t, out, "fm-1")
	require.Contains(t, out, `"ref_id":7`)
}
