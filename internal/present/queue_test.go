package present_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storekit/wallet-bridge/internal/present"
)

func TestDrainPreservesEnqueueOrder(t *testing.T) {
	t.Parallel()

	q := present.NewQueue(0)
	q.Push("s1", present.Command{Type: present.CmdHandlerLoaded})
	q.SetBusy("s1")
	q.Navigate("s1", "/thank-you")

	cmds := q.Drain("s1")
	require.Len(t, cmds, 3)
	require.Equal(t, present.CmdHandlerLoaded, cmds[0].Type)
	require.Equal(t, present.CmdSetBusy, cmds[1].Type)
	require.Equal(t, present.CmdNavigate, cmds[2].Type)
	require.Equal(t, "/thank-you", cmds[2].Target)

	require.Empty(t, q.Drain("s1"))
}

func TestBusyTogglesAreIdempotent(t *testing.T) {
	t.Parallel()

	q := present.NewQueue(0)
	q.SetBusy("s1")
	q.SetBusy("s1")
	q.ClearBusy("s1")
	q.ClearBusy("s1")

	cmds := q.Drain("s1")
	require.Len(t, cmds, 2)
	require.Equal(t, present.CmdSetBusy, cmds[0].Type)
	require.Equal(t, present.CmdClearBusy, cmds[1].Type)
}

func TestRenderErrorsReleasesBusyAndScrolls(t *testing.T) {
	t.Parallel()

	q := present.NewQueue(750 * time.Millisecond)
	q.SetBusy("s1")
	q.RenderErrors("s1", []string{"Payment could not be processed."})

	cmds := q.Drain("s1")
	require.Len(t, cmds, 2)
	banner := cmds[1]
	require.Equal(t, present.CmdRenderErrors, banner.Type)
	require.Equal(t, []string{"Payment could not be processed."}, banner.Messages)
	require.Equal(t, 750, banner.ScrollDurationMS)

	// RenderErrors released the busy state, so SetBusy engages again.
	q.SetBusy("s1")
	require.Len(t, q.Drain("s1"), 1)
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	q := present.NewQueue(0)
	q.SetBusy("a")
	q.SetBusy("b")
	require.Len(t, q.Drain("a"), 1)
	require.Len(t, q.Drain("b"), 1)
}
