package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	notes   []Notification
	dialogs []FailureDialog
}

func (r *recorder) Notify(n Notification)        { r.notes = append(r.notes, n) }
func (r *recorder) ShowFailures(d FailureDialog) { r.dialogs = append(r.dialogs, d) }

func TestHubFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	h := NewHub(a)
	h.Add(b)

	Error(h, "c.txt is not a PDF file")
	h.ShowFailures(FailureDialog{Title: "Some files failed to load", FailedNames: []string{"c.txt"}})

	for _, r := range []*recorder{a, b} {
		require.Len(t, r.notes, 1)
		require.Equal(t, KindError, r.notes[0].Kind)
		require.False(t, r.notes[0].At.IsZero())
		require.Len(t, r.dialogs, 1)
		require.Equal(t, []Action{ActionRetry, ActionDismiss}, r.dialogs[0].Actions)
	}
}

func TestFeedRing(t *testing.T) {
	f := NewFeed(3)
	for _, m := range []string{"one", "two", "three", "four"} {
		Info(f, m)
	}
	got := f.Since(0)
	require.Len(t, got, 3)
	require.Equal(t, "two", got[0].Notification.Message)
	require.Equal(t, "four", got[2].Notification.Message)
	require.Equal(t, uint64(4), got[2].Seq)

	got = f.Since(3)
	require.Len(t, got, 1)
	require.Equal(t, "four", got[0].Notification.Message)
}

func TestFeedDialogIsCopied(t *testing.T) {
	f := NewFeed(0)
	names := []string{"a.pdf"}
	f.ShowFailures(FailureDialog{FailedNames: names})
	names[0] = "changed"

	got := f.Since(0)
	require.Len(t, got, 1)
	require.Nil(t, got[0].Notification)
	require.Equal(t, []string{"a.pdf"}, got[0].Dialog.FailedNames)
}

func TestLogSinkAcceptsAllKinds(t *testing.T) {
	var s LogSink
	require.NotPanics(t, func() {
		Success(s, "File added successfully")
		Info(s, "b.pdf was skipped")
		Error(s, "bad.pdf: Invalid or corrupted file")
		s.ShowFailures(FailureDialog{Message: "All 1 file(s) failed to load."})
	})
}
