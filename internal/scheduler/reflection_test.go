package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	naviErrors "github.com/harunnryd/navi/internal/errors"
	"github.com/harunnryd/navi/internal/guard"
	"github.com/harunnryd/navi/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReflection_MessageBranch(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	f.oracle.reply = "<strategize>User is idle, nudge.</strategize><message>How about a <b>quick</b> review?</message>"
	f.save(userKey, stateWithTracker("2024-05-02 09:00"))

	report, err := f.reflection().TriggerNow(context.Background(), userKey)
	require.NoError(t, err)
	assert.Equal(t, store.ActionMessageSent, report.Action)
	assert.True(t, report.Delivered)

	calls := f.delivery.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "How about a quick review?", calls[0].Text)

	st := f.load(userKey)
	require.Len(t, st.HourlyReflections, 1)
	rec := st.HourlyReflections[0]
	assert.Equal(t, store.FormatHistoryTime(testNow), rec.Timestamp)
	assert.Equal(t, "User is idle, nudge.", rec.AIAnalysis)
	require.NotNil(t, rec.MessageContent)
	assert.Equal(t, "How about a <b>quick</b> review?", *rec.MessageContent, "the record keeps the unstripped message")
	assert.Empty(t, rec.FormattingCorrections)

	require.Len(t, st.ChatHistory, 2)
	assert.True(t, strings.HasPrefix(st.ChatHistory[0].Text(), reflectionMarker+"\n"))
	assert.Equal(t, store.RoleModel, st.ChatHistory[1].Role)
	assert.Contains(t, st.ChatHistory[1].Text(), "<message>How about a <b>quick</b> review?</message>")
}

func TestReflection_SilentBranch(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	f.oracle.reply = "<strategize>They were here an hour ago. Stay silent.</strategize>"
	f.save(userKey, stateWithTracker("2024-05-02 09:00"))

	require.NoError(t, f.reflection().RunOnce(context.Background()))
	assert.Empty(t, f.delivery.Calls())

	st := f.load(userKey)
	require.Len(t, st.HourlyReflections, 1)
	rec := st.HourlyReflections[0]
	assert.Equal(t, store.ActionSilentReflection, rec.ActionTaken)
	assert.Nil(t, rec.MessageContent)
	require.Len(t, st.ChatHistory, 2)
	assert.True(t, strings.HasPrefix(st.ChatHistory[0].Text(), silentReflectionMarker+"\n"))
	assert.Equal(t, "<strategize>They were here an hour ago. Stay silent.</strategize>", st.ChatHistory[1].Text())
}

func TestReflection_MissingReasoningDefaultsToSilence(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	f.oracle.reply = "Just type a message without tags."
	f.save(userKey, store.NewUserState())

	report, err := f.reflection().TriggerNow(context.Background(), userKey)
	require.NoError(t, err)
	assert.Equal(t, store.ActionSilentReflection, report.Action)
	assert.Equal(t, []string{guard.CorrectionMissingReasoning}, report.Corrections)
	assert.Empty(t, f.delivery.Calls())

	rec := f.load(userKey).HourlyReflections[0]
	assert.Equal(t, guard.PlaceholderReasoning, rec.AIAnalysis)
	assert.Equal(t, []string{guard.CorrectionMissingReasoning}, rec.FormattingCorrections)
}

func TestReflection_OverCeilingDefaultsToSilence(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	f.oracle.reply = fmt.Sprintf("<strategize>long one</strategize><message>%s</message>", strings.Repeat("x", 801))
	f.save(userKey, store.NewUserState())

	report, err := f.reflection().TriggerNow(context.Background(), userKey)
	require.NoError(t, err)
	assert.Equal(t, store.ActionSilentReflection, report.Action)
	assert.Equal(t, []string{"Message too long (801 chars, limit 800) - defaulting to silence"}, report.Corrections)
	assert.Empty(t, f.delivery.Calls())
}

func TestReflection_OracleFailureLeavesDocumentUntouched(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}, "222": {"email": "b@example.com"}}`)
	f.oracle.reply = "<strategize>ok</strategize><message>hi</message>"
	f.oracle.failFor = map[string]error{userKey: naviErrors.Transient("rate limited")}
	before := stateWithTracker("2024-05-02 09:00")
	f.save(userKey, before)
	f.save("b@example.com", store.NewUserState())

	require.NoError(t, f.reflection().RunOnce(context.Background()))

	if diff := cmp.Diff(before, f.load(userKey)); diff != "" {
		t.Fatalf("failing user's document changed (-want +got):\n%s", diff)
	}
	other := f.load("b@example.com")
	require.Len(t, other.HourlyReflections, 1)
	calls := f.delivery.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "222", calls[0].Address)
}

func TestReflection_TriggerNowSurfacesOracleError(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	f.oracle.err = naviErrors.Transient("rate limited")
	f.save(userKey, store.NewUserState())

	_, err := f.reflection().TriggerNow(context.Background(), userKey)
	assert.ErrorIs(t, err, naviErrors.ErrTransient)
}

func TestReflection_HistoryCap(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	f.oracle.reply = "<strategize>quiet</strategize>"
	st := store.NewUserState()
	for i := 0; i < 30; i++ {
		st.HourlyReflections = append(st.HourlyReflections, store.ReflectionRecord{
			Timestamp:   fmt.Sprintf("old-%02d", i),
			ActionTaken: store.ActionSilentReflection,
		})
	}
	f.save(userKey, st)

	_, err := f.reflection().TriggerNow(context.Background(), userKey)
	require.NoError(t, err)

	got := f.load(userKey).HourlyReflections
	require.Len(t, got, 24)
	assert.Equal(t, "old-07", got[0].Timestamp, "oldest records are dropped first")
	assert.Equal(t, store.FormatHistoryTime(testNow), got[23].Timestamp)
}

func TestReflection_DeliveryRefusals(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		limit    int
		wantNote string
	}{
		{name: "markup only", message: "<br><i></i>", limit: 1000, wantNote: "Message empty after markup removal - not delivered"},
		{name: "too long for delivery", message: strings.Repeat("y", 20), limit: 10, wantNote: "Message too long to deliver (20 chars, limit 10)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
			f.schedCfg.Reflection.MaxMessageLen = 0
			f.schedCfg.Reflection.MaxDeliveryLen = tt.limit
			f.oracle.reply = "<strategize>send</strategize><message>" + tt.message + "</message>"
			f.save(userKey, store.NewUserState())

			report, err := f.reflection().TriggerNow(context.Background(), userKey)
			require.NoError(t, err)
			assert.False(t, report.Delivered)
			assert.Empty(t, f.delivery.Calls())

			rec := f.load(userKey).HourlyReflections[0]
			assert.Equal(t, store.ActionMessageSent, rec.ActionTaken)
			assert.Equal(t, []string{tt.wantNote}, rec.FormattingCorrections)
		})
	}
}

func TestReflection_DeliveryFailureIsRecorded(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	f.oracle.reply = "<strategize>send</strategize><message>hello</message>"
	f.delivery.err = errors.New("network unreachable")
	f.save(userKey, store.NewUserState())

	report, err := f.reflection().TriggerNow(context.Background(), userKey)
	require.NoError(t, err)
	assert.False(t, report.Delivered)
	assert.Equal(t, store.ActionMessageSent, f.load(userKey).HourlyReflections[0].ActionTaken)
}

func TestReflection_SkipsUsersWithoutDocument(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}, "222": "ghost@example.com"}`)
	f.oracle.reply = "<strategize>quiet</strategize>"
	f.save(userKey, store.NewUserState())

	require.NoError(t, f.reflection().RunOnce(context.Background()))
	assert.False(t, f.users.Exists("ghost@example.com"))
	assert.Len(t, f.oracle.prompts, 1)
}

func TestTriggerNow_UnknownUser(t *testing.T) {
	f := newFixture(t, `{"111": {"email": "a@example.com"}}`)
	_, err := f.reflection().TriggerNow(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, naviErrors.ErrNotFound)
}
