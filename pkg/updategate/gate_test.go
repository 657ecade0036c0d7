package updategate_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jig/pkg/updategate"
)

type memState struct {
	last   time.Time
	writes int
}

func (m *memState) LastChecked() (time.Time, error) { return m.last, nil }

func (m *memState) SetLastChecked(t time.Time) error {
	m.last = t
	m.writes++

	return nil
}

type fakeUpdater struct {
	available  bool
	checkErr   error
	installed  int
	installErr error
}

func (f *fakeUpdater) HasUpdates(context.Context) (bool, error) { return f.available, f.checkErr }

func (f *fakeUpdater) Install(context.Context) error {
	f.installed++

	return f.installErr
}

type script struct {
	answers []string
	err     error
	asked   []string
}

func (s *script) Prompt(_ context.Context, question string) (string, error) {
	s.asked = append(s.asked, question)
	if len(s.answers) == 0 {
		if s.err != nil {
			return "", s.err
		}

		return "", io.EOF
	}

	answer := s.answers[0]
	s.answers = s.answers[1:]

	return answer, nil
}

var epoch = time.Unix(0, 0).UTC()

func TestShouldCheck_StrictlyAfterInterval(t *testing.T) {
	t.Parallel()

	interval := 7 * 24 * time.Hour
	gate := updategate.New(&memState{last: epoch}, interval, nil, nil)

	due, err := gate.ShouldCheck(epoch.Add(interval))
	require.NoError(t, err)
	assert.False(t, due)

	due, err = gate.ShouldCheck(epoch.Add(interval + time.Second))
	require.NoError(t, err)
	assert.True(t, due)
}

func TestNew_DefaultInterval(t *testing.T) {
	t.Parallel()

	gate := updategate.New(&memState{last: epoch}, 0, nil, nil)

	due, err := gate.ShouldCheck(epoch.Add(updategate.DefaultInterval))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestRun_NoUpdatesRecordsNow(t *testing.T) {
	t.Parallel()

	state := &memState{last: epoch}
	now := epoch.Add(30 * 24 * time.Hour)

	var out bytes.Buffer

	outcome, err := updategate.New(state, 0, &out, nil).Run(context.Background(), now, &fakeUpdater{}, &script{})

	require.NoError(t, err)
	assert.Equal(t, updategate.OutcomeNoUpdates, outcome)
	assert.Equal(t, now, state.last)
	assert.Contains(t, out.String(), "Checking for plugin updates")
}

func TestRun_AcceptInstalls(t *testing.T) {
	t.Parallel()

	state := &memState{last: epoch}
	updater := &fakeUpdater{available: true}
	prompter := &script{answers: []string{"maybe", "Yes"}}
	now := epoch.Add(time.Hour)

	outcome, err := updategate.New(state, time.Minute, nil, nil).Run(context.Background(), now, updater, prompter)

	require.NoError(t, err)
	assert.Equal(t, updategate.OutcomeInstalled, outcome)
	assert.Equal(t, 1, updater.installed)
	assert.Equal(t, now, state.last)
	assert.Equal(t, 1, state.writes)
	assert.Len(t, prompter.asked, 2)
	assert.Equal(t, updategate.Question, prompter.asked[0])
}

func TestRun_Decline(t *testing.T) {
	t.Parallel()

	state := &memState{last: epoch}
	updater := &fakeUpdater{available: true}
	now := epoch.Add(time.Hour)

	outcome, err := updategate.New(state, time.Minute, nil, nil).
		Run(context.Background(), now, updater, &script{answers: []string{"n"}})

	require.NoError(t, err)
	assert.Equal(t, updategate.OutcomeDeclined, outcome)
	assert.Zero(t, updater.installed)
	assert.Equal(t, now, state.last)
}

func TestRun_InterruptLeavesTimestamp(t *testing.T) {
	t.Parallel()

	state := &memState{last: epoch}
	prompter := &script{err: context.Canceled}

	outcome, err := updategate.New(state, time.Minute, nil, nil).
		Run(context.Background(), epoch.Add(time.Hour), &fakeUpdater{available: true}, prompter)

	require.NoError(t, err)
	assert.Equal(t, updategate.OutcomeInterrupted, outcome)
	assert.Equal(t, epoch, state.last)
	assert.Zero(t, state.writes)
}

func TestRun_CheckFailure(t *testing.T) {
	t.Parallel()

	state := &memState{last: epoch}
	now := epoch.Add(time.Hour)
	boom := errors.New("network down")

	outcome, err := updategate.New(state, time.Minute, nil, nil).
		Run(context.Background(), now, &fakeUpdater{checkErr: boom}, &script{})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, updategate.OutcomeFailed, outcome)
	assert.Equal(t, now, state.last)
}

func TestRun_InstallFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("not a fast-forward")
	updater := &fakeUpdater{available: true, installErr: boom}

	outcome, err := updategate.New(&memState{last: epoch}, time.Minute, nil, nil).
		Run(context.Background(), epoch.Add(time.Hour), updater, &script{answers: []string{"y"}})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, updategate.OutcomeFailed, outcome)
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "installed", updategate.OutcomeInstalled.String())
	assert.Equal(t, "interrupted", updategate.OutcomeInterrupted.String())
	assert.Equal(t, "unknown", updategate.Outcome(42).String())
}
