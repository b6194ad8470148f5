package treasury

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRebuildsState(t *testing.T) {
	o := newFakeOracles()
	o.limit = u(1000)
	o.allowance = u(500)
	o.period.Metadata.HoldFees = true
	feeSink := &recordingFeeSink{}
	trail := &recordingSink{}

	source := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink), WithEventSink(trail))

	require.NoError(t, source.RecordAddedBalance("terminal-eth", 7, u(5000)))
	_, _, err := source.RecordDistribution("terminal-eth", 7, u(600), CurrencyETH, nil)
	require.NoError(t, err)
	_, _, err = source.RecordUsedAllowance("terminal-eth", 7, u(200), CurrencyETH, nil)
	require.NoError(t, err)
	_, _, err = source.HoldOrForwardFee("terminal-eth", 7, u(600), "beneficiary-1", "payout")
	require.NoError(t, err)
	_, _, err = source.RecordRedemption("terminal-eth", "holder-9", 7, u(1000), u(10_000), nil, "")
	require.NoError(t, err)

	replica := claimedTestEngine(t, o, 7, "terminal-eth")
	for _, ev := range trail.events[1:] { // skip the source's own claim
		require.NoError(t, replica.Apply(ev))
	}

	assert.Equal(t, source.BalanceOf("terminal-eth", 7).Dec(), replica.BalanceOf("terminal-eth", 7).Dec())
	assert.Equal(t, "600", replica.UsedDistributionLimitOf("terminal-eth", 7, 1).Dec())
	assert.Equal(t, "200", replica.UsedAllowanceOf("terminal-eth", 7, 42).Dec())

	held := replica.HeldFeesOf(7)
	require.Len(t, held, 1)
	assert.Equal(t, "600", held[0].Amount.Dec())
	assert.Equal(t, uint64(10), held[0].FeeRate)

	// Freshly emitted events continue the journal's sequence.
	last := trail.events[len(trail.events)-1].Seq
	assert.Equal(t, last, replica.Clock().Current())
}

func TestApplyFeesProcessedDrains(t *testing.T) {
	o := newFakeOracles()
	e := claimedTestEngine(t, o, 7, "terminal-eth")

	require.NoError(t, e.Apply(Event{
		Seq:         1,
		Kind:        EventFeeHeld,
		Project:     7,
		Terminal:    "terminal-eth",
		Beneficiary: "beneficiary-1",
		Amount:      u(600),
		FeeRate:     10,
	}))
	require.Len(t, e.HeldFeesOf(7), 1)

	require.NoError(t, e.Apply(Event{
		Seq:     2,
		Kind:    EventFeesProcessed,
		Project: 7,
		Amount:  u(600),
		Settled: u(29),
	}))
	assert.Empty(t, e.HeldFeesOf(7))
}

func TestApplyMigrationZeroesBalance(t *testing.T) {
	o := newFakeOracles()
	e := claimedTestEngine(t, o, 7, "terminal-eth")

	require.NoError(t, e.Apply(Event{
		Seq: 1, Kind: EventBalanceAdded, Project: 7, Terminal: "terminal-eth",
		Amount: u(900), Settled: u(900),
	}))
	require.NoError(t, e.Apply(Event{
		Seq: 2, Kind: EventMigrationRecorded, Project: 7, Terminal: "terminal-eth",
		Settled: u(900),
	}))
	assert.Equal(t, "0", e.BalanceOf("terminal-eth", 7).Dec())
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	o := newFakeOracles()
	e := newTestEngine(t, o)

	err := e.Apply(Event{Seq: 1, Kind: "balance_teleported", Project: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")
}

func TestApplyRejectsCorruptDebit(t *testing.T) {
	o := newFakeOracles()
	e := claimedTestEngine(t, o, 7, "terminal-eth")

	err := e.Apply(Event{
		Seq: 1, Kind: EventRedemptionRecorded, Project: 7, Terminal: "terminal-eth",
		Amount: u(100), Settled: u(50),
	})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInsufficientBalance))
}
