package treasury

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name     string
		gross    uint64
		rate     uint64
		discount uint64
		wantFee  string
		wantNet  string
	}{
		{name: "five percent", gross: 1000, rate: 10, discount: 0, wantFee: "48", wantNet: "952"},
		{name: "half discount", gross: 1000, rate: 10, discount: MaxFeeDiscount / 2, wantFee: "25", wantNet: "975"},
		{name: "full discount", gross: 1000, rate: 10, discount: MaxFeeDiscount, wantFee: "0", wantNet: "1000"},
		{name: "out of range discount ignored", gross: 1000, rate: 10, discount: MaxFeeDiscount + 1, wantFee: "48", wantNet: "952"},
		{name: "zero rate", gross: 1000, rate: 0, discount: 0, wantFee: "0", wantNet: "1000"},
		{name: "max rate", gross: 1000, rate: FeeScale, discount: 0, wantFee: "500", wantNet: "500"},
		{name: "zero gross", gross: 0, rate: 10, discount: 0, wantFee: "0", wantNet: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net, err := ComputeFee(u(tt.gross), tt.rate, tt.discount)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, fee.Dec())
			assert.Equal(t, tt.wantNet, net.Dec())
		})
	}
}

func TestComputeFeeReconstructsGross(t *testing.T) {
	for gross := uint64(0); gross <= 2000; gross += 7 {
		for _, rate := range []uint64{0, 1, 10, 25, 100, FeeScale} {
			fee, net, err := ComputeFee(u(gross), rate, 0)
			require.NoError(t, err)

			sum := u(0).Add(fee, net)
			assert.Equal(t, u(gross).Dec(), sum.Dec(),
				"gross=%d rate=%d", gross, rate)
		}
	}
}

func TestHoldOrForwardFeeForwards(t *testing.T) {
	o := newFakeOracles()
	feeSink := &recordingFeeSink{}
	sink := &recordingSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink), WithEventSink(sink))

	fee, held, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "payout")
	require.NoError(t, err)
	assert.False(t, held)
	assert.Equal(t, "48", fee.Dec())

	require.Len(t, feeSink.received, 1)
	assert.Equal(t, "48", feeSink.received[0].amount.Dec())
	assert.Equal(t, Identity("beneficiary-1"), feeSink.received[0].beneficiary)

	ev := sink.events[len(sink.events)-1]
	assert.Equal(t, EventFeeForwarded, ev.Kind)
	assert.Equal(t, "1000", ev.Amount.Dec())
	assert.Equal(t, "48", ev.Settled.Dec())
}

func TestHoldOrForwardFeeZeroRate(t *testing.T) {
	o := newFakeOracles()
	feeSink := &recordingFeeSink{}
	sink := &recordingSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithFeeSink(feeSink), WithEventSink(sink))
	before := len(sink.events)

	fee, held, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "")
	require.NoError(t, err)
	assert.False(t, held)
	assert.True(t, fee.IsZero())

	assert.Empty(t, feeSink.received)
	assert.Len(t, sink.events, before)
}

func TestHoldOrForwardFeeRejectsRateAboveScale(t *testing.T) {
	o := newFakeOracles()
	e := claimedTestEngine(t, o, 7, "terminal-eth", WithBaseFeeRate(FeeScale+1))

	_, _, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "")
	require.Error(t, err)
	assert.Equal(t, Code(""), ErrorCode(err), "misconfiguration, not a caller error")
}

func TestHoldOrForwardFeeAppliesGaugeDiscount(t *testing.T) {
	o := newFakeOracles()
	o.discount = MaxFeeDiscount / 2
	feeSink := &recordingFeeSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink), WithFeeGauge(o))

	fee, _, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "")
	require.NoError(t, err)
	assert.Equal(t, "25", fee.Dec())
}

func TestHoldOrForwardFeeToleratesBrokenGauge(t *testing.T) {
	o := newFakeOracles()
	o.discountErr = assert.AnError
	feeSink := &recordingFeeSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink), WithFeeGauge(o))

	fee, _, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "")
	require.NoError(t, err)
	assert.Equal(t, "48", fee.Dec(), "gauge failure degrades to no discount")
}

func TestHoldOrForwardFeeHolds(t *testing.T) {
	o := newFakeOracles()
	o.period.Metadata.HoldFees = true
	feeSink := &recordingFeeSink{}
	sink := &recordingSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink), WithEventSink(sink))

	fee, held, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "payout")
	require.NoError(t, err)
	assert.True(t, held)
	assert.True(t, fee.IsZero())
	assert.Empty(t, feeSink.received, "nothing forwarded while holding")

	heldFees := e.HeldFeesOf(7)
	require.Len(t, heldFees, 1)
	assert.Equal(t, "1000", heldFees[0].Amount.Dec())
	assert.Equal(t, uint64(10), heldFees[0].FeeRate)
	assert.Equal(t, Identity("beneficiary-1"), heldFees[0].Beneficiary)

	ev := sink.events[len(sink.events)-1]
	assert.Equal(t, EventFeeHeld, ev.Kind)
	assert.Equal(t, uint64(10), ev.FeeRate)
}

func TestProcessFees(t *testing.T) {
	o := newFakeOracles()
	o.period.Metadata.HoldFees = true
	feeSink := &recordingFeeSink{}
	sink := &recordingSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink), WithEventSink(sink))

	_, _, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "first")
	require.NoError(t, err)
	_, _, err = e.HoldOrForwardFee("terminal-eth", 7, u(500), "beneficiary-2", "second")
	require.NoError(t, err)

	results, err := e.ProcessFees(7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, "48", results[0].Fee.Dec())
	assert.Equal(t, "24", results[1].Fee.Dec())

	require.Len(t, feeSink.received, 2)
	assert.Equal(t, Identity("beneficiary-1"), feeSink.received[0].beneficiary)
	assert.Equal(t, Identity("beneficiary-2"), feeSink.received[1].beneficiary)

	assert.Empty(t, e.HeldFeesOf(7))

	ev := sink.events[len(sink.events)-1]
	assert.Equal(t, EventFeesProcessed, ev.Kind)
	assert.Equal(t, "1500", ev.Amount.Dec())
	assert.Equal(t, "72", ev.Settled.Dec())
	assert.Equal(t, "drained=2 failed=0", ev.Memo)
}

func TestProcessFeesEmptyIsNoOp(t *testing.T) {
	o := newFakeOracles()
	sink := &recordingSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth", WithEventSink(sink))
	before := len(sink.events)

	results, err := e.ProcessFees(7)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Len(t, sink.events, before)
}

func TestProcessFeesDrainIsOneShot(t *testing.T) {
	o := newFakeOracles()
	o.period.Metadata.HoldFees = true
	feeSink := &recordingFeeSink{}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink))

	_, _, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "")
	require.NoError(t, err)

	_, err = e.ProcessFees(7)
	require.NoError(t, err)

	results, err := e.ProcessFees(7)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Len(t, feeSink.received, 1)
}

func TestProcessFeesBestEffort(t *testing.T) {
	o := newFakeOracles()
	o.period.Metadata.HoldFees = true
	feeSink := &recordingFeeSink{failFor: "beneficiary-1"}
	e := claimedTestEngine(t, o, 7, "terminal-eth",
		WithBaseFeeRate(10), WithFeeSink(feeSink))

	_, _, err := e.HoldOrForwardFee("terminal-eth", 7, u(1000), "beneficiary-1", "")
	require.NoError(t, err)
	_, _, err = e.HoldOrForwardFee("terminal-eth", 7, u(500), "beneficiary-2", "")
	require.NoError(t, err)

	results, err := e.ProcessFees(7)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)

	// The failed record is reported, not re-queued.
	require.Len(t, feeSink.received, 1)
	assert.Equal(t, Identity("beneficiary-2"), feeSink.received[0].beneficiary)
	assert.Empty(t, e.HeldFeesOf(7))
}
