package devices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskramis/iskra-go/internal/testharness/mock"
	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/types"
)

// newIE38Fixture scripts a full IE38 register image: capability registers,
// one measurement window, counter slots and five tariff blocks.
func newIE38Fixture() *mock.Adapter {
	a := mock.NewAdapter(types.BasicInfo{
		Model:     "IE38 1.1",
		Serial:    "IS123456",
		SWVersion: 2.05,
	})

	// Capability registers: iMC bit set, unity scaling at 230 V / 5 A,
	// software version past the time-block cutoff.
	a.SetUint16(mock.Holding, regConfigFlags, 1<<4)
	a.SetUint16(mock.Holding, regCurrentScaling, 10000)
	a.SetUint16(mock.Holding, regVoltageScaling, 10000)
	a.SetUint16(mock.Input, regUsedVoltage, 23000)
	a.SetUint16(mock.Input, regUsedCurrent, 500)
	a.SetUint16(mock.Input, regSoftwareVersion, 205)

	// Measurement window.
	a.SetT5(mock.Input, regFrequency, 50.0)
	for p := uint16(0); p < 3; p++ {
		a.SetT5(mock.Input, regPhaseVoltage+2*p, float32(230+p))
		a.SetT5(mock.Input, regPhaseCurrent+2*p, 1.5)
		a.SetT5(mock.Input, regPhaseActive+2*p, float32(100*(p+1)))
		a.SetT5(mock.Input, regPhaseReactive+2*p, 10)
		a.SetT5(mock.Input, regPhaseApparent+2*p, 110)
		a.SetT5(mock.Input, regPhasePF+2*p, 0.95)
		a.SetInt16(mock.Input, regPhaseAngle+p, 125)
		a.SetUint16(mock.Input, regPhaseTHDU+p, 250)
		a.SetUint16(mock.Input, regPhaseTHDI+p, 300)
	}
	a.SetT5(mock.Input, regTotalActive, 600)
	a.SetT5(mock.Input, regTotalReactive, 30)
	a.SetT5(mock.Input, regTotalApparent, 660)
	a.SetT5(mock.Input, regTotalPF, 0.97)
	a.SetInt16(mock.Input, regTotalAngle, -50)
	a.SetInt16(mock.Input, regTemperature, 2534)

	// Counters: one scripted slot per bank, the rest read as zero.
	a.SetUint16(mock.Holding, regConnectionFlags, 0)
	a.SetUint16(mock.Holding, regNonResetSettings, 1)   // kWh
	a.SetUint16(mock.Holding, regNonResetSettings+1, 1) // import
	a.SetT5(mock.Input, regCounterNonResetBase, 1234.5)
	a.SetUint16(mock.Holding, regResetSettings, 5)   // kvarh
	a.SetUint16(mock.Holding, regResetSettings+1, 2) // export
	a.SetT5(mock.Input, regCounterResetBase, 42.25)

	// Time-block header.
	a.SetInt16(mock.Input, regTBExponent, 1)
	a.SetUint16(mock.Input, regTBActiveBlock, 2)
	a.SetUint32(mock.Input, regTBResetTime, 1700000000)
	a.SetUint32(mock.Input, regTBLastMonthTime, 1701000000)
	a.SetUint32(mock.Input, regTBTwoMonthsTime, 1702000000)
	a.SetUint32(mock.Input, regTBLastYearTime, 1703000000)
	a.SetUint32(mock.Input, regTBTwoYearsTime, 1704000000)
	a.SetUint32(mock.Input, regTBImportTotal, 5000)
	a.SetUint32(mock.Input, regTBExportTotal, 4000)
	a.SetT5(mock.Input, regTBImportMax15, 1500)
	a.SetUint32(mock.Input, regTBImportTime, 1705000000)
	a.SetUint32(mock.Input, regTBExportMax15, 250)
	a.SetUint32(mock.Input, regTBExportTime, 1706000000)
	a.SetUint32(mock.Input, regTBTotalTime, 1699000000)

	// First tariff block; the other four stay zero.
	a.SetUint32(mock.Input, regTBBlockBase, 100)
	a.SetUint32(mock.Input, regTBBlockBase+2, 90)
	a.SetUint32(mock.Input, regTBBlockBase+4, 80)
	a.SetUint32(mock.Input, regTBBlockBase+6, 70)
	a.SetUint32(mock.Input, regTBBlockBase+8, 60)
	a.SetUint32(mock.Input, regTBBlockBase+10, 50)
	a.SetUint32(mock.Input, regTBBlockBase+12, 40)
	a.SetUint32(mock.Input, regTBBlockBase+14, 30)
	a.SetUint32(mock.Input, regTBBlockBase+16, 20)
	a.SetT5(mock.Input, regTBBlockBase+18, 120.5)
	a.SetT5(mock.Input, regTBBlockBase+20, 110)
	a.SetT5(mock.Input, regTBBlockBase+22, 990)
	a.SetUint32(mock.Input, regTBBlockBase+24, 1707000000)
	a.SetT5(mock.Input, regTBBlockBase+26, 980)

	// Demand limits and the live active-power window.
	a.SetUint16(mock.Holding, regTBLimits, 58)
	a.SetUint16(mock.Input, regTBActivePower, 600)
	a.SetT5(mock.Input, regTBActivePower+1, 1000)
	a.SetT5(mock.Input, regTBActivePower+3, 900)
	a.SetT5(mock.Input, regTBActivePower+5, 800)
	a.SetT5(mock.Input, regTBActivePower+7, 700)
	a.SetT5(mock.Input, regTBActivePower+9, 600.5)
	a.SetT5(mock.Input, regTBActivePower+11, 500)
	a.SetT5(mock.Input, regTBActivePower+13, 400)
	a.SetT5(mock.Input, regTBActivePower+15, 300)
	a.SetInt16(mock.Input, regTBActivePower+17, 7550)

	return a
}

func newInitializedIE38(t *testing.T) (*Impact, *mock.Adapter) {
	t.Helper()
	a := newIE38Fixture()
	dev, err := CreateDevice(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))
	return dev.(*Impact), a
}

func TestCreateDeviceUnknownModel(t *testing.T) {
	a := mock.NewAdapter(types.BasicInfo{Model: "WM3M4", Serial: "X"})
	dev, err := CreateDevice(context.Background(), a)
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.Nil(t, dev)
}

// infoOnlyAdapter satisfies adapters.Adapter but offers no read capability.
type infoOnlyAdapter struct {
	info types.BasicInfo
}

func (a infoOnlyAdapter) BasicInfo(context.Context) (types.BasicInfo, error) { return a.info, nil }

func (a infoOnlyAdapter) Close() error { return nil }

func TestCreateDeviceRequiresReadCapability(t *testing.T) {
	a := infoOnlyAdapter{info: types.BasicInfo{Model: "IE38", Serial: "X"}}
	dev, err := CreateDevice(context.Background(), a)
	assert.ErrorIs(t, err, adapters.ErrProtocolNotSupported)
	assert.Nil(t, dev)
}

func TestImpactInitCapabilities(t *testing.T) {
	dev, _ := newInitializedIE38(t)

	assert.Equal(t, "IE38 1.1", dev.Model())
	assert.Equal(t, "IS123456", dev.Serial())
	assert.True(t, dev.SupportsMeasurements())
	assert.True(t, dev.SupportsCounters())
	assert.True(t, dev.SupportsIntervalMeasurements())
	assert.True(t, dev.SupportsIMCFunctions())
	assert.True(t, dev.SupportsTimeBlocks())
	assert.False(t, dev.IsGateway())
	assert.Nil(t, dev.ChildDevices())

	// 3 × 230 V × 5 A at unity scaling.
	assert.InDelta(t, 3450, dev.NominalPower(), 1e-9)
	assert.False(t, dev.UpdateTimestamp().IsZero())
}

func TestImpactMeasurementsDecode(t *testing.T) {
	dev, _ := newInitializedIE38(t)

	m := dev.Measurements()
	require.NotNil(t, m)
	assert.InDelta(t, 50.0, m.Frequency.Value, 1e-6)
	assert.Equal(t, "Hz", m.Frequency.Units)
	assert.InDelta(t, 25.34, m.Temperature.Value, 1e-9)

	require.Len(t, m.Phases, 3)
	assert.InDelta(t, 230, m.Phases[0].Voltage.Value, 1e-6)
	assert.InDelta(t, 232, m.Phases[2].Voltage.Value, 1e-6)
	assert.InDelta(t, 1.5, m.Phases[1].Current.Value, 1e-6)
	assert.InDelta(t, 200, m.Phases[1].ActivePower.Value, 1e-6)
	assert.InDelta(t, 0.95, m.Phases[0].PowerFactor.Value, 1e-6)
	assert.InDelta(t, 1.25, m.Phases[0].PowerAngle.Value, 1e-9)
	assert.InDelta(t, 2.5, m.Phases[0].THDVoltage.Value, 1e-9)
	assert.InDelta(t, 3.0, m.Phases[0].THDCurrent.Value, 1e-9)

	assert.InDelta(t, 600, m.Total.ActivePower.Value, 1e-6)
	assert.InDelta(t, -0.5, m.Total.PowerAngle.Value, 1e-9)

	// Actual measurements carry no interval stats.
	assert.Nil(t, m.IntervalStats)
}

func TestImpactIntervalMeasurements(t *testing.T) {
	dev, a := newInitializedIE38(t)

	a.SetUint16(mock.Input, regIntervalStats, 150)  // 15.0 s interval
	a.SetInt16(mock.Input, regIntervalStats+1, 42) // 4.2 s ago
	a.SetT5(mock.Input, regFrequency+5400, 49.9)

	m, err := dev.ReadMeasurements(context.Background(), types.MeasurementTypeAverage)
	require.NoError(t, err)
	require.NotNil(t, m.IntervalStats)
	assert.InDelta(t, 15.0, m.IntervalStats.LastIntervalDuration, 1e-9)
	assert.InDelta(t, 4.2, m.IntervalStats.TimeSinceLastMeasurement, 1e-9)
	assert.InDelta(t, 49.9, m.Frequency.Value, 1e-5)
}

func TestImpactCountersDecode(t *testing.T) {
	dev, _ := newInitializedIE38(t)

	c := dev.Counters()
	require.NotNil(t, c)
	require.Len(t, c.NonResettable, 4)
	require.Len(t, c.Resettable, 16)

	nr := c.NonResettable[0]
	assert.InDelta(t, 1234.5, nr.Value, 1e-6)
	assert.Equal(t, types.UnitsKWh, nr.Units)
	assert.Equal(t, types.DirectionImport, nr.Direction)
	assert.Equal(t, types.CounterTypeActiveImport, nr.Type)

	r := c.Resettable[0]
	assert.InDelta(t, 42.25, r.Value, 1e-6)
	assert.Equal(t, types.UnitsQKWh, r.Units)
	assert.Equal(t, types.DirectionExport, r.Direction)
	assert.Equal(t, types.CounterTypeReactiveExport, r.Type)
}

func TestImpactReversedWiringInvertsDirections(t *testing.T) {
	a := newIE38Fixture()
	a.SetUint16(mock.Holding, regConnectionFlags, 2)

	dev, err := CreateDevice(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))

	c := dev.Counters()
	require.NotNil(t, c)
	assert.Equal(t, types.DirectionExport, c.NonResettable[0].Direction)
	assert.Equal(t, types.CounterTypeActiveExport, c.NonResettable[0].Type)
	assert.Equal(t, types.DirectionImport, c.Resettable[0].Direction)
}

func TestImpactTimeBlocksDecode(t *testing.T) {
	dev, _ := newInitializedIE38(t)

	tb := dev.TimeBlocks()
	require.NotNil(t, tb)
	require.Len(t, tb.Blocks, 5)

	b := tb.Blocks[0]
	// Energies scale by 10^exponent, exponent 1 in the fixture.
	assert.InDelta(t, 1000, b.ConsumedEnergy.Total.Value, 1e-9)
	assert.Equal(t, "Wh", b.ConsumedEnergy.Total.Units)
	assert.InDelta(t, 900, b.ConsumedEnergy.LastMonth.Value, 1e-9)
	assert.InDelta(t, 200, b.ConsumedEnergy.PreviousYear.Value, 1e-9)
	assert.Equal(t, int64(1699000000), b.ConsumedEnergy.TotalTimestamp.Unix())
	assert.Equal(t, int64(1701000000), b.ConsumedEnergy.LastMonthTimestamp.Unix())

	// round(58 × 3450/1000 / 10)
	assert.InDelta(t, 20, b.ExcessPower.Limit.Value, 1e-9)
	assert.InDelta(t, 120.5, b.ExcessPower.ThisMonth.Value, 1e-6)

	assert.InDelta(t, 990, b.Max15MinPower.SinceReset.Value, 1e-6)
	assert.Equal(t, int64(1707000000), b.Max15MinPower.SinceResetTimestamp.Unix())
	assert.Equal(t, int64(1700000000), b.Max15MinPower.ResetTimestamp.Unix())

	// Header timestamps are shared by every block.
	assert.Equal(t, b.ConsumedEnergy.LastMonthTimestamp, tb.Blocks[3].ConsumedEnergy.LastMonthTimestamp)

	assert.InDelta(t, 1000, tb.Import.ActualValue.Value, 1e-6)
	assert.InDelta(t, 75.5, tb.Import.Predicted15MinVsLimit.Value, 1e-9)
	assert.InDelta(t, 50000, tb.Import.ActiveEnergyTotal.Value, 1e-9)
	assert.Equal(t, int64(1705000000), tb.Import.Timestamp.Unix())

	assert.InDelta(t, 600.5, tb.Export.ActualValue.Value, 1e-4)
	assert.InDelta(t, 2500, tb.Export.Max15MinSinceReset.Value, 1e-9)
	assert.Zero(t, tb.Export.Predicted15MinVsLimit.Value)

	assert.InDelta(t, 2, tb.ActiveBlockIndex.Value, 1e-9)
	assert.InDelta(t, 600, tb.TimeToEndInterval.Value, 1e-9)
	assert.Equal(t, "s", tb.TimeToEndInterval.Units)
}

func TestImpactUpdateIdempotence(t *testing.T) {
	dev, _ := newInitializedIE38(t)

	m1, c1, tb1 := dev.Measurements(), dev.Counters(), dev.TimeBlocks()
	ts1 := dev.UpdateTimestamp()

	time.Sleep(time.Millisecond)
	require.NoError(t, dev.UpdateStatus(context.Background()))

	assert.Equal(t, m1, dev.Measurements())
	assert.Equal(t, c1, dev.Counters())
	assert.Equal(t, tb1, dev.TimeBlocks())
	assert.True(t, dev.UpdateTimestamp().After(ts1))
}

func TestImpactUpdateCoalescing(t *testing.T) {
	a := newIE38Fixture()
	dev, err := CreateDevice(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))

	a.ReadDelay = 20 * time.Millisecond
	baseline := len(a.Reads())
	baselineConnects := a.Connects()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, dev.UpdateStatus(context.Background()))
		}()
	}
	wg.Wait()

	// All five callers shared one transport sequence: one connection,
	// one measurement window read.
	assert.Equal(t, baselineConnects+1, a.Connects())
	var measReads int
	for _, r := range a.Reads()[baseline:] {
		if r.Table == mock.Input && r.Start == regMeasBase {
			measReads++
		}
	}
	assert.Equal(t, 1, measReads)
}

func TestImpactUpdateOpensOneConnection(t *testing.T) {
	a := newIE38Fixture()
	dev, err := CreateDevice(context.Background(), a)
	require.NoError(t, err)

	// Init performs the probe cycle and the first update, each on its
	// own connection.
	require.NoError(t, dev.Init(context.Background()))
	assert.Equal(t, 2, a.Connects())
	assert.Equal(t, 2, a.Disconnects())
	assert.False(t, a.Connected())
}

func TestImpactOverSnapshotAdapter(t *testing.T) {
	s := mock.NewSnapshot(types.BasicInfo{Model: "IE14", Serial: "IS777777"})
	s.MeasurementsData = types.Measurements{
		Frequency: types.Measurement{Value: 49.95, Units: "Hz"},
	}
	s.Supported = false

	dev, err := CreateDevice(context.Background(), s)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))

	assert.False(t, dev.SupportsTimeBlocks())
	require.NotNil(t, dev.Measurements())
	assert.InDelta(t, 49.95, dev.Measurements().Frequency.Value, 1e-9)
	assert.Nil(t, dev.TimeBlocks())

	impact := dev.(*Impact)
	_, err = impact.ReadMeasurements(context.Background(), types.MeasurementTypeMaximum)
	assert.ErrorIs(t, err, ErrMeasurementTypeNotSupported)
}
