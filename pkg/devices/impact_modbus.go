package devices

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/iskramis/iskra-go/pkg/registers"
	"github.com/iskramis/iskra-go/pkg/types"
)

// Measurement register map (input table, actual variant at base 100;
// average/max/min variants shift the whole window by the type offset).
const (
	regMeasBase      = 100
	regMeasCount     = 91
	regFrequency     = 105
	regPhaseVoltage  = 107 // t5, stride 2
	regPhaseCurrent  = 126 // t5, stride 2
	regTotalActive   = 140 // t6
	regPhaseActive   = 142 // t6, stride 2
	regTotalReactive = 148 // t6
	regPhaseReactive = 150 // t6, stride 2
	regTotalApparent = 156 // t5
	regPhaseApparent = 158 // t5, stride 2
	regTotalPF       = 164 // t7
	regPhasePF       = 166 // t7, stride 2
	regTotalAngle    = 172 // int16/100
	regPhaseAngle    = 173 // int16/100, stride 1
	regTemperature   = 181 // int16/100
	regPhaseTHDU     = 182 // uint16/100, stride 1
	regPhaseTHDI     = 188 // uint16/100, stride 1
	regIntervalStats = 5500 // uint16/10 duration, int16/10 age
)

// Counter register map.
const (
	regCounterValues       = 2750 // input, 96 registers
	regCounterNonResetBase = 2752 // t5, stride 2
	regCounterResetBase    = 2760 // t5, stride 2
	regConnectionFlags     = 151  // holding, bit 1 = reversed wiring
	regNonResetSettings    = 421  // holding, 4 registers per slot
	regResetSettings       = 437  // holding, 4 registers per slot
)

// Time-block register map. The input window at 6761 carries a header
// (exponent, active block, shared capture timestamps, energy totals)
// followed by one 42-register record per tariff block.
const (
	regTBWindow        = 6761 // input, 238 registers
	regTBExponent      = 6762 // int16, decimal exponent for energies
	regTBActiveBlock   = 6763
	regTBResetTime     = 6764 // timestamps are uint32 epoch seconds
	regTBLastMonthTime = 6766
	regTBTwoMonthsTime = 6768
	regTBLastYearTime  = 6770
	regTBTwoYearsTime  = 6772
	regTBImportTotal   = 6774
	regTBExportTotal   = 6776
	regTBImportMax15   = 6778 // t5
	regTBImportTime    = 6780
	regTBExportMax15   = 6782 // uint32 x exponent
	regTBExportTime    = 6784
	regTBBlockBase     = 6786
	regTBBlockStride   = 42
	regTBLimits        = 990  // holding, one register per block
	regTBActivePower   = 5244 // input, 18 registers
	regTBTotalTime     = 4901 // input, capture timestamp
)

// decoder accumulates the first decode error so recipes read linearly.
// The shift rebases every address, used for the measurement variants.
type decoder struct {
	w     *registers.Window
	shift uint16
	err   error
}

func (d *decoder) fail(err error) {
	if d.err == nil && err != nil {
		d.err = err
	}
}

func (d *decoder) u16(addr uint16) uint16 {
	v, err := d.w.Uint16(addr + d.shift)
	d.fail(err)
	return v
}

func (d *decoder) i16(addr uint16) int16 {
	v, err := d.w.Int16(addr + d.shift)
	d.fail(err)
	return v
}

func (d *decoder) u32(addr uint16) uint32 {
	v, err := d.w.Uint32(addr + d.shift)
	d.fail(err)
	return v
}

func (d *decoder) t5(addr uint16) float64 {
	v, err := d.w.T5(addr + d.shift)
	d.fail(err)
	return v
}

func (d *decoder) t6(addr uint16) float64 {
	v, err := d.w.T6(addr + d.shift)
	d.fail(err)
	return v
}

func (d *decoder) t7(addr uint16) registers.T7Value {
	v, err := d.w.T7(addr + d.shift)
	d.fail(err)
	return v
}

func (d *decoder) timestamp(addr uint16) time.Time {
	v, err := d.w.Timestamp(addr + d.shift)
	d.fail(err)
	return v
}

func (d *Impact) readMeasurementsModbus(ctx context.Context, typ types.MeasurementType) (*types.Measurements, error) {
	offset := typ.RegisterOffset()
	w, err := d.regs.ReadInput(ctx, regMeasBase+offset, regMeasCount)
	if err != nil {
		return nil, err
	}
	dec := &decoder{w: w, shift: offset}

	var stats *types.IntervalStats
	if typ != types.MeasurementTypeActual {
		sw, err := d.regs.ReadInput(ctx, regIntervalStats, 2)
		if err != nil {
			return nil, err
		}
		sdec := &decoder{w: sw}
		stats = &types.IntervalStats{
			LastIntervalDuration:     float64(sdec.u16(regIntervalStats)) / 10,
			TimeSinceLastMeasurement: float64(sdec.i16(regIntervalStats+1)) / 10,
		}
		if sdec.err != nil {
			return nil, sdec.err
		}
	}

	phases := make([]types.PhaseMeasurements, d.params.Phases)
	for p := range phases {
		stride2 := uint16(2 * p)
		stride1 := uint16(p)
		phases[p] = types.PhaseMeasurements{
			Voltage:       types.Measurement{Value: dec.t5(regPhaseVoltage + stride2), Units: "V"},
			Current:       types.Measurement{Value: dec.t5(regPhaseCurrent + stride2), Units: "A"},
			ActivePower:   types.Measurement{Value: dec.t6(regPhaseActive + stride2), Units: "W"},
			ReactivePower: types.Measurement{Value: dec.t6(regPhaseReactive + stride2), Units: "var"},
			ApparentPower: types.Measurement{Value: dec.t5(regPhaseApparent + stride2), Units: "VA"},
			PowerFactor:   types.Measurement{Value: dec.t7(regPhasePF + stride2).Value},
			PowerAngle:    types.Measurement{Value: float64(dec.i16(regPhaseAngle+stride1)) / 100, Units: "°"},
			THDVoltage:    types.Measurement{Value: float64(dec.u16(regPhaseTHDU+stride1)) / 100, Units: "%"},
			THDCurrent:    types.Measurement{Value: float64(dec.u16(regPhaseTHDI+stride1)) / 100, Units: "%"},
		}
	}

	m := &types.Measurements{
		Phases: phases,
		Total: types.TotalMeasurements{
			ActivePower:   types.Measurement{Value: dec.t6(regTotalActive), Units: "W"},
			ReactivePower: types.Measurement{Value: dec.t6(regTotalReactive), Units: "var"},
			ApparentPower: types.Measurement{Value: dec.t5(regTotalApparent), Units: "VA"},
			PowerFactor:   types.Measurement{Value: dec.t7(regTotalPF).Value},
			PowerAngle:    types.Measurement{Value: float64(dec.i16(regTotalAngle)) / 100, Units: "°"},
		},
		Frequency:     types.Measurement{Value: dec.t5(regFrequency), Units: "Hz"},
		Temperature:   types.Measurement{Value: float64(dec.i16(regTemperature)) / 100, Units: "°C"},
		IntervalStats: stats,
	}
	if dec.err != nil {
		return nil, fmt.Errorf("decode measurements: %w", dec.err)
	}
	return m, nil
}

func (d *Impact) readCountersModbus(ctx context.Context) (*types.Counters, error) {
	values, err := d.regs.ReadInput(ctx, regCounterValues, 96)
	if err != nil {
		return nil, err
	}
	flags, err := d.regs.ReadHolding(ctx, regConnectionFlags, 1)
	if err != nil {
		return nil, err
	}
	nrSettings, err := d.regs.ReadHolding(ctx, regNonResetSettings, uint16(4*d.params.NonResettableCounters))
	if err != nil {
		return nil, err
	}
	rSettings, err := d.regs.ReadHolding(ctx, regResetSettings, uint16(4*d.params.ResettableCounters))
	if err != nil {
		return nil, err
	}

	fdec := &decoder{w: flags}
	reversed := fdec.u16(regConnectionFlags)&2 != 0
	if fdec.err != nil {
		return nil, fdec.err
	}

	vdec := &decoder{w: values}
	decodeSlots := func(settings *registers.Window, settingsBase, valueBase uint16, count int) []types.Counter {
		sdec := &decoder{w: settings}
		out := make([]types.Counter, count)
		for s := range out {
			units := types.CounterUnits(sdec.u16(settingsBase + uint16(4*s)))
			dir := types.CounterDirectionFromSettings(sdec.u16(settingsBase+uint16(4*s)+1), reversed)
			out[s] = types.Counter{
				Value:     vdec.t5(valueBase + uint16(2*s)),
				Units:     units,
				Direction: dir,
				Type:      types.CounterTypeFor(dir, units),
			}
		}
		vdec.fail(sdec.err)
		return out
	}

	c := &types.Counters{
		NonResettable: decodeSlots(nrSettings, regNonResetSettings, regCounterNonResetBase, d.params.NonResettableCounters),
		Resettable:    decodeSlots(rSettings, regResetSettings, regCounterResetBase, d.params.ResettableCounters),
	}
	if vdec.err != nil {
		return nil, fmt.Errorf("decode counters: %w", vdec.err)
	}
	return c, nil
}

func (d *Impact) readTimeBlocksModbus(ctx context.Context) (*types.TimeBlockMeasurements, error) {
	main, err := d.regs.ReadInput(ctx, regTBWindow, 238)
	if err != nil {
		return nil, err
	}
	limits, err := d.regs.ReadHolding(ctx, regTBLimits, uint16(d.params.TimeBlockCount))
	if err != nil {
		return nil, err
	}
	power, err := d.regs.ReadInput(ctx, regTBActivePower, 18)
	if err != nil {
		return nil, err
	}
	capture, err := d.regs.ReadInput(ctx, regTBTotalTime, 2)
	if err != nil {
		return nil, err
	}

	dec := &decoder{w: main}
	ldec := &decoder{w: limits}
	pdec := &decoder{w: power}
	cdec := &decoder{w: capture}

	scale := math.Pow(10, float64(dec.i16(regTBExponent)))
	energy := func(addr uint16) types.Measurement {
		return types.Measurement{Value: float64(dec.u32(addr)) * scale, Units: "Wh"}
	}
	watts := func(dec *decoder, addr uint16) types.Measurement {
		return types.Measurement{Value: dec.t5(addr), Units: "W"}
	}

	// Capture timestamps live in the window header, shared by all blocks.
	totalTime := cdec.timestamp(regTBTotalTime)
	lastMonthTime := dec.timestamp(regTBLastMonthTime)
	twoMonthsTime := dec.timestamp(regTBTwoMonthsTime)
	lastYearTime := dec.timestamp(regTBLastYearTime)
	twoYearsTime := dec.timestamp(regTBTwoYearsTime)
	resetTime := dec.timestamp(regTBResetTime)

	nominal := d.NominalPower()

	blocks := make([]types.TimeBlock, d.params.TimeBlockCount)
	for b := range blocks {
		base := uint16(regTBBlockBase + regTBBlockStride*b)
		limitRaw := ldec.u16(regTBLimits + uint16(b))
		blocks[b] = types.TimeBlock{
			ConsumedEnergy: types.ConsumedEnergy{
				Total:                 energy(base),
				TotalTimestamp:        totalTime,
				LastMonth:             energy(base + 2),
				LastMonthTimestamp:    lastMonthTime,
				TwoMonthsAgo:          energy(base + 4),
				TwoMonthsAgoTimestamp: twoMonthsTime,
				LastYear:              energy(base + 6),
				LastYearTimestamp:     lastYearTime,
				TwoYearsAgo:           energy(base + 8),
				TwoYearsAgoTimestamp:  twoYearsTime,
				ThisMonth:             energy(base + 10),
				PreviousMonth:         energy(base + 12),
				ThisYear:              energy(base + 14),
				PreviousYear:          energy(base + 16),
			},
			ExcessPower: types.ExcessPower{
				Limit: types.Measurement{
					Value: math.Round(float64(limitRaw) * (nominal / 1000) / 10),
					Units: "W",
				},
				ThisMonth:     watts(dec, base+18),
				PreviousMonth: watts(dec, base+20),
			},
			Max15MinPower: types.Max15MinPower{
				SinceReset:             watts(dec, base+22),
				SinceResetTimestamp:    dec.timestamp(base + 24),
				ThisMonth:              watts(dec, base+26),
				ThisMonthTimestamp:     dec.timestamp(base + 28),
				PreviousMonth:          watts(dec, base+30),
				PreviousMonthTimestamp: dec.timestamp(base + 32),
				ThisYear:               watts(dec, base+34),
				ThisYearTimestamp:      dec.timestamp(base + 36),
				PreviousYear:           watts(dec, base+38),
				PreviousYearTimestamp:  dec.timestamp(base + 40),
				ResetTimestamp:         resetTime,
			},
		}
	}

	tb := &types.TimeBlockMeasurements{
		Blocks: blocks,
		Import: types.ActivePowerMeasurements{
			ActualValue:           watts(pdec, regTBActivePower+1),
			ThermalFunction:       watts(pdec, regTBActivePower+3),
			Predicted15Min:        watts(pdec, regTBActivePower+5),
			Predicted15MinVsLimit: types.Measurement{Value: float64(pdec.i16(regTBActivePower+17)) / 100, Units: "%"},
			Last15Min:             watts(pdec, regTBActivePower+7),
			Max15MinSinceReset:    watts(dec, regTBImportMax15),
			ActiveEnergyTotal:     energy(regTBImportTotal),
			Timestamp:             dec.timestamp(regTBImportTime),
		},
		Export: types.ActivePowerMeasurements{
			ActualValue:        watts(pdec, regTBActivePower+9),
			ThermalFunction:    watts(pdec, regTBActivePower+11),
			Predicted15Min:     watts(pdec, regTBActivePower+13),
			Last15Min:          watts(pdec, regTBActivePower+15),
			Max15MinSinceReset: types.Measurement{Value: float64(dec.u32(regTBExportMax15)) * scale, Units: "W"},
			ActiveEnergyTotal:  energy(regTBExportTotal),
			Timestamp:          dec.timestamp(regTBExportTime),
		},
		ActiveBlockIndex:  types.Measurement{Value: float64(dec.u16(regTBActiveBlock))},
		TimeToEndInterval: types.Measurement{Value: float64(pdec.u16(regTBActivePower)), Units: "s"},
	}

	for _, e := range []error{dec.err, ldec.err, pdec.err, cdec.err} {
		if e != nil {
			return nil, fmt.Errorf("decode time blocks: %w", e)
		}
	}
	return tb, nil
}
