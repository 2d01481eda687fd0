package types

import "time"

// ConsumedEnergy is one time block's energy accounting. Capture timestamps
// record when the corresponding historic value was frozen.
type ConsumedEnergy struct {
	Total                 Measurement `json:"total"`
	TotalTimestamp        time.Time   `json:"total_timestamp"`
	LastMonth             Measurement `json:"last_month"`
	LastMonthTimestamp    time.Time   `json:"last_month_timestamp"`
	TwoMonthsAgo          Measurement `json:"two_months_ago"`
	TwoMonthsAgoTimestamp time.Time   `json:"two_months_ago_timestamp"`
	LastYear              Measurement `json:"last_year"`
	LastYearTimestamp     time.Time   `json:"last_year_timestamp"`
	TwoYearsAgo           Measurement `json:"two_years_ago"`
	TwoYearsAgoTimestamp  time.Time   `json:"two_years_ago_timestamp"`
	ThisMonth             Measurement `json:"this_month"`
	PreviousMonth         Measurement `json:"previous_month"`
	ThisYear              Measurement `json:"this_year"`
	PreviousYear          Measurement `json:"previous_year"`
}

// ExcessPower is one time block's demand-limit accounting.
type ExcessPower struct {
	Limit         Measurement `json:"limit"`
	ThisMonth     Measurement `json:"this_month"`
	PreviousMonth Measurement `json:"previous_month"`
}

// Max15MinPower is one time block's peak-demand captures.
type Max15MinPower struct {
	SinceReset             Measurement `json:"since_reset"`
	SinceResetTimestamp    time.Time   `json:"since_reset_timestamp"`
	ThisMonth              Measurement `json:"this_month"`
	ThisMonthTimestamp     time.Time   `json:"this_month_timestamp"`
	PreviousMonth          Measurement `json:"previous_month"`
	PreviousMonthTimestamp time.Time   `json:"previous_month_timestamp"`
	ThisYear               Measurement `json:"this_year"`
	ThisYearTimestamp      time.Time   `json:"this_year_timestamp"`
	PreviousYear           Measurement `json:"previous_year"`
	PreviousYearTimestamp  time.Time   `json:"previous_year_timestamp"`
	ResetTimestamp         time.Time   `json:"reset_timestamp"`
}

// TimeBlock is one tariff time-of-use block.
type TimeBlock struct {
	ConsumedEnergy ConsumedEnergy `json:"consumed_energy"`
	ExcessPower    ExcessPower    `json:"excess_power"`
	Max15MinPower  Max15MinPower  `json:"max_15min_power"`
}

// ActivePowerMeasurements is the device-wide demand view for one energy
// flow direction.
type ActivePowerMeasurements struct {
	ActualValue           Measurement `json:"actual_value"`
	ThermalFunction       Measurement `json:"thermal_function"`
	Predicted15Min        Measurement `json:"predicted_15min"`
	Predicted15MinVsLimit Measurement `json:"predicted_15min_vs_limit"`
	Last15Min             Measurement `json:"last_15min"`
	Max15MinSinceReset    Measurement `json:"max_15min_since_reset"`
	ActiveEnergyTotal     Measurement `json:"active_energy_total"`
	Timestamp             time.Time   `json:"timestamp"`
}

// TimeBlockMeasurements is one time-block snapshot: the ordered tariff
// blocks plus the device-wide import/export demand views.
type TimeBlockMeasurements struct {
	Blocks            []TimeBlock             `json:"blocks"`
	Import            ActivePowerMeasurements `json:"import"`
	Export            ActivePowerMeasurements `json:"export"`
	ActiveBlockIndex  Measurement             `json:"active_block_index"`
	TimeToEndInterval Measurement             `json:"time_to_end_interval"`
}
