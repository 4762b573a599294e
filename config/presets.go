package config

import "fmt"

// Scheduler implementations understood by the reference engine.
const (
	SchedulerFRFCFS = "FRFCFS"
	SchedulerFCFS   = "FCFS"
)

// Address mapper implementations understood by the reference engine. The
// name lists the fields from the most to the least significant bits.
const (
	MapperRoBaRaCoCh = "RoBaRaCoCh"
	MapperChRaBaRoCo = "ChRaBaRoCo"
)

var orgPresets = map[string]OrgConfig{
	"DDR3_4Gb_x8": {BankGroup: 1, Bank: 8, Row: 1 << 16, Column: 1 << 10},
	"DDR4_4Gb_x8": {BankGroup: 4, Bank: 4, Row: 1 << 15, Column: 1 << 10},
	"DDR4_8Gb_x8": {BankGroup: 4, Bank: 4, Row: 1 << 16, Column: 1 << 10},
}

var timingPresets = map[string]TimingConfig{
	"DDR3_1600K":  {TCK: 1.25, NCL: 11, NRCD: 11, NRP: 11, NBL: 4, NWR: 12},
	"DDR4_2400R":  {TCK: 0.833, NCL: 16, NRCD: 16, NRP: 16, NBL: 4, NWR: 18},
	"DDR4_3200AA": {TCK: 0.625, NCL: 22, NRCD: 22, NRP: 22, NBL: 4, NWR: 24},
}

// DefaultOrgPreset and DefaultTimingPreset are used when a configuration
// names neither presets nor explicit values.
const (
	DefaultOrgPreset    = "DDR4_8Gb_x8"
	DefaultTimingPreset = "DDR4_2400R"
)

func applyOrgPreset(org *OrgConfig) error {
	if org.Preset == "" && org.Bank == 0 {
		org.Preset = DefaultOrgPreset
	}

	setDefaultInt(&org.Channel, 1)
	setDefaultInt(&org.Rank, 1)

	if org.Preset == "" {
		return nil
	}

	preset, ok := orgPresets[org.Preset]
	if !ok {
		return fmt.Errorf("%w: unknown org preset %q", ErrInvalid, org.Preset)
	}

	setDefaultInt(&org.BankGroup, preset.BankGroup)
	setDefaultInt(&org.Bank, preset.Bank)
	setDefaultInt(&org.Row, preset.Row)
	setDefaultInt(&org.Column, preset.Column)

	return nil
}

func applyTimingPreset(t *TimingConfig) error {
	if t.Preset == "" && t.TCK == 0 {
		t.Preset = DefaultTimingPreset
	}

	if t.Preset == "" {
		return nil
	}

	preset, ok := timingPresets[t.Preset]
	if !ok {
		return fmt.Errorf("%w: unknown timing preset %q", ErrInvalid, t.Preset)
	}

	if t.TCK == 0 {
		t.TCK = preset.TCK
	}
	setDefaultInt(&t.NCL, preset.NCL)
	setDefaultInt(&t.NRCD, preset.NRCD)
	setDefaultInt(&t.NRP, preset.NRP)
	setDefaultInt(&t.NBL, preset.NBL)
	setDefaultInt(&t.NWR, preset.NWR)

	return nil
}
