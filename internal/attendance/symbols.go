package attendance

// Symbols used in the department attendance grid.
const (
	SymbolWeekend  = "S"
	SymbolNone     = "-"
	SymbolFullDay  = "/"
	SymbolShortDay = "/-"
	SymbolAbsence  = "A"
)

// modeSymbols maps presence modes without a food-stamp dimension to their
// grid codes.
var modeSymbols = map[PresenceMode]string{
	ModeAbsence:              SymbolAbsence,
	ModeVacation:             "D",
	ModeVacationHalf:         "D-",
	ModeSickness:             "N",
	ModeTraining:             "Sk",
	ModeOnCall:               "Po",
	ModeCompTimeOff:          "NV",
	ModeFamilyCare:           "OCR",
	ModePersonalTrouble:      "PP",
	ModeUnpaidLeave:          "NP",
	ModePublicBenefit:        "OV",
	ModeSickDay:              "SD",
	ModeEmployerDifficulties: "PZ",
	ModeStudy:                "St",
}

// Symbol renders the grid code for a recorded day. Presence and business
// trips carry the food-stamp flag in the code.
func Symbol(mode PresenceMode, foodStamp bool) string {
	switch mode {
	case ModePresence:
		if foodStamp {
			return SymbolFullDay
		}
		return SymbolShortDay
	case ModeBusinessTrip:
		if foodStamp {
			return "Sc+"
		}
		return "Sc"
	}
	if s, ok := modeSymbols[mode]; ok {
		return s
	}
	return SymbolNone
}
