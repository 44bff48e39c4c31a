package attendance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymbolTable(t *testing.T) {
	require.Equal(t, "/", Symbol(ModePresence, true))
	require.Equal(t, "/-", Symbol(ModePresence, false))
	require.Equal(t, "Sc+", Symbol(ModeBusinessTrip, true))
	require.Equal(t, "Sc", Symbol(ModeBusinessTrip, false))
	require.Equal(t, "D", Symbol(ModeVacation, false))
	require.Equal(t, "N", Symbol(ModeSickness, true))
	require.Equal(t, "A", Symbol(ModeAbsence, false))
	require.Equal(t, "-", Symbol(PresenceMode("bogus"), false))
}
