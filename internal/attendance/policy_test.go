package attendance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePolicyPrefixPrecedence(t *testing.T) {
	overrides := map[string]Policy{
		"1":  PolicyReadonly,
		"12": PolicyAuto,
	}
	// readonly on an ancestor wins over a more specific auto.
	require.Equal(t, PolicyReadonly, ResolvePolicy(overrides, "123"))
	require.Equal(t, PolicyReadonly, ResolvePolicy(overrides, "12"))
	require.Equal(t, PolicyReadonly, ResolvePolicy(overrides, "1"))
}

func TestResolvePolicyDefaults(t *testing.T) {
	require.Equal(t, PolicyEdit, ResolvePolicy(nil, "51"))
	require.Equal(t, PolicyEdit, ResolvePolicy(map[string]Policy{"9": PolicyAuto}, "51"))
}

func TestResolvePolicyEditBeatsAuto(t *testing.T) {
	overrides := map[string]Policy{
		"5":  PolicyAuto,
		"51": PolicyEdit,
	}
	require.Equal(t, PolicyEdit, ResolvePolicy(overrides, "512"))
	require.Equal(t, PolicyAuto, ResolvePolicy(overrides, "52"))
}
