package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Valid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoad_OverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"energy:\n  initial: 25\n  max: 40\necho:\n  spawn_cost: 12\n"), 0o644))

	tn, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, tn.Energy.Initial)
	assert.Equal(t, 40, tn.Energy.Max)
	assert.Equal(t, 12, tn.Echo.SpawnCost)
	// Untouched keys keep their defaults.
	assert.Equal(t, Defaults().Energy.RecordCost, tn.Energy.RecordCost)
	assert.Equal(t, Defaults().Quantum.DefaultCollapseProb, tn.Quantum.DefaultCollapseProb)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Tuning)
	}{
		{"initial above max", func(tn *Tuning) { tn.Energy.Initial = 50; tn.Energy.Max = 30 }},
		{"negative regen", func(tn *Tuning) { tn.Energy.RegenPerTurn = -1 }},
		{"negative spawn cost", func(tn *Tuning) { tn.Echo.SpawnCost = -1 }},
		{"collapse prob above one", func(tn *Tuning) { tn.Quantum.DefaultCollapseProb = 1.5 }},
		{"zero attack damage", func(tn *Tuning) { tn.Combat.AttackDamage = 0 }},
		{"negative snapshot cadence", func(tn *Tuning) { tn.SnapshotEveryTurns = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tn := Defaults()
			tc.mutate(&tn)
			assert.Error(t, tn.Validate())
		})
	}
}

func TestEngineConfig_Mapping(t *testing.T) {
	tn := Defaults()
	cfg := tn.EngineConfig()
	assert.Equal(t, tn.Energy.Initial, cfg.EnergyInitial)
	assert.Equal(t, tn.Energy.Max, cfg.EnergyMax)
	assert.Equal(t, tn.Energy.RecordCost, cfg.RecordCost)
	assert.Equal(t, tn.Echo.SpawnCost, cfg.EchoSpawnCost)
	assert.Equal(t, tn.Echo.UpkeepCost, cfg.EchoUpkeepCost)
	assert.Equal(t, tn.Echo.MaxActive, cfg.MaxActiveEchoes)
	assert.Equal(t, tn.Echo.MaxLifetimeTurns, cfg.EchoMaxLifetimeTurns)
}

func TestLoad_ShippedTuning(t *testing.T) {
	tn, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "1.0", tn.ProtocolVersion)
	require.NoError(t, tn.Validate())
}
