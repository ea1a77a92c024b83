package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quantumrogue.dev/internal/sim/chrono"
)

// Tuning carries every balance input. The engine and world never hardcode
// these; a missing file falls back to Defaults().
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	SnapshotEveryTurns int `yaml:"snapshot_every_turns" json:"snapshot_every_turns"`

	Energy  EnergyTuning  `yaml:"energy" json:"energy"`
	Echo    EchoTuning    `yaml:"echo" json:"echo"`
	Quantum QuantumTuning `yaml:"quantum" json:"quantum"`
	Combat  CombatTuning  `yaml:"combat" json:"combat"`
}

type EnergyTuning struct {
	Initial      int `yaml:"initial" json:"initial"`
	Max          int `yaml:"max" json:"max"`
	RegenPerTurn int `yaml:"regen_per_turn" json:"regen_per_turn"`
	RecordCost   int `yaml:"record_cost" json:"record_cost"`
}

type EchoTuning struct {
	SpawnCost        int `yaml:"spawn_cost" json:"spawn_cost"`
	UpkeepCost       int `yaml:"upkeep_cost" json:"upkeep_cost"`
	MaxActive        int `yaml:"max_active" json:"max_active"`
	MaxLifetimeTurns int `yaml:"max_lifetime_turns" json:"max_lifetime_turns"`
}

type QuantumTuning struct {
	DefaultCollapseProb float64 `yaml:"default_collapse_prob" json:"default_collapse_prob"`
}

type CombatTuning struct {
	AttackDamage int `yaml:"attack_damage" json:"attack_damage"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		SnapshotEveryTurns: 50,
		Energy: EnergyTuning{
			Initial:      20,
			Max:          30,
			RegenPerTurn: 1,
			RecordCost:   1,
		},
		Echo: EchoTuning{
			SpawnCost:        8,
			UpkeepCost:       1,
			MaxActive:        3,
			MaxLifetimeTurns: 0,
		},
		Quantum: QuantumTuning{DefaultCollapseProb: 0.35},
		Combat:  CombatTuning{AttackDamage: 2},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Energy.Max < 0 || t.Energy.Initial < 0 {
		return fmt.Errorf("energy bounds negative")
	}
	if t.Energy.Max > 0 && t.Energy.Initial > t.Energy.Max {
		return fmt.Errorf("energy.initial %d exceeds energy.max %d", t.Energy.Initial, t.Energy.Max)
	}
	if t.Energy.RecordCost < 0 || t.Energy.RegenPerTurn < 0 {
		return fmt.Errorf("energy costs negative")
	}
	if t.Echo.SpawnCost < 0 || t.Echo.UpkeepCost < 0 || t.Echo.MaxActive < 0 || t.Echo.MaxLifetimeTurns < 0 {
		return fmt.Errorf("echo tuning negative")
	}
	if t.Quantum.DefaultCollapseProb < 0 || t.Quantum.DefaultCollapseProb > 1 {
		return fmt.Errorf("quantum.default_collapse_prob %v out of [0,1]", t.Quantum.DefaultCollapseProb)
	}
	if t.Combat.AttackDamage <= 0 {
		return fmt.Errorf("combat.attack_damage must be positive")
	}
	if t.SnapshotEveryTurns < 0 {
		return fmt.Errorf("snapshot_every_turns negative")
	}
	return nil
}

// EngineConfig maps tuning onto the engine's balance inputs.
func (t Tuning) EngineConfig() chrono.Config {
	return chrono.Config{
		EnergyInitial:        t.Energy.Initial,
		EnergyMax:            t.Energy.Max,
		EnergyRegenPerTurn:   t.Energy.RegenPerTurn,
		RecordCost:           t.Energy.RecordCost,
		EchoSpawnCost:        t.Echo.SpawnCost,
		EchoUpkeepCost:       t.Echo.UpkeepCost,
		MaxActiveEchoes:      t.Echo.MaxActive,
		EchoMaxLifetimeTurns: t.Echo.MaxLifetimeTurns,
	}
}
